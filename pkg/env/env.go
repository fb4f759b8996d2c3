// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package env reads typed values from environment variables.
//
// Every getter follows the same contract: an unset variable yields the default
// unless it is required, and a value that does not parse is an error only when
// the variable is required (otherwise the default is used).
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func lookup[T any](key string, required bool, defaultValue T, parse func(string) (T, error)) (T, error) {
	raw, ok := os.LookupEnv(key)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		if required {
			return defaultValue, fmt.Errorf("required environment variable %s is not set", key)
		}
		return defaultValue, nil
	}

	value, err := parse(raw)
	if err != nil {
		if required {
			return defaultValue, fmt.Errorf("environment variable %s has an invalid value %q: %w", key, raw, err)
		}
		return defaultValue, nil
	}
	return value, nil
}

// GetAsString retrieves an environment variable as a string.
func GetAsString(key string, required bool, defaultValue string) (string, error) {
	return lookup(key, required, defaultValue, func(s string) (string, error) { return s, nil })
}

// GetAsInt retrieves an environment variable as an integer.
func GetAsInt(key string, required bool, defaultValue int) (int, error) {
	return lookup(key, required, defaultValue, strconv.Atoi)
}

// GetAsFloat retrieves an environment variable as a float64.
func GetAsFloat(key string, required bool, defaultValue float64) (float64, error) {
	return lookup(key, required, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// GetAsDuration retrieves an environment variable as a time.Duration ("250ms", "2s", ...).
func GetAsDuration(key string, required bool, defaultValue time.Duration) (time.Duration, error) {
	return lookup(key, required, defaultValue, time.ParseDuration)
}

// GetAsBool retrieves an environment variable as a boolean.
// Besides the strconv forms it accepts yes/no, y/n and on/off.
func GetAsBool(key string, required bool, defaultValue bool) (bool, error) {
	return lookup(key, required, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "yes", "y", "on":
			return true, nil
		case "no", "n", "off":
			return false, nil
		}
		return strconv.ParseBool(s)
	})
}
