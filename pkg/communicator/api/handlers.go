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

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/united-manufacturing-hub/gantry-core/pkg/fsm/gantry"
	"github.com/united-manufacturing-hub/gantry-core/pkg/metrics"
	"github.com/united-manufacturing-hub/gantry-core/pkg/models"
)

const (
	CodeBadRequest       = "bad_request"
	CodeConflict         = "conflict"
	CodeValidationFailed = "validation_failed"
	CodeInternal         = "internal"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type StatusResponse struct {
	gantry.Status
	Position models.Position `json:"position"`
}

// positionRequest uses pointers so that a missing coordinate is rejected
// instead of silently becoming 0.
type positionRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

var errMissingCoordinate = errors.New("x, y and z are required")

func (s *Server) statusResponse() StatusResponse {
	return StatusResponse{
		Status:   s.controller.Status(),
		Position: s.controller.GetCurrentPosition(),
	}
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) getPosition(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.GetCurrentPosition())
}

func (s *Server) postStart(c *gin.Context) {
	if err := s.controller.Start(c.Request.Context()); err != nil {
		s.handleCommandError(c, "start", err)
		return
	}
	c.JSON(http.StatusOK, s.statusResponse())
}

// postHome answers 202: while busy the request is only recorded.
func (s *Server) postHome(c *gin.Context) {
	if err := s.controller.RequestHome(c.Request.Context()); err != nil {
		s.handleCommandError(c, "home", err)
		return
	}
	c.JSON(http.StatusAccepted, s.statusResponse())
}

func (s *Server) postReset(c *gin.Context) {
	if err := s.controller.Reset(c.Request.Context()); err != nil {
		s.handleCommandError(c, "reset", err)
		return
	}
	c.JSON(http.StatusOK, s.statusResponse())
}

func (s *Server) getHomePosition(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.GetHomePosition())
}

func (s *Server) putHomePosition(c *gin.Context) {
	p, ok := s.decodePosition(c)
	if !ok {
		return
	}
	home, err := models.NewHomePosition(p.X, p.Y, p.Z)
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	s.controller.SetHomePosition(home)
	c.JSON(http.StatusOK, home)
}

func (s *Server) getCubeStartPosition(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.NextSource())
}

func (s *Server) putCubeStartPosition(c *gin.Context) {
	p, ok := s.decodePosition(c)
	if !ok {
		return
	}
	source, err := models.NewCubeStartPosition(p.X, p.Y, p.Z)
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	s.controller.SetNextSource(source)
	c.JSON(http.StatusOK, source)
}

func (s *Server) getCubeDestinationPosition(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.NextDestination())
}

func (s *Server) putCubeDestinationPosition(c *gin.Context) {
	p, ok := s.decodePosition(c)
	if !ok {
		return
	}
	destination, err := models.NewCubeDestinationPosition(p.X, p.Y, p.Z)
	if err != nil {
		s.handleValidationError(c, err)
		return
	}
	s.controller.SetNextDestination(destination)
	c.JSON(http.StatusOK, destination)
}

func (s *Server) decodePosition(c *gin.Context) (models.Position, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.abortWithError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("failed to read body: %w", err))
		return models.Position{}, false
	}

	var req positionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.abortWithError(c, http.StatusBadRequest, CodeBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return models.Position{}, false
	}
	if req.X == nil || req.Y == nil || req.Z == nil {
		s.abortWithError(c, http.StatusBadRequest, CodeBadRequest, errMissingCoordinate)
		return models.Position{}, false
	}
	return models.Position{X: *req.X, Y: *req.Y, Z: *req.Z}, true
}

func (s *Server) handleCommandError(c *gin.Context, command string, err error) {
	if errors.Is(err, gantry.ErrConflict) {
		s.abortWithError(c, http.StatusConflict, CodeConflict, err)
		return
	}
	metrics.IncErrorCount(metrics.ComponentAPIServer, "api")
	s.logger.Errorw("Command failed", "command", command, "error", err)
	s.abortWithError(c, http.StatusInternalServerError, CodeInternal, err)
}

func (s *Server) handleValidationError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		s.abortWithError(c, http.StatusUnprocessableEntity, CodeValidationFailed, err)
		return
	}
	s.abortWithError(c, http.StatusBadRequest, CodeBadRequest, err)
}

func (s *Server) abortWithError(c *gin.Context, status int, code string, err error) {
	s.logger.Debugw("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: err.Error()}})
}
