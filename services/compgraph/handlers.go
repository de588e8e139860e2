// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/compgraph/services/compgraph/ast"
	"github.com/AleutianAI/compgraph/services/compgraph/engine"
	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
)

// Handlers serves the /v1/compgraph endpoints.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates Handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleAnalyze handles POST /v1/compgraph/analyze.
//
// Request Body:
//
//	AnalyzeRequest with either inline files or a root directory.
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Malformed body, duplicate file IDs
//	403 Forbidden: Root analysis disabled or outside the allowed root
//	500 Internal Server Error: Analysis failed
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, requestID, err)
		return
	}

	result, ok := h.analyze(c, logger, requestID, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, AnalyzeResponse{RequestID: requestID, Result: result})
}

// HandleSaveSnapshot handles POST /v1/compgraph/snapshots.
//
// Response:
//
//	200 OK: SaveSnapshotResponse
//	503 Service Unavailable: Snapshots disabled
func (h *Handlers) HandleSaveSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSaveSnapshot")

	if !h.requireSnapshots(c, requestID) {
		return
	}

	var req SaveSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, requestID, err)
		return
	}

	result, ok := h.analyze(c, logger, requestID, req.AnalyzeRequest)
	if !ok {
		return
	}

	meta, err := h.svc.Save(c.Request.Context(), result, req.Label)
	if err != nil {
		logger.Error("snapshot save failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to save snapshot",
			Code:      "SNAPSHOT_SAVE_FAILED",
			RequestID: requestID,
		})
		return
	}
	c.JSON(http.StatusOK, SaveSnapshotResponse{RequestID: requestID, Snapshot: meta})
}

// HandleListSnapshots handles GET /v1/compgraph/snapshots.
//
// Query Parameters:
//
//	project: Project name filter (optional)
//	limit: Maximum results, default 100 (optional)
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	if !h.requireSnapshots(c, requestID) {
		return
	}

	projectHash := ""
	if project := c.Query("project"); project != "" {
		projectHash = snapshot.ProjectHash(project)
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:     "limit must be a non-negative integer",
				Code:      "INVALID_PARAMETER",
				RequestID: requestID,
			})
			return
		}
		limit = n
	}

	list, err := h.svc.Snapshots().List(c.Request.Context(), projectHash, limit)
	if err != nil {
		slog.Error("snapshot list failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "failed to list snapshots",
			Code:      "SNAPSHOT_LIST_FAILED",
			RequestID: requestID,
		})
		return
	}
	c.JSON(http.StatusOK, ListSnapshotsResponse{RequestID: requestID, Snapshots: list})
}

// HandleGetSnapshot handles GET /v1/compgraph/snapshots/:id.
func (h *Handlers) HandleGetSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	if !h.requireSnapshots(c, requestID) {
		return
	}

	id := c.Param("id")
	result, meta, err := h.svc.Snapshots().Load(c.Request.Context(), id)
	if err != nil {
		writeSnapshotError(c, requestID, id, err)
		return
	}
	c.JSON(http.StatusOK, GetSnapshotResponse{RequestID: requestID, Snapshot: meta, Result: result})
}

// HandleDeleteSnapshot handles DELETE /v1/compgraph/snapshots/:id.
func (h *Handlers) HandleDeleteSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	if !h.requireSnapshots(c, requestID) {
		return
	}

	id := c.Param("id")
	if err := h.svc.Snapshots().Delete(c.Request.Context(), id); err != nil {
		writeSnapshotError(c, requestID, id, err)
		return
	}
	c.JSON(http.StatusOK, DeleteSnapshotResponse{RequestID: requestID, Deleted: id})
}

// HandleDiffSnapshots handles GET /v1/compgraph/snapshots/diff.
//
// Query Parameters:
//
//	base: Base snapshot ID (required)
//	target: Target snapshot ID (required)
func (h *Handlers) HandleDiffSnapshots(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	if !h.requireSnapshots(c, requestID) {
		return
	}

	baseID, targetID := c.Query("base"), c.Query("target")
	if baseID == "" || targetID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "base and target parameters are required",
			Code:      "MISSING_PARAMETER",
			RequestID: requestID,
		})
		return
	}

	diff, err := h.svc.Diff(c.Request.Context(), baseID, targetID)
	if err != nil {
		writeSnapshotError(c, requestID, baseID+".."+targetID, err)
		return
	}
	c.JSON(http.StatusOK, SnapshotDiffResponse{RequestID: requestID, Diff: diff})
}

// HandleHealth handles GET /v1/compgraph/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Snapshots: h.svc.Snapshots() != nil})
}

// HandleReady handles GET /v1/compgraph/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.svc == nil || h.svc.Engine() == nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "not_ready"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Snapshots: h.svc.Snapshots() != nil,
		Workers:   h.svc.Engine().Workers(),
	})
}

// analyze runs req and writes an error response on failure.
func (h *Handlers) analyze(c *gin.Context, logger *slog.Logger, requestID string, req AnalyzeRequest) (*model.Result, bool) {
	hasFiles, hasRoot := len(req.Files) > 0, req.Root != ""
	if hasFiles == hasRoot {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "exactly one of files and root is required",
			Code:      "INVALID_REQUEST",
			RequestID: requestID,
		})
		return nil, false
	}
	if limit := h.svc.cfg.MaxRequestFiles; limit > 0 && len(req.Files) > limit {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error:     fmt.Sprintf("at most %d files per request", limit),
			Code:      "TOO_MANY_FILES",
			RequestID: requestID,
		})
		return nil, false
	}

	ctx := c.Request.Context()
	var (
		result *model.Result
		err    error
	)
	if hasRoot {
		result, err = h.svc.AnalyzeDir(ctx, req.Project, req.Root)
	} else {
		files := make([]ast.SourceFile, len(req.Files))
		for i, f := range req.Files {
			files[i] = ast.SourceFile{ID: f.ID, Language: ast.Language(f.Language), Content: []byte(f.Content)}
		}
		result, err = h.svc.Analyze(ctx, req.Project, files)
	}
	if err == nil {
		return result, true
	}

	switch {
	case errors.Is(err, engine.ErrDuplicateFileID), errors.Is(err, engine.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_INPUT", RequestID: requestID})
	case errors.Is(err, ErrFilesystemDisabled), errors.Is(err, ErrRootNotAllowed):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "ROOT_FORBIDDEN", RequestID: requestID})
	default:
		logger.Error("analysis failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "analysis failed",
			Code:      "ANALYSIS_FAILED",
			RequestID: requestID,
		})
	}
	return nil, false
}

func (h *Handlers) requireSnapshots(c *gin.Context, requestID string) bool {
	if h.svc.Snapshots() != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:     ErrSnapshotsDisabled.Error(),
		Code:      "SNAPSHOTS_NOT_AVAILABLE",
		RequestID: requestID,
	})
	return false
}

func writeBadRequest(c *gin.Context, requestID string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     "invalid request body: " + err.Error(),
		Code:      "INVALID_REQUEST",
		RequestID: requestID,
	})
}

func writeSnapshotError(c *gin.Context, requestID, subject string, err error) {
	if errors.Is(err, snapshot.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "snapshot not found: " + subject,
			Code:      "SNAPSHOT_NOT_FOUND",
			RequestID: requestID,
		})
		return
	}
	slog.Error("snapshot operation failed",
		slog.String("request_id", requestID),
		slog.String("subject", subject),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:     "snapshot operation failed",
		Code:      "SNAPSHOT_FAILED",
		RequestID: requestID,
	})
}
