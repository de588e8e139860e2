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
	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// FileInput is one inline source file.
type FileInput struct {
	ID      string `json:"id" binding:"required,max=1024"`
	Content string `json:"content"`

	// Language optionally overrides extension-based grammar selection.
	Language string `json:"language,omitempty" binding:"omitempty,oneof=tsx typescript javascript"`
}

// AnalyzeRequest is the body of POST /v1/compgraph/analyze.
//
// Exactly one of Files and Root must be set.
type AnalyzeRequest struct {
	Project string      `json:"project" binding:"required,max=256"`
	Files   []FileInput `json:"files,omitempty" binding:"omitempty,dive"`
	Root    string      `json:"root,omitempty" binding:"omitempty,max=4096"`
}

// AnalyzeResponse is a model.Result plus the request ID.
type AnalyzeResponse struct {
	RequestID string `json:"request_id"`
	*model.Result
}

// SaveSnapshotRequest analyzes a project and saves the result.
type SaveSnapshotRequest struct {
	AnalyzeRequest
	Label string `json:"label,omitempty" binding:"omitempty,max=256"`
}

// SaveSnapshotResponse describes a saved snapshot.
type SaveSnapshotResponse struct {
	RequestID string             `json:"request_id"`
	Snapshot  *snapshot.Metadata `json:"snapshot"`
}

// ListSnapshotsResponse lists snapshot metadata, newest first.
type ListSnapshotsResponse struct {
	RequestID string               `json:"request_id"`
	Snapshots []*snapshot.Metadata `json:"snapshots"`
}

// GetSnapshotResponse is a stored result and its metadata.
type GetSnapshotResponse struct {
	RequestID string             `json:"request_id"`
	Snapshot  *snapshot.Metadata `json:"snapshot"`
	Result    *model.Result      `json:"result"`
}

// DeleteSnapshotResponse confirms a deletion.
type DeleteSnapshotResponse struct {
	RequestID string `json:"request_id"`
	Deleted   string `json:"deleted"`
}

// SnapshotDiffResponse wraps a snapshot diff.
type SnapshotDiffResponse struct {
	RequestID string         `json:"request_id"`
	Diff      *snapshot.Diff `json:"diff"`
}

// HealthResponse reports liveness or readiness.
type HealthResponse struct {
	Status    string `json:"status"`
	Snapshots bool   `json:"snapshots"`
	Workers   int    `json:"workers,omitempty"`
}
