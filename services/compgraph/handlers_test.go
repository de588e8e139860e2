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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/compgraph/services/compgraph/model"
	"github.com/AleutianAI/compgraph/services/compgraph/snapshot"
)

const headerTSX = `export function Header({ title }: { title: string }) {
  return <h1>{title}</h1>;
}
`

const appTSX = `import { Header } from './Header';

export function App() {
  const [title, setTitle] = useState("home");
  return <Header title={title} />;
}
`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestService(t *testing.T, mutate func(*ServiceConfig)) *Service {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.RateLimit = 0
	cfg.SnapshotsInMemory = true
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func inlineRequest() AnalyzeRequest {
	return AnalyzeRequest{
		Project: "web",
		Files: []FileInput{
			{ID: "src/App.tsx", Content: appTSX},
			{ID: "src/Header.tsx", Content: headerTSX},
		},
	}
}

func TestHandleAnalyze_Inline(t *testing.T) {
	router := NewRouter(newTestService(t, nil))

	w := doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", inlineRequest())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, w.Header().Get(RequestIDHeader))
	assert.Equal(t, "web", resp.Project)

	require.Len(t, resp.Components, 2)
	assert.Equal(t, "src/App.tsx#App", resp.Components[0].ID)
	assert.Equal(t, []string{"src/Header.tsx#Header"}, resp.Components[0].Children)
	assert.Equal(t, 2, resp.Metrics.ComponentCount)
}

func TestHandleAnalyze_BadRequests(t *testing.T) {
	router := NewRouter(newTestService(t, nil))

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing project", AnalyzeRequest{Files: inlineRequest().Files}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"neither files nor root", AnalyzeRequest{Project: "web"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"both files and root", AnalyzeRequest{Project: "web", Files: inlineRequest().Files, Root: "src"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad language", AnalyzeRequest{Project: "web", Files: []FileInput{{ID: "a.tsx", Language: "python"}}}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"duplicate id", AnalyzeRequest{Project: "web", Files: []FileInput{{ID: "a.tsx"}, {ID: "a.tsx"}}}, http.StatusBadRequest, "INVALID_INPUT"},
		{"root disabled", AnalyzeRequest{Project: "web", Root: "src"}, http.StatusForbidden, "ROOT_FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.RequestID)
		})
	}
}

func TestHandleAnalyze_TooManyFiles(t *testing.T) {
	router := NewRouter(newTestService(t, func(c *ServiceConfig) { c.MaxRequestFiles = 1 }))

	w := doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", inlineRequest())
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHandleAnalyze_Root(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "web", "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "App.tsx"), []byte(appTSX), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Header.tsx"), []byte(headerTSX), 0o644))

	router := NewRouter(newTestService(t, func(c *ServiceConfig) { c.AllowedRoot = root }))

	w := doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", AnalyzeRequest{Project: "web", Root: "web"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Components, 2)
	assert.Equal(t, "src/App.tsx#App", resp.Components[0].ID)

	t.Run("escape is rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", AnalyzeRequest{Project: "web", Root: "../"})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSnapshotLifecycle(t *testing.T) {
	router := NewRouter(newTestService(t, nil))

	w := doJSON(t, router, http.MethodPost, "/v1/compgraph/snapshots",
		SaveSnapshotRequest{AnalyzeRequest: inlineRequest(), Label: "v1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var saved SaveSnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.NotNil(t, saved.Snapshot)
	assert.Equal(t, "v1", saved.Snapshot.Label)
	assert.Equal(t, 2, saved.Snapshot.ComponentCount)
	baseID := saved.Snapshot.ID

	edited := inlineRequest()
	edited.Files = edited.Files[:1]
	w = doJSON(t, router, http.MethodPost, "/v1/compgraph/snapshots", SaveSnapshotRequest{AnalyzeRequest: edited})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	targetID := saved.Snapshot.ID
	require.NotEqual(t, baseID, targetID)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/snapshots?project=web", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListSnapshotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Snapshots, 2)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/snapshots?project=other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Snapshots)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/snapshots/"+baseID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got GetSnapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.NotNil(t, got.Result)
	assert.Len(t, got.Result.Components, 2)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/snapshots/diff?base="+baseID+"&target="+targetID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var diff SnapshotDiffResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	require.NotNil(t, diff.Diff)
	assert.Equal(t, []string{"src/Header.tsx#Header"}, diff.Diff.ComponentsRemoved)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/snapshots/diff?base="+baseID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/compgraph/snapshots/"+baseID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/snapshots/"+baseID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "SNAPSHOT_NOT_FOUND", errResp.Code)

	w = doJSON(t, router, http.MethodDelete, "/v1/compgraph/snapshots/"+baseID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSnapshots_Disabled(t *testing.T) {
	router := NewRouter(newTestService(t, func(c *ServiceConfig) { c.SnapshotsInMemory = false }))

	for _, path := range []string{"/v1/compgraph/snapshots", "/v1/compgraph/snapshots/abc", "/v1/compgraph/snapshots/diff?base=a&target=b"} {
		w := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	w := doJSON(t, router, http.MethodPost, "/v1/compgraph/snapshots", SaveSnapshotRequest{AnalyzeRequest: inlineRequest()})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimit(t *testing.T) {
	router := NewRouter(newTestService(t, func(c *ServiceConfig) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	}))

	w := doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", inlineRequest())
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/compgraph/analyze", inlineRequest())
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "RATE_LIMITED", resp.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/health", nil)
	assert.Equal(t, http.StatusOK, w.Code, "health checks are not limited")
}

func TestRequestID_Echo(t *testing.T) {
	router := NewRouter(newTestService(t, nil))

	req := httptest.NewRequest(http.MethodGet, "/v1/compgraph/snapshots/missing", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-123", resp.RequestID)
}

func TestHealthAndReady(t *testing.T) {
	svc := newTestService(t, func(c *ServiceConfig) { c.Workers = 3 })
	router := NewRouter(svc)

	w := doJSON(t, router, http.MethodGet, "/v1/compgraph/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.Snapshots)

	w = doJSON(t, router, http.MethodGet, "/v1/compgraph/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ready", health.Status)
	assert.Equal(t, 3, health.Workers)
}

func TestService_Diff(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	result, err := svc.Analyze(ctx, "web", nil)
	require.NoError(t, err)
	meta, err := svc.Save(ctx, result, "")
	require.NoError(t, err)

	diff, err := svc.Diff(ctx, meta.ID, meta.ID)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())

	_, err = svc.Diff(ctx, meta.ID, "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	disabled := newTestService(t, func(c *ServiceConfig) { c.SnapshotsInMemory = false })
	_, err = disabled.Save(ctx, &model.Result{}, "")
	assert.ErrorIs(t, err, ErrSnapshotsDisabled)
}
