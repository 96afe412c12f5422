// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/usegraph/services/usegraph/config"
	"github.com/AleutianAI/usegraph/services/usegraph/export"
	"github.com/AleutianAI/usegraph/services/usegraph/graph"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *gin.Engine) {
	t.Helper()
	s, err := New(config.Default(), append([]Option{WithScanRate(1000, 1000)}, opts...)...)
	require.NoError(t, err)
	return s, s.Router()
}

func newTestSnapshots(t *testing.T) *graph.SnapshotManager {
	t.Helper()
	mgr, _ := newTestSnapshotDB(t)
	return mgr
}

func newTestSnapshotDB(t *testing.T) (*graph.SnapshotManager, *badger.DB) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mgr, err := graph.NewSnapshotManager(db, slog.Default())
	require.NoError(t, err)
	return mgr, db
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func scenarioRequest() ScanRequest {
	return ScanRequest{Modules: []InlineModule{{
		Name: "App",
		Files: []InlineFile{
			{Path: "A.swift", Content: "struct A {\n    let a: B\n}\n"},
			{Path: "B.swift", Content: "struct B {\n    let c: C\n}\nstruct C {\n    let a: A\n}\n"},
		},
	}}}
}

func scanOK(t *testing.T, router http.Handler, req ScanRequest) ScanResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/v1/usegraph/scan", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)
	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestScanAndFetch(t *testing.T) {
	_, router := newTestServer(t)
	resp := scanOK(t, router, scenarioRequest())

	assert.NotEmpty(t, resp.GraphID)
	assert.Equal(t, "inline", resp.Root)
	assert.Equal(t, 3, resp.Stats.Entities)
	assert.Equal(t, 3, resp.Stats.Edges)

	w := do(t, router, http.MethodGet, "/v1/usegraph/graphs/"+string(resp.GraphID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got GraphResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	g, err := graph.FromSerializable(got.Graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, g.Names())
	assert.Equal(t, []string{"B"}, g["A"].ConnectedTo.Sorted())
	assert.Equal(t, "App", g["A"].ModuleName)
}

func TestScan_FolderPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.swift"), []byte("struct A {\n    let b: B\n}\nstruct B {\n    let a: A\n}\n"), 0o644))

	_, router := newTestServer(t)
	resp := scanOK(t, router, ScanRequest{Path: dir})
	assert.Equal(t, dir, resp.Root)
	assert.Equal(t, 2, resp.Stats.Entities)
}

func TestScan_BadRequests(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name string
		body any
		code string
		want int
	}{
		{"malformed json", "not an object", "INVALID_REQUEST", http.StatusBadRequest},
		{"neither path nor modules", ScanRequest{}, "INVALID_REQUEST", http.StatusBadRequest},
		{"both path and modules", ScanRequest{Path: "/tmp", Modules: scenarioRequest().Modules}, "INVALID_REQUEST", http.StatusBadRequest},
		{"file without path", ScanRequest{Modules: []InlineModule{{Files: []InlineFile{{Content: "x"}}}}}, "INVALID_REQUEST", http.StatusBadRequest},
		{"missing path", ScanRequest{Path: "/definitely/not/here"}, "INVALID_PATH", http.StatusBadRequest},
		{"bad module glob", ScanRequest{Path: "/tmp", ExcludedModules: []string{"[x"}}, "INVALID_CONFIG", http.StatusBadRequest},
		{"snapshot without store", ScanRequest{Modules: scenarioRequest().Modules, Snapshot: true}, "SNAPSHOTS_NOT_AVAILABLE", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/v1/usegraph/scan", tt.body)
			assert.Equal(t, tt.want, w.Code)
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &er))
			assert.Equal(t, tt.code, er.Code)
		})
	}
}

func TestScan_RateLimited(t *testing.T) {
	_, router := newTestServer(t, WithScanRate(0.001, 1))

	scanOK(t, router, scenarioRequest())
	w := do(t, router, http.MethodPost, "/v1/usegraph/scan", scenarioRequest())
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestGetGraph_NotFound(t *testing.T) {
	_, router := newTestServer(t)
	w := do(t, router, http.MethodGet, "/v1/usegraph/graphs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "GRAPH_NOT_FOUND")
}

func TestCacheEviction(t *testing.T) {
	_, router := newTestServer(t, WithCacheSize(1))
	first := scanOK(t, router, scenarioRequest())
	second := scanOK(t, router, scenarioRequest())

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/v1/usegraph/graphs/"+string(first.GraphID), nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/v1/usegraph/graphs/"+string(second.GraphID), nil).Code)
}

func TestExport(t *testing.T) {
	_, router := newTestServer(t)
	id := string(scanOK(t, router, scenarioRequest()).GraphID)
	base := "/v1/usegraph/graphs/" + id + "/export"

	w := do(t, router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "digraph"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), export.GraphDOTName)

	w = do(t, router, http.MethodGet, base+"?format=CSV&table=edges", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Source,Target,Type\n"))
	assert.Contains(t, w.Body.String(), "App.A,App.B,directed")

	w = do(t, router, http.MethodGet, base+"?format=json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"schema_version"`)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, base+"?format=png", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, base+"?format=csv&table=x", nil).Code)
}

func TestSnapshots(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		_, router := newTestServer(t)
		assert.Equal(t, http.StatusServiceUnavailable, do(t, router, http.MethodGet, "/v1/usegraph/snapshots", nil).Code)
	})

	_, router := newTestServer(t, WithSnapshots(newTestSnapshots(t)))

	req := scenarioRequest()
	req.Snapshot = true
	req.Label = "before"
	before := scanOK(t, router, req)
	require.NotEmpty(t, before.SnapshotID)

	req.Modules[0].Files[0].Content = "struct A {\n    let a: B\n    let c: C\n}\n"
	req.Label = "after"
	after := scanOK(t, router, req)
	require.NotEmpty(t, after.SnapshotID)
	require.NotEqual(t, before.SnapshotID, after.SnapshotID)

	w := do(t, router, http.MethodGet, "/v1/usegraph/snapshots?root=inline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list ListSnapshotsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Snapshots, 2)

	w = do(t, router, http.MethodGet, "/v1/usegraph/snapshots/diff?base="+before.SnapshotID+"&target="+after.SnapshotID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var diff SnapshotDiffResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &diff))
	assert.Equal(t, 1, diff.Diff.EdgesAdded)
	require.Len(t, diff.Diff.EntitiesModified, 1)
	assert.Equal(t, []string{"C"}, diff.Diff.EntitiesModified[0].RefsAdded)

	w = do(t, router, http.MethodGet, "/v1/usegraph/snapshots/diff?format=unified&base="+before.SnapshotID+"&target="+after.SnapshotID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "+A -> C\n")

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/v1/usegraph/snapshots/diff?base=x", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/v1/usegraph/snapshots/diff?base=x&target=y", nil).Code)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, "/v1/usegraph/snapshots/"+before.SnapshotID, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/v1/usegraph/snapshots/"+before.SnapshotID, nil).Code)
}

func TestDiffSnapshots_LoadFailure(t *testing.T) {
	mgr, db := newTestSnapshotDB(t)
	_, router := newTestServer(t, WithSnapshots(mgr))

	req := scenarioRequest()
	req.Snapshot = true
	good := scanOK(t, router, req)

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		entries := map[string]string{
			"usegraph:snap:index:broken":  "h",
			"usegraph:snap:h:broken:data": "not gzip",
			"usegraph:snap:h:broken:meta": "{",
		}
		for k, v := range entries {
			if err := txn.Set([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}))

	w := do(t, router, http.MethodGet, "/v1/usegraph/snapshots/diff?base="+good.SnapshotID+"&target=broken", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SNAPSHOT_LOAD_FAILED")

	w = do(t, router, http.MethodGet, "/v1/usegraph/snapshots/diff?base=missing&target="+good.SnapshotID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SNAPSHOT_NOT_FOUND")
}

func TestMetricsEndpoint(t *testing.T) {
	_, router := newTestServer(t)
	scanOK(t, router, scenarioRequest())

	w := do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "usegraph_scan_files_total")
}

func TestEvents(t *testing.T) {
	s, router := newTestServer(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/usegraph/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))

	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, EventSubscribed, e.Type)
	assert.Equal(t, 1, s.events.count())

	resp := scanOK(t, router, scenarioRequest())
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, EventScanCompleted, e.Type)
	assert.Equal(t, resp.GraphID, e.GraphID)
	assert.Equal(t, 3, e.Entities)
}

func TestHub(t *testing.T) {
	h := newHub()
	ch, unsubscribe := h.subscribe()
	h.publish(Event{Type: "x"})
	assert.Equal(t, "x", (<-ch).Type)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, h.count())
	h.publish(Event{Type: "y"})
}
