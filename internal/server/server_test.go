package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/octi/pkg/errors"
	"github.com/matzehuels/octi/pkg/geo"
	"github.com/matzehuels/octi/pkg/linegraph"
	"github.com/matzehuels/octi/pkg/observability"
	"github.com/matzehuels/octi/pkg/pipeline"
)

func squareJSON(t *testing.T) json.RawMessage {
	t.Helper()
	g := linegraph.New()
	for _, n := range []linegraph.Node{
		{ID: "a", Pos: geo.Pt(0, 0), StationLabel: "A"},
		{ID: "b", Pos: geo.Pt(100, 0), StationLabel: "B"},
		{ID: "c", Pos: geo.Pt(100, 100), StationLabel: "C"},
		{ID: "d", Pos: geo.Pt(0, 100), StationLabel: "D"},
	} {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s) = %v", n.ID, err)
		}
	}
	for i, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "a"}} {
		err := g.AddEdge(linegraph.Edge{
			ID: fmt.Sprintf("e%d", i), From: e[0], To: e[1],
			Lines: []linegraph.Line{{ID: "1", Label: "1", Color: "ff0000"}},
		})
		if err != nil {
			t.Fatalf("AddEdge(%v) = %v", e, err)
		}
	}
	var buf bytes.Buffer
	if err := linegraph.Write(&buf, g); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	base := pipeline.DefaultOptions()
	base.Threads = 2
	s := New(pipeline.NewRunner(nil, nil, logger), base, Config{}, logger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}
	resp, err := http.Post(ts.URL+"/v1/layout", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST = %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("status field = %q, want ok", out["status"])
	}
}

func TestLayout(t *testing.T) {
	ts := newTestServer(t)
	resp, out := post(t, ts, map[string]any{
		"graph":   squareJSON(t),
		"options": map[string]any{"gridSize": "100", "heurLocSearchIters": 10},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d (%v)", resp.StatusCode, http.StatusOK, out)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	graph, err := json.Marshal(out["graph"])
	if err != nil {
		t.Fatalf("Marshal(graph) = %v", err)
	}
	g, err := linegraph.Read(bytes.NewReader(graph))
	if err != nil {
		t.Fatalf("Read(graph) = %v", err)
	}
	if g.NodeCount() != 4 || g.EdgeCount() != 4 {
		t.Errorf("graph has %d nodes, %d edges, want 4, 4", g.NodeCount(), g.EdgeCount())
	}
	if _, ok := out["score"]; !ok {
		t.Error("response has no score")
	}
	if comps, _ := out["components"].([]any); len(comps) != 1 {
		t.Errorf("components = %v, want 1 entry", out["components"])
	}
}

func TestLayoutRejects(t *testing.T) {
	ts := newTestServer(t)
	graph := squareJSON(t)

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"no graph", map[string]any{}, http.StatusBadRequest, "INVALID_GRAPH"},
		{"graph and dot", map[string]any{"graph": graph, "dot": "graph G {}"}, http.StatusBadRequest, "INVALID_GRAPH"},
		{"unknown field", map[string]any{"graph": graph, "extra": 1}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"unknown option", map[string]any{"graph": graph, "options": map[string]any{"bogus": 1}}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"bad option", map[string]any{"graph": graph, "options": map[string]any{"optimMode": "anneal"}}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"server path", map[string]any{"graph": graph, "options": map[string]any{"obstaclePath": "/etc/passwd"}}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"lp path", map[string]any{"graph": graph, "options": map[string]any{"ilpPath": "model.lp"}}, http.StatusBadRequest, "INVALID_CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := post(t, ts, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.status, out)
			}
			if out["code"] != tt.code {
				t.Errorf("code = %v, want %s", out["code"], tt.code)
			}
		})
	}
}

type recordingHooks struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) OnRequest(_ context.Context, method, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "request "+method+" "+path)
}

func (h *recordingHooks) OnResponse(_ context.Context, method, path string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, fmt.Sprintf("response %s %s %d", method, path, status))
}

func TestHooks(t *testing.T) {
	h := &recordingHooks{}
	observability.SetHTTPHooks(h)
	t.Cleanup(observability.Reset)

	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	resp.Body.Close()
	resp, err = http.Get(ts.URL + "/missing")
	if err != nil {
		t.Fatalf("GET = %v", err)
	}
	resp.Body.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	want := []string{
		"request GET /healthz",
		"response GET /healthz 200",
		"request GET /missing",
		"response GET /missing 404",
	}
	if diff := cmp.Diff(want, h.events); diff != "" {
		t.Errorf("hook events mismatch (-want +got):\n%s", diff)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidConfig, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInvalidGraph, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeFileNotFound, "x"), http.StatusNotFound},
		{fmt.Errorf("component 1: %w", errors.New(errors.ErrCodeUnroutable, "x")), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeAborted, "x"), http.StatusServiceUnavailable},
		{errors.New(errors.ErrCodeInternal, "x"), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
