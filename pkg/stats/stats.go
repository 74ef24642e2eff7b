// Package stats persists per-attempt statistics of embedding runs.
//
// Every attempt of a run produces one [Record]. Records are buffered by the
// pipeline and handed to a [Sink] once the run finishes: [JSONLSink] appends
// them to a local file, [MongoSink] inserts them into a MongoDB collection.
package stats

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record describes one embedding attempt.
type Record struct {
	RunID     string    `json:"runId" bson:"runId"`
	Time      time.Time `json:"time" bson:"time"`
	Component int       `json:"component" bson:"component"`
	Attempt   int       `json:"attempt" bson:"attempt"`
	Label     string    `json:"label" bson:"label"`

	GridType   string  `json:"gridType" bson:"gridType"`
	Cell       float64 `json:"cell" bson:"cell"`
	GridTries  int     `json:"gridTries" bson:"gridTries"`
	Order      string  `json:"order" bson:"order"`
	HananIters int     `json:"hananIters,omitempty" bson:"hananIters,omitempty"`
	Run        int     `json:"run" bson:"run"`
	OptimMode  string  `json:"optimMode" bson:"optimMode"`

	LatticeNodes int `json:"latticeNodes" bson:"latticeNodes"`
	LatticeEdges int `json:"latticeEdges" bson:"latticeEdges"`
	CombNodes    int `json:"combNodes" bson:"combNodes"`
	CombEdges    int `json:"combEdges" bson:"combEdges"`

	// Score and Baseline are -1 when the value is not finite.
	Score      float64 `json:"score" bson:"score"`
	Baseline   float64 `json:"baseline" bson:"baseline"`
	Skipped    int     `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Iterations int     `json:"iterations,omitempty" bson:"iterations,omitempty"`
	Moves      int     `json:"moves,omitempty" bson:"moves,omitempty"`

	ILPStatus string `json:"ilpStatus,omitempty" bson:"ilpStatus,omitempty"`
	ILPCached bool   `json:"ilpCached,omitempty" bson:"ilpCached,omitempty"`
	Fallback  bool   `json:"fallback,omitempty" bson:"fallback,omitempty"`

	Selected   bool    `json:"selected,omitempty" bson:"selected,omitempty"`
	DurationMS float64 `json:"durationMs" bson:"durationMs"`
	Error      string  `json:"error,omitempty" bson:"error,omitempty"`
}

// Finite returns v, or -1 when v is infinite or NaN, which JSON cannot
// represent.
func Finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return -1
	}
	return v
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// Sink stores records.
type Sink interface {
	Write(ctx context.Context, records []Record) error
	Close() error
}

// JSONLSink appends records to a file, one JSON object per line.
type JSONLSink struct {
	mu   sync.Mutex
	path string
}

// NewJSONLSink returns a sink appending to path. The file is created on the
// first write.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

// Path returns the file the sink appends to.
func (s *JSONLSink) Path() string { return s.path }

// Write appends records to the file.
func (s *JSONLSink) Write(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// Close implements Sink.
func (s *JSONLSink) Close() error { return nil }

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// Write implements Sink.
func (s *MemorySink) Write(_ context.Context, records []Record) error {
	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
	return nil
}

// Records returns a copy of everything written so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Close implements Sink.
func (s *MemorySink) Close() error { return nil }
