package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

// captureUI redirects status output into a buffer for the test.
func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := uiOut
	uiOut = &buf
	t.Cleanup(func() { uiOut = prev })
	return &buf
}

func TestSpinnerDrawsMessage(t *testing.T) {
	buf := captureUI(t)
	s := spin(context.Background(), "Embedding...")
	time.Sleep(200 * time.Millisecond)
	s.stop()

	if !strings.Contains(buf.String(), "Embedding...") {
		t.Errorf("spinner output = %q, want the message", buf.String())
	}
}

func TestSpinnerEndsWithContext(t *testing.T) {
	captureUI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := spin(ctx, "Waiting...")
	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("spinner still running after context timeout")
	}
	s.stop()
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	captureUI(t)
	s := spin(context.Background(), "Stopping...")
	s.stop()
	s.stop()
}

func TestSpinnerFail(t *testing.T) {
	buf := captureUI(t)
	s := spin(context.Background(), "Failing...")
	s.fail("Layout failed")

	if !strings.Contains(buf.String(), "Layout failed") {
		t.Errorf("output = %q, want the error message", buf.String())
	}
}
