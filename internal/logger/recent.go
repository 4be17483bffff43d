package logger

import (
	"bytes"
	"strings"
	"sync"
)

// recentLines is a fixed-size ring of formatted log lines.
type recentLines struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newRecentLines(size int) *recentLines {
	return &recentLines{lines: make([]string, size)}
}

// Write implements zapcore.WriteSyncer. zap hands over one entry per call.
func (r *recentLines) Write(p []byte) (int, error) {
	if len(r.lines) == 0 {
		return len(p), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		r.lines[r.next] = strings.TrimSpace(string(line))
		r.next = (r.next + 1) % len(r.lines)
		if r.next == 0 {
			r.full = true
		}
	}
	return len(p), nil
}

func (r *recentLines) Sync() error { return nil }

func (r *recentLines) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]string, r.next)
		copy(out, r.lines[:r.next])
		return out
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	out = append(out, r.lines[:r.next]...)
	return out
}
