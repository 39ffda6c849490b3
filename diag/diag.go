// Package diag centralizes the standard-error-stream-with-a-rank-prefix
// diagnostic channel the module's non-fatal warnings are reported
// through, routed via an io.Writer so tests can capture it instead of
// writing to os.Stderr.
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Sink is a rank-prefixed diagnostic writer. The zero value writes to
// os.Stderr.
type Sink struct {
	mu   sync.Mutex
	w    io.Writer
	rank int
}

// NewSink builds a Sink prefixing every message with the given rank.
func NewSink(rank int) *Sink {
	return &Sink{w: os.Stderr, rank: rank}
}

// SetWriter redirects diagnostics, for test capture.
func (s *Sink) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// Warnf writes a formatted diagnostic line prefixed with the rank.
func (s *Sink) Warnf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.w
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "[rank %d] "+format+"\n", append([]interface{}{s.rank}, args...)...)
}
