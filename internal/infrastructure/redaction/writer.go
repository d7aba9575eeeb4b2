package redaction

import (
	"io"
	"sync"
)

// Writer scrubs every chunk before passing it on. Secrets split across two
// writes are not detected; units write whole lines in practice.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	redactor *Redactor
}

// NewWriter wraps w. A nil redactor makes the writer a pass-through.
func NewWriter(w io.Writer, redactor *Redactor) *Writer {
	return &Writer{w: w, redactor: redactor}
}

// Write reports len(p) on success even when the scrubbed text is shorter.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	out := p
	if w.redactor != nil {
		out = []byte(w.redactor.ScrubString(string(p)))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
