// Package render turns captured unit output into HTML fragments.
package render

import (
	"bytes"
	"fmt"
	"html"
	"slices"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// Parser ids understood by NewRegistry.
const (
	ParserPlain    = "plain/1.0"
	ParserHTML     = "html/5.0"
	ParserMarkdown = "markdown/1.0"
)

// Func renders one output.
type Func func(output string) (string, error)

// Registry implements ports.OutputRenderer over a set of named parsers.
type Registry struct {
	mu            sync.RWMutex
	parsers       map[string]Func
	defaultParser string
}

// NewRegistry creates a registry holding the standard parsers. An empty
// parser id passed to Render resolves to defaultParser.
func NewRegistry(defaultParser string) *Registry {
	if defaultParser == "" {
		defaultParser = ParserPlain
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowStyling()
	md := goldmark.New()

	r := &Registry{
		parsers:       make(map[string]Func),
		defaultParser: defaultParser,
	}
	r.Register(ParserPlain, func(output string) (string, error) {
		return html.EscapeString(output), nil
	})
	r.Register(ParserHTML, func(output string) (string, error) {
		return policy.Sanitize(output), nil
	})
	r.Register(ParserMarkdown, func(output string) (string, error) {
		var buf bytes.Buffer
		if err := md.Convert([]byte(output), &buf); err != nil {
			return "", fmt.Errorf("markdown conversion failed: %w", err)
		}
		return policy.Sanitize(buf.String()), nil
	})
	return r
}

// Register adds or replaces the parser called id.
func (r *Registry) Register(id string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[id] = fn
}

// Parsers returns the registered parser ids, sorted.
func (r *Registry) Parsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.parsers))
	for id := range r.parsers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Render implements ports.OutputRenderer.
func (r *Registry) Render(output, parserID string) (string, error) {
	if parserID == "" {
		parserID = r.defaultParser
	}

	r.mu.RLock()
	fn, ok := r.parsers[parserID]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown parser: %s (supported: %v)", parserID, r.Parsers())
	}
	return fn(output)
}
