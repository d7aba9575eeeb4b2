// Package memory provides in-memory implementations of domain repositories.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/reglet-dev/classrunner/internal/domain/repositories"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// Ensure interface compliance
var _ repositories.ProfileRepository = (*ProfileRepository)(nil)

// Object is one indexed object attached to a document: field name to value.
type Object map[string]string

// Document is a profile document with its objects grouped by class.
// A nil entry in a class slice is a deleted object and terminates scans.
type Document struct {
	Objects map[string][]Object
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{Objects: make(map[string][]Object)}
}

// Append attaches an object of class at the next index and returns the document.
func (d *Document) Append(class string, obj Object) *Document {
	d.Objects[class] = append(d.Objects[class], obj)
	return d
}

// ProfileRepository is an in-memory implementation of ProfileRepository.
// Useful for testing and as the backing structure of file-based stores.
type ProfileRepository struct {
	docs map[values.ProfileRef]*Document
	mu   sync.RWMutex
}

// NewProfileRepository creates a new in-memory repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		docs: make(map[values.ProfileRef]*Document),
	}
}

// Put stores or replaces a profile document.
func (r *ProfileRepository) Put(ref values.ProfileRef, doc *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[ref] = doc
}

// Document returns the stored document for ref.
func (r *ProfileRepository) Document(ref values.ProfileRef) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[ref]
	return doc, ok
}

// Replace swaps the whole document set atomically.
func (r *ProfileRepository) Replace(docs map[values.ProfileRef]*Document) {
	fresh := make(map[values.ProfileRef]*Document, len(docs))
	for ref, doc := range docs {
		fresh[ref] = doc
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = fresh
}

// Exists reports whether the profile document exists.
func (r *ProfileRepository) Exists(_ context.Context, ref values.ProfileRef) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.docs[ref]
	return ok, nil
}

// Property returns a field of the index-th object of class.
func (r *ProfileRepository) Property(_ context.Context, ref values.ProfileRef, class string, index int, field string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[ref]
	if !ok || doc == nil {
		return "", false, nil
	}
	objects := doc.Objects[class]
	if index < 0 || index >= len(objects) || objects[index] == nil {
		return "", false, nil
	}
	value, ok := objects[index][field]
	return value, ok, nil
}

// List returns all stored profile references sorted by identifier.
func (r *ProfileRepository) List(_ context.Context) ([]values.ProfileRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]values.ProfileRef, 0, len(r.docs))
	for ref := range r.docs {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].String() < refs[j].String()
	})
	return refs, nil
}
