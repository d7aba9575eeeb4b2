// Package services contains application use cases.
package services

import (
	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
)

// ApplySelection performs the persist side effect decided by the resolver.
func ApplySelection(store ports.SelectionStore, key string, sel *entities.ProfileSelection) {
	if store == nil || sel == nil {
		return
	}
	switch sel.Persist {
	case entities.PersistSet:
		store.Set(key, sel.PersistValue)
	case entities.PersistClear:
		store.Clear(key)
	}
}

// persistedValue reads the override channel; nil means nothing stored.
func persistedValue(store ports.SelectionStore, key string) *string {
	if store == nil {
		return nil
	}
	v, ok := store.Get(key)
	if !ok {
		return nil
	}
	return &v
}
