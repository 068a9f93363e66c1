// Package scene implements the project data model: the entity graph the
// optimization pipeline reads at the start of a solve and mutates at the
// end. It follows phys's conventions (phys/node.go, phys/scene.go):
// Validate() error on every entity, a polymorphic-type JSON registry for
// tagged-union fields (phys/json.go), and plain value types everywhere
// copying is cheap.
package scene

import "fmt"

// ID identifies an entity within a Project. IDs are stable for the
// lifetime of the entity -- they are never reused, even after deletion
// (outlier removal marks ImagePoints Excluded rather than deleting
// anything, so ID reuse is not a concern in practice, but the arena never
// recycles slots regardless).
type ID int

// Arena is an insertion-ordered, ID-indexed collection. Iteration order is
// always insertion order: this is what makes variable-slot assignment and
// Jacobian row ordering reproducible (spec section 9's determinism note).
// A deleted entry leaves a hole (tombstone) rather than shifting every
// later ID, so every ID handed out remains valid to look up deletion
// status even after removal.
type Arena[T any] struct {
	items   []T
	deleted []bool
}

// Add appends item to the arena and returns its new ID.
func (a *Arena[T]) Add(item T) ID {
	id := ID(len(a.items))
	a.items = append(a.items, item)
	a.deleted = append(a.deleted, false)
	return id
}

// Get returns the item with the given ID and whether it exists and has not
// been deleted.
func (a *Arena[T]) Get(id ID) (T, bool) {
	var zero T
	if id < 0 || int(id) >= len(a.items) || a.deleted[id] {
		return zero, false
	}
	return a.items[id], true
}

// MustGet returns the item with the given ID, panicking if it does not
// exist. Callers use this once an ID is known to have come from this
// arena (e.g. an ID stored on another entity as a reference).
func (a *Arena[T]) MustGet(id ID) T {
	v, ok := a.Get(id)
	if !ok {
		panic(fmt.Sprintf("scene: arena has no live entry for id %d", id))
	}
	return v
}

// Set overwrites the item at id. It panics if id does not exist.
func (a *Arena[T]) Set(id ID, item T) {
	if id < 0 || int(id) >= len(a.items) {
		panic(fmt.Sprintf("scene: arena Set out of range id %d", id))
	}
	a.items[id] = item
	a.deleted[id] = false
}

// Delete tombstones the entry at id. Its ID is never reused.
func (a *Arena[T]) Delete(id ID) {
	if id >= 0 && int(id) < len(a.items) {
		a.deleted[id] = true
	}
}

// Len returns the number of live (non-deleted) entries.
func (a *Arena[T]) Len() int {
	n := 0
	for _, d := range a.deleted {
		if !d {
			n++
		}
	}
	return n
}

// All returns every live entry together with its ID, in insertion order.
func (a *Arena[T]) All() []IDItem[T] {
	out := make([]IDItem[T], 0, len(a.items))
	for i, item := range a.items {
		if !a.deleted[i] {
			out = append(out, IDItem[T]{ID: ID(i), Item: item})
		}
	}
	return out
}

// Clone returns a deep-enough copy of the arena for snapshot/restore: the
// item slice is copied, but items that are themselves pointers still
// alias the same pointee. Callers of Clone on pointer-element arenas must
// also clone the pointee (see Project.Snapshot).
func (a *Arena[T]) Clone() Arena[T] {
	items := make([]T, len(a.items))
	copy(items, a.items)
	deleted := make([]bool, len(a.deleted))
	copy(deleted, a.deleted)
	return Arena[T]{items: items, deleted: deleted}
}

// IDItem pairs an entity with its ID, as returned by Arena.All.
type IDItem[T any] struct {
	ID   ID
	Item T
}
