package object

import (
	"github.com/google/uuid"
	"github.com/podstore/podstore/pkg/backend"
	"github.com/podstore/podstore/pkg/space"
)

// Context is the shared, immutable environment of an object-backend repo:
// the storage space binding and the object-store handle.
//
// A context is created once at startup and lives for the process lifetime
// of the bound storage space. Operators only ever mutate backend-external
// state through the store handle; the context itself is never mutated in
// place.
type Context struct {
	id    string
	space *space.StorageSpace
	store backend.ObjectStore
}

// NewContext creates a repo context binding a storage space to an object
// store.
func NewContext(sp *space.StorageSpace, store backend.ObjectStore) *Context {
	return &Context{
		id:    uuid.NewString(),
		space: sp,
		store: store,
	}
}

// ID returns the context's unique identity. Status tokens carry it so
// operators can reject tokens issued by a foreign context.
func (c *Context) ID() string {
	return c.id
}

// Space returns the bound storage space.
func (c *Context) Space() *space.StorageSpace {
	return c.space
}

// Store returns the object-store handle.
func (c *Context) Store() backend.ObjectStore {
	return c.store
}
