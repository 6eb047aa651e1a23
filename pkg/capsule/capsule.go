// Package capsule implements the host-side identity tokens that carry native
// objects across the binding boundary, and the registry that turns tokens
// into typed wrapper values.
package capsule

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	berrors "github.com/chazu/capsulegen/pkg/errors"
)

// Capsule pairs an opaque native pointer with the type tag it was wrapped
// under. Tokens wrapping the same native object are distinct values; only
// the owning token may trigger destruction.
type Capsule struct {
	ID        uuid.UUID
	Tag       string // capsule name of the type family
	ClassName string // full name of the class the value was produced as
	Ptr       any

	mu    sync.Mutex
	owned bool
}

// New creates a borrowed token for ptr.
func New(ptr any, tag, className string) *Capsule {
	return &Capsule{
		ID:        uuid.New(),
		Tag:       tag,
		ClassName: className,
		Ptr:       ptr,
	}
}

// Owned reports whether the token is responsible for destroying its object.
func (c *Capsule) Owned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owned
}

// Adopt makes the token own its native object.
func (c *Capsule) Adopt() {
	c.mu.Lock()
	c.owned = true
	c.mu.Unlock()
}

// Release gives up ownership. It returns true only for the call that
// actually released it, so destruction guarded by Release runs at most once.
func (c *Capsule) Release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.owned {
		return false
	}
	c.owned = false
	return true
}

// Expect verifies the token's tag against the capsule name the caller
// declared.
func (c *Capsule) Expect(tag string) error {
	if c.Tag != tag {
		return berrors.TypeTagMismatch(c.ClassName, tag, c.Tag)
	}
	return nil
}

func (c *Capsule) String() string {
	state := "borrowed"
	if c.Owned() {
		state = "owned"
	}
	return fmt.Sprintf("<capsule %s %s %s>", c.Tag, c.ID, state)
}
