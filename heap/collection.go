package heap

import (
	"bytes"
	"fmt"
	"io"

	"github.com/wippyai/pxt-runtime/errors"
)

// CollectionFlags are fixed when a collection is created.
type CollectionFlags uint16

const (
	// OwnsElements makes the collection count references to its elements.
	OwnsElements CollectionFlags = 1 << iota
	// StringSemantics makes searches compare byte content instead of identity.
	StringSemantics
)

// NotFound is returned by IndexOf when nothing matches.
const NotFound = -1

// Collection is an ordered, growable sequence of handles.
type Collection struct {
	refObject
	data  []Handle
	flags CollectionFlags
}

// MkCollection allocates an empty collection.
func (h *Heap) MkCollection(flags CollectionFlags) *Collection {
	c := &Collection{flags: flags}
	h.track(c)
	return c
}

func (c *Collection) Kind() Kind { return KindCollection }

func (c *Collection) Flags() CollectionFlags { return c.flags }

func (c *Collection) owns() bool { return c.flags&OwnsElements != 0 }

func (c *Collection) Len() int { return len(c.data) }

func (c *Collection) inRange(i int) bool {
	return i >= 0 && i < len(c.data)
}

// Push appends x, adding a reference when the collection owns its elements.
func (c *Collection) Push(x Handle) {
	if c.owns() {
		Incr(x)
	}
	c.data = append(c.data, x)
}

// GetAt returns element i, with a new reference when the collection owns its
// elements. Out of range indexes are reported and yield Null; execution
// continues.
func (c *Collection) GetAt(i int) Handle {
	if !c.inRange(i) {
		c.heap.warn(errors.IndexOutOfBounds("collection.getAt", errors.SubCollectionGet, i, 0, len(c.data)))
		return Null
	}
	x := c.data[i]
	if c.owns() {
		Incr(x)
	}
	return x
}

// SetAt overwrites element i. Out of range indexes are ignored.
func (c *Collection) SetAt(i int, x Handle) {
	if !c.inRange(i) {
		return
	}
	if c.owns() {
		Decr(c.data[i])
		Incr(x)
	}
	c.data[i] = x
}

// RemoveAt deletes element i, keeping the order of the rest. Out of range
// indexes are ignored.
func (c *Collection) RemoveAt(i int) {
	if !c.inRange(i) {
		return
	}
	if c.owns() {
		Decr(c.data[i])
	}
	copy(c.data[i:], c.data[i+1:])
	c.data[len(c.data)-1] = Null
	c.data = c.data[:len(c.data)-1]
}

// IndexOf returns the first index at or after start holding an element equal
// to x, or NotFound.
func (c *Collection) IndexOf(x Handle, start int) int {
	if !c.inRange(start) {
		return NotFound
	}

	if c.flags&StringSemantics != 0 {
		want, ok := contentOf(x)
		if !ok {
			return NotFound
		}
		for i := start; i < len(c.data); i++ {
			got, ok := contentOf(c.data[i])
			if ok && bytes.Equal(want, got) {
				return i
			}
		}
		return NotFound
	}

	for i := start; i < len(c.data); i++ {
		if c.data[i] == x {
			return i
		}
	}
	return NotFound
}

// RemoveElement removes the first element equal to x and reports whether one
// was found.
func (c *Collection) RemoveElement(x Handle) bool {
	i := c.IndexOf(x, 0)
	if i == NotFound {
		return false
	}
	c.RemoveAt(i)
	return true
}

func (c *Collection) Print(w io.Writer) {
	first := "null"
	if len(c.data) > 0 {
		first = c.data[0].String()
	}
	fmt.Fprintf(w, "collection#%d r=%d flags=%d size=%d [%s, ...]\n", c.id, c.refcnt, c.flags, len(c.data), first)
}

func (c *Collection) Equals(other Object) bool {
	return Object(c) == other
}

func (c *Collection) destroy() {
	if c.owns() {
		for i := range c.data {
			Decr(c.data[i])
			c.data[i] = Null
		}
	}
	c.data = nil
}
