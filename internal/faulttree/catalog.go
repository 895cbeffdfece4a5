package faulttree

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound signals a lookup for an error code the catalog does not
// define. Callers surface this as a no-match result, never a crash.
var ErrNotFound = errors.New("unknown error code")

// Catalog is the immutable fault-tree registry. Build it once at startup
// and share it by reference; it is safe for unlimited concurrent readers.
type Catalog struct {
	defs  map[string]*Definition
	codes []string
}

// NewCatalog validates the definitions and freezes them into a catalog.
// It fails fast on duplicate error codes, malformed trees, and related
// codes that reference nothing.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]*Definition, len(defs))}

	for i := range defs {
		d := defs[i]
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := c.defs[d.ErrorCode]; dup {
			return nil, fmt.Errorf("duplicate error code %q", d.ErrorCode)
		}
		c.defs[d.ErrorCode] = &d
	}

	for code, d := range c.defs {
		for _, rel := range d.RelatedCodes {
			if _, ok := c.defs[rel]; !ok {
				return nil, fmt.Errorf("tree %s: related code %q is not defined", code, rel)
			}
		}
	}

	c.codes = make([]string, 0, len(c.defs))
	for code := range c.defs {
		c.codes = append(c.codes, code)
	}
	sort.Strings(c.codes)

	return c, nil
}

// Lookup returns the definition for code or ErrNotFound.
func (c *Catalog) Lookup(code string) (*Definition, error) {
	d, ok := c.defs[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, code)
	}
	return d, nil
}

// Related returns the definitions referenced by code's related_codes,
// in declaration order.
func (c *Catalog) Related(code string) []*Definition {
	d, ok := c.defs[code]
	if !ok {
		return nil
	}
	out := make([]*Definition, 0, len(d.RelatedCodes))
	for _, rel := range d.RelatedCodes {
		if rd, ok := c.defs[rel]; ok {
			out = append(out, rd)
		}
	}
	return out
}

// ErrorCodes returns the known codes, sorted.
func (c *Catalog) ErrorCodes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

func (c *Catalog) Len() int { return len(c.defs) }
