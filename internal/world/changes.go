package world

import "github.com/zyedidia/generic/mapset"

// Changes accumulates cells whose appearance changed since the last mesh
// rebuild. Each cell is kept once, in the order it was first marked.
type Changes struct {
	seen  mapset.Set[*Cell]
	order []*Cell
}

// NewChanges creates an empty change set.
func NewChanges() *Changes {
	return &Changes{seen: mapset.New[*Cell]()}
}

// Mark records cells as changed.
func (c *Changes) Mark(cells ...*Cell) {
	for _, cell := range cells {
		if cell == nil || c.seen.Has(cell) {
			continue
		}
		c.seen.Put(cell)
		c.order = append(c.order, cell)
	}
}

// Len returns the number of pending cells.
func (c *Changes) Len() int {
	return len(c.order)
}

// Drain returns the pending cells and resets the set.
func (c *Changes) Drain() []*Cell {
	out := c.order
	c.order = nil
	c.seen = mapset.New[*Cell]()
	return out
}
