package catalog

import "sort"

// MaxCompare is the hard cap on the comparison selection.
const MaxCompare = 4

// CompareSet tracks the products selected for side-by-side comparison.
// Toggling a fifth member on is rejected and the set left unchanged; the
// caller surfaces that as a soft warning, not a failure.
type CompareSet struct {
	members map[string]struct{}
}

func NewCompareSet() *CompareSet {
	return &CompareSet{members: make(map[string]struct{}, MaxCompare)}
}

// Toggle flips membership for id and reports whether the toggle was
// applied. Toggling off always succeeds.
func (c *CompareSet) Toggle(id string) bool {
	if _, ok := c.members[id]; ok {
		delete(c.members, id)
		return true
	}
	if len(c.members) >= MaxCompare {
		return false
	}
	c.members[id] = struct{}{}
	return true
}

func (c *CompareSet) Contains(id string) bool {
	_, ok := c.members[id]
	return ok
}

func (c *CompareSet) Len() int {
	return len(c.members)
}

func (c *CompareSet) Clear() {
	c.members = make(map[string]struct{}, MaxCompare)
}

// Members returns the selected ids in a stable order.
func (c *CompareSet) Members() []string {
	ids := make([]string, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
