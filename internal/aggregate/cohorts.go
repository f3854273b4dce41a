package aggregate

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"cohortSnapshot/internal/model"
)

// Cohorts is an insertion-ordered mapping from cohort name to its members.
type Cohorts struct {
	m *orderedmap.OrderedMap[string, model.Set[string]]
}

func NewCohorts() *Cohorts {
	return &Cohorts{m: orderedmap.New[string, model.Set[string]]()}
}

// Add appends a cohort. Names are unique.
func (c *Cohorts) Add(name string, members model.Set[string]) error {
	if name == "" {
		return fmt.Errorf("cohort name is required")
	}
	if _, ok := c.m.Get(name); ok {
		return fmt.Errorf("duplicate cohort: %s", name)
	}
	if members == nil {
		members = model.NewSet[string]()
	}
	c.m.Set(name, members)
	return nil
}

func (c *Cohorts) Get(name string) (model.Set[string], bool) {
	return c.m.Get(name)
}

func (c *Cohorts) Len() int {
	return c.m.Len()
}

// Names returns cohort names in insertion order.
func (c *Cohorts) Names() []string {
	names := make([]string, 0, c.m.Len())
	for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each calls fn for every cohort in insertion order.
func (c *Cohorts) Each(fn func(name string, members model.Set[string])) {
	for pair := c.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Sizes returns an ordered mapping of cohort name to cardinality.
func (c *Cohorts) Sizes() *orderedmap.OrderedMap[string, int] {
	sizes := orderedmap.New[string, int]()
	c.Each(func(name string, members model.Set[string]) {
		sizes.Set(name, len(members))
	})
	return sizes
}

// Sorted returns an ordered mapping of cohort name to ascending members,
// the shape written to the snapshot artifact.
func (c *Cohorts) Sorted() *orderedmap.OrderedMap[string, []string] {
	out := orderedmap.New[string, []string]()
	c.Each(func(name string, members model.Set[string]) {
		sorted := model.Sorted(members)
		if sorted == nil {
			sorted = []string{}
		}
		out.Set(name, sorted)
	})
	return out
}
