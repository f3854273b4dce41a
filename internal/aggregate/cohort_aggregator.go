package aggregate

import (
	"fmt"

	"go.uber.org/zap"

	"cohortSnapshot/internal/model"
)

// CohortConfig controls which cohorts are computed.
type CohortConfig struct {
	Base    []BaseSpec
	Derived []DerivedSpec
	// DeriveEnabled turns the rare cohorts on. When false only base cohorts are reported.
	DeriveEnabled bool
}

// CohortAggregator combines source sets into base and derived cohorts.
type CohortAggregator struct {
	cfg    CohortConfig
	logger *zap.Logger
}

func NewCohortAggregator(cfg CohortConfig, logger *zap.Logger) *CohortAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CohortAggregator{cfg: cfg, logger: logger}
}

// Run builds the base cohorts from sources, then the derived cohorts if enabled.
func (a *CohortAggregator) Run(sources model.SourceSet) (*Cohorts, error) {
	base, err := BuildBase(a.cfg.Base, sources)
	if err != nil {
		return nil, err
	}
	base.Each(func(name string, members model.Set[string]) {
		a.logger.Debug("base cohort", zap.String("name", name), zap.Int("size", len(members)))
	})

	if !a.cfg.DeriveEnabled {
		return base, nil
	}

	all, err := Derive(base, a.cfg.Derived)
	if err != nil {
		return nil, err
	}
	return all, nil
}

// BuildBase computes each base cohort as the union of its sources.
// Every referenced source must be present in sources, possibly empty.
func BuildBase(specs []BaseSpec, sources model.SourceSet) (*Cohorts, error) {
	cohorts := NewCohorts()
	for _, spec := range specs {
		members := model.NewSet[string]()
		for _, source := range spec.Sources {
			set, ok := sources[source]
			if !ok {
				return nil, fmt.Errorf("cohort %q: unknown source %q", spec.Name, source)
			}
			members = members.Union(set)
		}
		if err := cohorts.Add(spec.Name, members); err != nil {
			return nil, err
		}
	}
	return cohorts, nil
}

// Derive returns a new mapping holding the base cohorts followed by each
// derived cohort, computed from the base cohorts only.
func Derive(base *Cohorts, specs []DerivedSpec) (*Cohorts, error) {
	out := NewCohorts()
	var err error
	base.Each(func(name string, members model.Set[string]) {
		if err == nil {
			err = out.Add(name, members)
		}
	})
	if err != nil {
		return nil, err
	}

	for _, spec := range specs {
		members, err := IntersectUnion(base, spec.Arity)
		if err != nil {
			return nil, fmt.Errorf("derived cohort %q: %w", spec.Name, err)
		}
		if err := out.Add(spec.Name, members); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// IntersectUnion returns the union, over every k-combination of the cohorts,
// of the intersection of the k cohorts in that combination. An address is a
// member iff some k distinct cohorts all contain it.
func IntersectUnion(cohorts *Cohorts, k int) (model.Set[string], error) {
	n := cohorts.Len()
	if k < 1 {
		return nil, fmt.Errorf("arity must be >= 1, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("arity %d exceeds %d cohorts", k, n)
	}

	sets := make([]model.Set[string], 0, n)
	cohorts.Each(func(_ string, members model.Set[string]) {
		sets = append(sets, members)
	})

	result := model.NewSet[string]()
	for _, combo := range Combinations(n, k) {
		inter := sets[combo[0]].Intersect(pick(sets, combo[1:])...)
		result.Add(inter.ToSlice()...)
	}
	return result, nil
}

func pick(sets []model.Set[string], idx []int) []model.Set[string] {
	out := make([]model.Set[string], 0, len(idx))
	for _, i := range idx {
		out = append(out, sets[i])
	}
	return out
}

// Combinations returns every k-combination of [0, n) in lexicographic order.
func Combinations(n, k int) [][]int {
	if k < 0 || k > n {
		return nil
	}
	combo := make([]int, k)
	for i := range combo {
		combo[i] = i
	}

	var out [][]int
	for {
		out = append(out, append([]int(nil), combo...))

		i := k - 1
		for i >= 0 && combo[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		combo[i]++
		for j := i + 1; j < k; j++ {
			combo[j] = combo[j-1] + 1
		}
	}
}
