package aggregate

import (
	"fmt"
	"strconv"
	"strings"
)

// BaseSpec defines a base cohort as the union of named sources.
type BaseSpec struct {
	Name    string
	Sources []string
}

// DerivedSpec defines a derived cohort as the intersect-union of the base
// cohorts at the given arity.
type DerivedSpec struct {
	Name  string
	Arity int
}

// DefaultBaseSpecs are the four base tiers of the distribution.
func DefaultBaseSpecs() []BaseSpec {
	return []BaseSpec{
		{Name: "01 The Farmer", Sources: []string{"ycrv", "yfi/dai", "rewards"}},
		{Name: "02 The Staker", Sources: []string{"yfi/ycrv", "ygov"}},
		{Name: "03 The Voter", Sources: []string{"voters"}},
		{Name: "04 The Giver", Sources: []string{"coordinape", "ygift"}},
	}
}

// DefaultDerivedSpecs are the rare tiers, by number of base tiers held.
func DefaultDerivedSpecs() []DerivedSpec {
	return []DerivedSpec{
		{Name: "05 The Lunar Guild", Arity: 2},
		{Name: "06 The Sun's Work", Arity: 3},
		{Name: "07 The Celestial Sphere", Arity: 4},
	}
}

// ParseBaseSpec parses "name=source+source".
func ParseBaseSpec(input string) (BaseSpec, error) {
	name, value, err := splitSpec(input)
	if err != nil {
		return BaseSpec{}, err
	}
	var sources []string
	for _, source := range strings.Split(value, "+") {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		sources = append(sources, source)
	}
	if len(sources) == 0 {
		return BaseSpec{}, fmt.Errorf("cohort %q has no sources", name)
	}
	return BaseSpec{Name: name, Sources: sources}, nil
}

// ParseDerivedSpec parses "name=k".
func ParseDerivedSpec(input string) (DerivedSpec, error) {
	name, value, err := splitSpec(input)
	if err != nil {
		return DerivedSpec{}, err
	}
	arity, err := strconv.Atoi(value)
	if err != nil {
		return DerivedSpec{}, fmt.Errorf("derived cohort %q: invalid arity %q", name, value)
	}
	return DerivedSpec{Name: name, Arity: arity}, nil
}

// ParseBaseSpecs parses every entry, falling back to the defaults when empty.
func ParseBaseSpecs(inputs []string) ([]BaseSpec, error) {
	if len(inputs) == 0 {
		return DefaultBaseSpecs(), nil
	}
	specs := make([]BaseSpec, 0, len(inputs))
	for _, input := range inputs {
		spec, err := ParseBaseSpec(input)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ParseDerivedSpecs parses every entry, falling back to the defaults when empty.
func ParseDerivedSpecs(inputs []string) ([]DerivedSpec, error) {
	if len(inputs) == 0 {
		return DefaultDerivedSpecs(), nil
	}
	specs := make([]DerivedSpec, 0, len(inputs))
	for _, input := range inputs {
		spec, err := ParseDerivedSpec(input)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func splitSpec(input string) (string, string, error) {
	parts := strings.SplitN(input, "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid cohort spec %q, want name=value", input)
	}
	name := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if name == "" || value == "" {
		return "", "", fmt.Errorf("invalid cohort spec %q, want name=value", input)
	}
	return name, value, nil
}
