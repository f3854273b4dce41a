package aggregate

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortSnapshot/internal/model"
)

func cohortsOf(t *testing.T, pairs ...interface{}) *Cohorts {
	t.Helper()
	c := NewCohorts()
	for i := 0; i < len(pairs); i += 2 {
		require.NoError(t, c.Add(pairs[i].(string), pairs[i+1].(model.Set[string])))
	}
	return c
}

func TestIntersectUnionScenario(t *testing.T) {
	c := cohortsOf(t,
		"A", model.NewSet("x", "y"),
		"B", model.NewSet("y", "z"),
		"C", model.NewSet("z", "x"),
	)

	got, err := IntersectUnion(c, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, model.Sorted(got))

	got, err = IntersectUnion(c, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntersectUnionArity(t *testing.T) {
	c := cohortsOf(t, "A", model.NewSet("x"), "B", model.NewSet("x"))

	_, err := IntersectUnion(c, 0)
	assert.Error(t, err)
	_, err = IntersectUnion(c, 3)
	assert.Error(t, err)

	got, err := IntersectUnion(c, 1)
	require.NoError(t, err)
	assert.True(t, got.Equal(model.NewSet("x")))
}

func TestIntersectUnionMembershipCount(t *testing.T) {
	// "a" is in one cohort, "b" in two, "c" in three, "d" in all four.
	c := cohortsOf(t,
		"A", model.NewSet("a", "b", "c", "d"),
		"B", model.NewSet("b", "c", "d"),
		"C", model.NewSet("c", "d"),
		"D", model.NewSet("d"),
	)

	want := map[int][]string{
		1: {"a", "b", "c", "d"},
		2: {"b", "c", "d"},
		3: {"c", "d"},
		4: {"d"},
	}
	for k, expected := range want {
		got, err := IntersectUnion(c, k)
		require.NoError(t, err)
		assert.Equal(t, expected, model.Sorted(got), "k=%d", k)
	}
}

func randomCohorts(r *rand.Rand, n int) ([]string, []model.Set[string]) {
	names := make([]string, n)
	sets := make([]model.Set[string], n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("c%d", i)
		sets[i] = model.NewSet[string]()
		for j := 0; j < 30; j++ {
			if r.Intn(2) == 0 {
				sets[i].Add(fmt.Sprintf("0x%02d", j))
			}
		}
	}
	return names, sets
}

func TestIntersectUnionProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		n := 2 + r.Intn(4)
		names, sets := randomCohorts(r, n)

		ordered := NewCohorts()
		for i := range names {
			require.NoError(t, ordered.Add(names[i], sets[i]))
		}
		shuffled := NewCohorts()
		for _, i := range r.Perm(n) {
			require.NoError(t, shuffled.Add(names[i], sets[i]))
		}

		union := model.NewSet[string]()
		for _, set := range sets {
			union = union.Union(set)
		}
		everywhere := sets[0].Intersect(sets[1:]...)

		var previous model.Set[string]
		for k := 2; k <= n; k++ {
			got, err := IntersectUnion(ordered, k)
			require.NoError(t, err)

			permuted, err := IntersectUnion(shuffled, k)
			require.NoError(t, err)
			assert.True(t, got.Equal(permuted), "relabeling changed k=%d", k)

			assert.True(t, got.Intersect(union).Equal(got), "k=%d not a subset of the union", k)
			assert.True(t, everywhere.Intersect(got).Equal(everywhere), "k=%d misses common members", k)

			if previous != nil {
				assert.True(t, previous.Intersect(got).Equal(got), "k=%d not contained in k-1", k)
			}
			previous = got

			// brute force: members of at least k cohorts
			brute := model.NewSet[string]()
			for addr := range union {
				count := 0
				for _, set := range sets {
					if set.Has(addr) {
						count++
					}
				}
				if count >= k {
					brute.Add(addr)
				}
			}
			assert.True(t, brute.Equal(got), "k=%d disagrees with membership count", k)
		}
	}
}

func TestCombinations(t *testing.T) {
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, Combinations(4, 2))
	assert.Len(t, Combinations(7, 3), 35)
	assert.Equal(t, [][]int{{0, 1, 2}}, Combinations(3, 3))
	assert.Nil(t, Combinations(2, 3))
}

func TestBuildBase(t *testing.T) {
	sources := model.SourceSet{
		"ycrv":       model.NewSet("0x1", "0x2"),
		"yfi/dai":    model.NewSet("0x2", "0x3"),
		"rewards":    model.NewSet[string](),
		"voters":     model.NewSet("0x9"),
		"coordinape": model.NewSet("0x4"),
	}

	cohorts, err := BuildBase([]BaseSpec{
		{Name: "Farmer", Sources: []string{"ycrv", "yfi/dai", "rewards"}},
		{Name: "Voter", Sources: []string{"voters"}},
	}, sources)
	require.NoError(t, err)

	assert.Equal(t, []string{"Farmer", "Voter"}, cohorts.Names())
	farmer, _ := cohorts.Get("Farmer")
	assert.Equal(t, []string{"0x1", "0x2", "0x3"}, model.Sorted(farmer))

	// sources are not aliased by the cohorts
	farmer.Add("0xdead")
	assert.False(t, sources["ycrv"].Has("0xdead"))
}

func TestBuildBaseUnknownSource(t *testing.T) {
	_, err := BuildBase([]BaseSpec{{Name: "Giver", Sources: []string{"ygfit"}}}, model.SourceSet{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ygfit")
}

func TestBuildBaseDuplicateName(t *testing.T) {
	sources := model.SourceSet{"voters": model.NewSet("0x1")}
	_, err := BuildBase([]BaseSpec{
		{Name: "Voter", Sources: []string{"voters"}},
		{Name: "Voter", Sources: []string{"voters"}},
	}, sources)
	assert.Error(t, err)
}

func TestCohortAggregatorRun(t *testing.T) {
	sources := model.SourceSet{
		"a": model.NewSet("x", "y"),
		"b": model.NewSet("y", "z"),
		"c": model.NewSet("z", "x"),
	}
	cfg := CohortConfig{
		Base: []BaseSpec{
			{Name: "A", Sources: []string{"a"}},
			{Name: "B", Sources: []string{"b"}},
			{Name: "C", Sources: []string{"c"}},
		},
		Derived: []DerivedSpec{{Name: "pair", Arity: 2}, {Name: "triple", Arity: 3}},
	}

	t.Run("base only", func(t *testing.T) {
		cohorts, err := NewCohortAggregator(cfg, nil).Run(sources)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, cohorts.Names())
	})

	t.Run("with derived", func(t *testing.T) {
		cfg := cfg
		cfg.DeriveEnabled = true
		cohorts, err := NewCohortAggregator(cfg, nil).Run(sources)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C", "pair", "triple"}, cohorts.Names())

		pair, _ := cohorts.Get("pair")
		assert.Equal(t, []string{"x", "y", "z"}, model.Sorted(pair))
		triple, _ := cohorts.Get("triple")
		assert.Empty(t, triple)
	})

	t.Run("arity beyond base cohorts", func(t *testing.T) {
		cfg := cfg
		cfg.DeriveEnabled = true
		cfg.Derived = []DerivedSpec{{Name: "quad", Arity: 4}}
		_, err := NewCohortAggregator(cfg, nil).Run(sources)
		assert.Error(t, err)
	})
}

func TestEmptySourcesContributeNothing(t *testing.T) {
	sources := model.SourceSet{"pool": model.NewSet[string](), "voters": model.NewSet("0x1")}
	cohorts, err := BuildBase([]BaseSpec{
		{Name: "Staker", Sources: []string{"pool"}},
		{Name: "Voter", Sources: []string{"voters"}},
	}, sources)
	require.NoError(t, err)

	staker, _ := cohorts.Get("Staker")
	assert.Empty(t, staker)

	pair, err := IntersectUnion(cohorts, 2)
	require.NoError(t, err)
	assert.Empty(t, pair)
}
