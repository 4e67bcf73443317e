package shuffle

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/allocator"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/bucket"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/detector"
	"github.com/HannahMarsh/shuffle-defense-simulation/internal/simulation/suspicion"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func members(n int) []*bucket.User {
	ret := make([]*bucket.User, n)
	for i := range ret {
		ret[i] = &bucket.User{Id: bucket.UserID(i + 1)}
	}
	return ret
}

func sortedIds(groups [][]*bucket.User) []int {
	ids := make([]int, 0)
	for _, g := range groups {
		for _, u := range g {
			ids = append(ids, int(u.Id))
		}
	}
	sort.Ints(ids)
	return ids
}

func TestSplitProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("partition keeps every member exactly once with floor/ceil sizes", prop.ForAll(
		func(n, k int, shuffled bool, seed int64) bool {
			var rng *rand.Rand
			if shuffled {
				rng = rand.New(rand.NewSource(seed))
			}
			k = PartitionCount(float64(k), 1, n)
			if k <= 1 {
				return true
			}
			groups := Partition(members(n), k, rng)
			if len(groups) != k {
				return false
			}
			ids := sortedIds(groups)
			if len(ids) != n {
				return false
			}
			for i, id := range ids {
				if id != i+1 {
					return false
				}
			}
			lo, hi := n/k, (n+k-1)/k
			for _, g := range groups {
				if len(g) != lo && len(g) != hi {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 80),
		gen.IntRange(0, 100),
		gen.Bool(),
		gen.Int64(),
	))

	properties.Property("partition count never exceeds the user count", prop.ForAll(
		func(risk, perBucket float64, users int) bool {
			k := PartitionCount(risk, perBucket, users)
			return k <= 1 || k <= users
		},
		gen.Float64Range(0, 1000),
		gen.Float64Range(0.01, 10),
		gen.IntRange(1, 100),
	))

	properties.Property("a tick without attacks changes nothing", prop.ForAll(
		func(n, capacity int) bool {
			a, _ := allocator.New(capacity)
			d, _ := detector.New(containsOracle{})
			tr, _ := suspicion.NewTracker(1)
			m, err := NewManager(a, d, tr, attackerSet{}, Options{RiskPerBucket: 0.01, EvictIsolated: true})
			if err != nil || m.Populate(members(n)) != nil {
				return false
			}
			// seed some risk so a spurious reshuffle would be visible
			for _, b := range a.Buckets() {
				tr.RecordAttack(b, 0)
			}
			before := m.Snapshot()
			if _, err = m.Tick(context.Background()); err != nil {
				return false
			}
			after := m.Snapshot()
			if len(before.Buckets) != len(after.Buckets) {
				return false
			}
			for i := range before.Buckets {
				b, c := before.Buckets[i], after.Buckets[i]
				if b.Id != c.Id || len(b.Users) != len(c.Users) {
					return false
				}
				for j := range b.Users {
					if b.Users[j] != c.Users[j] || b.Risk[j] != c.Risk[j] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(0, 100),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}
