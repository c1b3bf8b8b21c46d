package runner

import (
	"math/rand"
	"sort"
)

// Sampler draws a reproducible subset of test-case titles for sanity
// runs. The same seed always yields the same selection, so a sampled run
// can be replayed exactly.
type Sampler struct {
	rnd *rand.Rand
}

// NewSampler creates a sampler from a fixed seed.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Sample returns up to k titles drawn without replacement from the
// group, in the group's source order.
func (s *Sampler) Sample(g Group, k int) []string {
	if k >= len(g.TestCases) {
		titles := make([]string, 0, len(g.TestCases))
		for _, tc := range g.TestCases {
			titles = append(titles, tc.Title)
		}

		return titles
	}

	picked := s.rnd.Perm(len(g.TestCases))[:k]
	sort.Ints(picked)

	titles := make([]string, 0, k)
	for _, i := range picked {
		titles = append(titles, g.TestCases[i].Title)
	}

	return titles
}
