package analytics

import "rollbook/pkg/contracts/domain"

// accumulator sums present/total counts per key and remembers the order in
// which keys were first seen.
type accumulator struct {
	order  []string
	counts map[string]*[2]int
}

func newAccumulator() *accumulator {
	return &accumulator{counts: make(map[string]*[2]int)}
}

func (a *accumulator) add(key string, present, total int) {
	c, ok := a.counts[key]
	if !ok {
		c = &[2]int{}
		a.counts[key] = c
		a.order = append(a.order, key)
	}
	c[0] += present
	c[1] += total
}

func (a *accumulator) series() domain.RateSeries {
	out := make(domain.RateSeries, 0, len(a.order))
	for _, key := range a.order {
		c := a.counts[key]
		out = append(out, domain.BucketRate{
			Key:     key,
			Present: c[0],
			Total:   c[1],
			Rate:    domain.Ratio(c[0], c[1]),
		})
	}
	return out
}
