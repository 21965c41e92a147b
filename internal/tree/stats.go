package tree

// Stats is the running aggregate kept per key.
type Stats struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

func single(v float64) Stats {
	return Stats{Count: 1, Sum: v, Min: v, Max: v}
}

// Add folds one observation into s.
func (s *Stats) Add(v float64) {
	s.Count++
	s.Sum += v
	s.Min = min(s.Min, v)
	s.Max = max(s.Max, v)
}

// Merge folds another aggregate into s. Merging an empty aggregate is a no-op.
func (s *Stats) Merge(o Stats) {
	if o.Count == 0 {
		return
	}
	if s.Count == 0 {
		*s = o
		return
	}
	s.Count += o.Count
	s.Sum += o.Sum
	s.Min = min(s.Min, o.Min)
	s.Max = max(s.Max, o.Max)
}

// Mean returns Sum/Count, or 0 for an empty aggregate.
func (s Stats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}
