package app

// Range полуинтервал глобальных индексов [Start, End)
type Range struct {
	Start, End int
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Partition делит индексы 0..n-1 на workers смежных групп: первые
// n%workers групп получают на один элемент больше остальных.
func Partition(n, workers int) []Range {
	per, rem := n/workers, n%workers

	ranges := make([]Range, workers)
	start := 0
	for i := range ranges {
		size := per
		if i < rem {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}
	return ranges
}
