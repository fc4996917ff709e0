package relevance

import "math"

// Имена pairwise-метрик.
const (
	MetricJaccard           = "jaccard"
	MetricRBO50             = "rbo50"
	MetricRBO90             = "rbo90"
	MetricFrequencyWeighted = "frequencyWeighted"
)

// Pairwise сравнивает две выдачи.
func Pairwise(a, b []string) map[string]float64 {
	return map[string]float64{
		MetricJaccard:           Jaccard(a, b),
		MetricRBO50:             RBO(a, b, 0.5),
		MetricRBO90:             RBO(a, b, 0.9),
		MetricFrequencyWeighted: FrequencyWeighted(a, b),
	}
}

// Jaccard — |A∩B| / |A∪B|. Для двух пустых выдач 0.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	inter := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return round(float64(inter) / float64(union))
}

// RBO — rank-biased overlap, усечённый на длине более длинной выдачи.
func RBO(a, b []string, p float64) float64 {
	depth := max(len(a), len(b))
	if depth == 0 {
		return 0
	}

	seenA := make(map[string]struct{}, len(a))
	seenB := make(map[string]struct{}, len(b))
	overlap := 0
	sum := 0.0

	for d := 0; d < depth; d++ {
		if d < len(a) {
			id := a[d]
			if _, dup := seenA[id]; !dup {
				seenA[id] = struct{}{}
				if _, ok := seenB[id]; ok {
					overlap++
				}
			}
		}
		if d < len(b) {
			id := b[d]
			if _, dup := seenB[id]; !dup {
				seenB[id] = struct{}{}
				if _, ok := seenA[id]; ok {
					overlap++
				}
			}
		}
		sum += math.Pow(p, float64(d)) * float64(overlap) / float64(d+1)
	}
	return round((1 - p) * sum)
}

// FrequencyWeighted — доля появлений документов, встречающихся в обеих выдачах.
func FrequencyWeighted(a, b []string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)

	shared := 0
	for _, id := range a {
		if _, ok := setB[id]; ok {
			shared++
		}
	}
	for _, id := range b {
		if _, ok := setA[id]; ok {
			shared++
		}
	}
	return round(float64(shared) / float64(total))
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
