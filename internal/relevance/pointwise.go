package relevance

import (
	"fmt"
	"math"
	"sort"
)

// Pointwise вычисляет метрики выдачи docIDs по оценкам ratings (docID → оценка).
// k — глубина оценки; при k <= 0 берётся длина выдачи.
func Pointwise(docIDs []string, ratings map[string]float64, k int) map[string]float64 {
	if k <= 0 {
		k = len(docIDs)
	}
	top := docIDs
	if len(top) > k {
		top = top[:k]
	}

	return map[string]float64{
		fmt.Sprintf("Coverage@%d", k):  coverage(top, ratings, k),
		fmt.Sprintf("Precision@%d", k): precision(top, ratings, k),
		fmt.Sprintf("MAP@%d", k):       averagePrecision(top, ratings, k),
		fmt.Sprintf("NDCG@%d", k):      ndcg(top, ratings, k),
	}
}

func coverage(top []string, ratings map[string]float64, k int) float64 {
	if k == 0 {
		return 0
	}
	judged := 0
	for _, id := range top {
		if _, ok := ratings[id]; ok {
			judged++
		}
	}
	return round(float64(judged) / float64(k))
}

func precision(top []string, ratings map[string]float64, k int) float64 {
	if k == 0 {
		return 0
	}
	relevant := 0
	for _, id := range top {
		if ratings[id] > 0 {
			relevant++
		}
	}
	return round(float64(relevant) / float64(k))
}

func averagePrecision(top []string, ratings map[string]float64, k int) float64 {
	totalRelevant := 0
	for _, r := range ratings {
		if r > 0 {
			totalRelevant++
		}
	}
	denom := min(totalRelevant, k)
	if denom == 0 {
		return 0
	}

	hits := 0
	sum := 0.0
	for i, id := range top {
		if ratings[id] > 0 {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return round(sum / float64(denom))
}

func ndcg(top []string, ratings map[string]float64, k int) float64 {
	dcg := 0.0
	for i, id := range top {
		dcg += gain(ratings[id], i)
	}

	ideal := make([]float64, 0, len(ratings))
	for _, r := range ratings {
		if r > 0 {
			ideal = append(ideal, r)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	if len(ideal) > k {
		ideal = ideal[:k]
	}

	idcg := 0.0
	for i, r := range ideal {
		idcg += gain(r, i)
	}
	if idcg == 0 {
		return 0
	}
	return round(dcg / idcg)
}

func gain(rating float64, pos int) float64 {
	if rating <= 0 {
		return 0
	}
	return (math.Pow(2, rating) - 1) / math.Log2(float64(pos)+2)
}
