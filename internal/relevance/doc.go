// Package relevance вычисляет метрики качества выдачи.
//
// Pairwise — сравнение двух выдач без оценок: jaccard, rbo50, rbo90,
// frequencyWeighted. Pointwise — метрики по оценкам релевантности
// (релевантен документ с оценкой > 0): Coverage@k, Precision@k, MAP@k, NDCG@k.
package relevance
