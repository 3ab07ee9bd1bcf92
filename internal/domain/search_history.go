package domain

import "time"

// SearchHistory — запись аудита об успешном поисковом запросе. Только добавляется, не изменяется.
type SearchHistory struct {
	ID             string
	QueryImageURL  string // пустая строка, если поиск шёл от существующего товара
	QueryEmbedding Vector
	ResultIDs      []string // в порядке выдачи
	Timestamp      time.Time
}

func NewSearchHistory(queryImageURL string, queryEmbedding Vector, resultIDs []string) *SearchHistory {
	return &SearchHistory{
		QueryImageURL:  queryImageURL,
		QueryEmbedding: queryEmbedding,
		ResultIDs:      resultIDs,
	}
}
