package db

import "github.com/kailas-cloud/astrocat/internal/domain/query/filter"

// KNNQuery is the input for a nearest-neighbour search over direction vectors.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is the input for a filtered, paged scan of an index.
type ListQuery struct {
	IndexName    string
	Filters      filter.Expression
	Offset       int
	Limit        int
	SortBy       string
	Descending   bool
	ReturnFields []string
}

// ScanQuery is the input for an unordered full scan of every matching document.
// Unlike ListQuery it has no offset ceiling and returns each document exactly once.
type ScanQuery struct {
	IndexName  string
	Filters    filter.Expression
	BatchSize  int
	LoadFields []string
}

// Reducer is an FT.AGGREGATE reduce function.
type Reducer string

// Supported reducers.
const (
	ReduceCount Reducer = "COUNT"
	ReduceAvg   Reducer = "AVG"
	ReduceMin   Reducer = "MIN"
	ReduceMax   Reducer = "MAX"
)

// Reduction applies a reducer to a field and names the output column.
type Reduction struct {
	Reducer Reducer
	Field   string // empty for COUNT
	As      string
}

// AggregateQuery groups matching documents by one field and reduces each group.
type AggregateQuery struct {
	IndexName  string
	Filters    filter.Expression
	GroupBy    string
	Reductions []Reduction
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
// Score is the raw vector distance for KNN queries and zero otherwise.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
