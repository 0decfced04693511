package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain/query/filter"
)

// SearchKNN runs an exact nearest-neighbour search via FT.SEARCH.
// Entry scores are the raw distances reported by the index.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.VectorField == "" {
		return nil, fmt.Errorf("vector field is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB AS __dist]", q.K, q.VectorField)
	queryStr := "*=>" + knnPart
	if !q.Filters.IsEmpty() {
		queryStr = fmt.Sprintf("(%s)=>%s", buildFilter(q.Filters), knnPart)
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		fields := append(append([]string{}, q.ReturnFields...), "__dist")
		args = append(args, "RETURN", strconv.Itoa(len(fields)))
		args = append(args, fields...)
	}
	args = append(args,
		"SORTBY", "__dist", "ASC",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	res, err := parseListResult(raw)
	if err != nil {
		return nil, err
	}
	for i := range res.Entries {
		e := &res.Entries[i]
		if d, ok := e.Fields["__dist"]; ok {
			if v, err := strconv.ParseFloat(d, 64); err == nil {
				e.Score = v
			}
			delete(e.Fields, "__dist")
		}
	}
	return res, nil
}

// SearchList performs a filtered, optionally sorted, paged scan via FT.SEARCH.
func (s *Store) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	args := listArgs(q)
	args = append(args, "LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit))
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	return parseListResult(raw)
}

// SearchCount returns the number of matching documents via FT.SEARCH with LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, q *db.ListQuery) (int, error) {
	args := []string{q.IndexName, buildFilter(q.Filters), "LIMIT", "0", "0", "DIALECT", "2"}
	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, wrap(db.OpSearch, err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// Aggregate groups matching documents and applies reducers via FT.AGGREGATE.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]map[string]string, error) {
	if q.IndexName == "" || q.GroupBy == "" {
		return nil, fmt.Errorf("index name and group-by field are required")
	}
	args := []string{q.IndexName, buildFilter(q.Filters), "GROUPBY", "1", "@" + q.GroupBy}
	for _, r := range q.Reductions {
		if r.Reducer == db.ReduceCount {
			args = append(args, "REDUCE", string(r.Reducer), "0", "AS", r.As)
			continue
		}
		args = append(args, "REDUCE", string(r.Reducer), "1", "@"+r.Field, "AS", r.As)
	}
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, wrap(db.OpAggregate, err)
	}
	return parseAggregateResult(raw), nil
}

// DefaultScanBatch is the cursor batch size when ScanQuery.BatchSize is unset.
const DefaultScanBatch = 1000

// keyField is the pseudo-field FT.AGGREGATE loads the document key into.
const keyField = "__key"

// SearchScan walks every match with FT.AGGREGATE ... WITHCURSOR and FT.CURSOR READ.
// Cursors are not bounded by the server's result-window limit, and each document is read once.
// The cursor is released when the scan stops early.
func (s *Store) SearchScan(ctx context.Context, q *db.ScanQuery, fn func([]db.SearchEntry) error) error {
	if q.IndexName == "" {
		return fmt.Errorf("index name is required")
	}
	batch := q.BatchSize
	if batch <= 0 {
		batch = DefaultScanBatch
	}
	count := strconv.Itoa(batch)

	load := append([]string{"@" + keyField}, prefixed(q.LoadFields)...)
	args := []string{q.IndexName, buildFilter(q.Filters), "LOAD", strconv.Itoa(len(load))}
	args = append(args, load...)
	args = append(args, "WITHCURSOR", "COUNT", count, "DIALECT", "2")

	raw, err := s.do(ctx, s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()).ToArray()
	if err != nil {
		return wrap(db.OpAggregate, err)
	}
	for {
		entries, cursor, err := parseCursorReply(raw)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := fn(entries); err != nil {
				s.releaseCursor(ctx, q.IndexName, cursor)
				return err
			}
		}
		if cursor == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			s.releaseCursor(ctx, q.IndexName, cursor)
			return err
		}
		cmd := s.b().Arbitrary("FT.CURSOR", "READ").
			Args(q.IndexName, strconv.FormatInt(cursor, 10), "COUNT", count).Build()
		if raw, err = s.do(ctx, cmd).ToArray(); err != nil {
			return wrap(db.OpCursor, err)
		}
	}
}

// releaseCursor frees a server-side cursor. Failures only shorten the cursor's idle lifetime.
func (s *Store) releaseCursor(ctx context.Context, index string, cursor int64) {
	if cursor == 0 {
		return
	}
	cmd := s.b().Arbitrary("FT.CURSOR", "DEL").Args(index, strconv.FormatInt(cursor, 10)).Build()
	_ = s.do(context.WithoutCancel(ctx), cmd).Error()
}

func prefixed(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = "@" + f
	}
	return out
}

// parseCursorReply reads [[total, [k, v, ...], ...], cursorID].
func parseCursorReply(raw []rueidis.RedisMessage) ([]db.SearchEntry, int64, error) {
	if len(raw) != 2 {
		return nil, 0, fmt.Errorf("parse cursor reply: expected 2 elements, got %d", len(raw))
	}
	cursor, err := raw[1].AsInt64()
	if err != nil {
		return nil, 0, fmt.Errorf("parse cursor id: %w", err)
	}
	rows, err := raw[0].ToArray()
	if err != nil {
		return nil, 0, fmt.Errorf("parse cursor rows: %w", err)
	}
	entries := make([]db.SearchEntry, 0, len(rows))
	for _, row := range parseAggregateResult(rows) {
		key := row[keyField]
		delete(row, keyField)
		entries = append(entries, db.SearchEntry{Key: key, Fields: row})
	}
	return entries, cursor, nil
}

func listArgs(q *db.ListQuery) []string {
	args := []string{q.IndexName, buildFilter(q.Filters)}
	if q.SortBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		args = append(args, "SORTBY", q.SortBy, dir)
	}
	return args
}

// --- Result parsing ---

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, len(raw)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseAggregateResult reads [total, [k, v, ...], [k, v, ...], ...].
func parseAggregateResult(raw []rueidis.RedisMessage) []map[string]string {
	if len(raw) < 2 {
		return nil
	}
	rows := make([]map[string]string, 0, len(raw)-1)
	for _, r := range raw[1:] {
		fields, err := r.ToArray()
		if err != nil {
			continue
		}
		rows = append(rows, parseFieldPairs(fields))
	}
	return rows
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Filter building ---

// buildFilter translates filter.Expression into an FT.SEARCH query string; "*" when empty.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return "*"
	}

	var parts []string

	for _, cond := range expr.Must() {
		parts = append(parts, buildCondition(cond))
	}

	if shouldParts := buildShouldGroup(expr.Should()); shouldParts != "" {
		parts = append(parts, shouldParts)
	}

	for _, cond := range expr.MustNot() {
		parts = append(parts, "-"+buildCondition(cond))
	}

	if len(parts) == len(expr.MustNot()) {
		// a purely negative query needs a positive anchor
		parts = append([]string{"*"}, parts...)
	}
	return strings.Join(parts, " ")
}

func buildCondition(cond filter.Condition) string {
	if cond.IsMatch() {
		return buildTagFilter(cond.Key(), cond.Values())
	}
	if cond.IsRange() {
		return buildNumericFilter(cond.Key(), *cond.Range())
	}
	return ""
}

func buildShouldGroup(conditions []filter.Condition) string {
	if len(conditions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		parts = append(parts, buildCondition(cond))
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

func buildTagFilter(key string, values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, " | "))
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = "(" + formatNumber(*r.GT())
	} else if r.GTE() != nil {
		minBound = formatNumber(*r.GTE())
	}

	if r.LT() != nil {
		maxBound = "(" + formatNumber(*r.LT())
	} else if r.LTE() != nil {
		maxBound = formatNumber(*r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// formatNumber renders bounds in plain decimal notation.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
