package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/astrocat/internal/db"
	"github.com/kailas-cloud/astrocat/internal/domain/query/filter"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Unavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")))

	s := NewStoreForTest(c)
	err := s.Ping(context.Background())
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Error("nil must stay nil")
	}
	if err := classify(context.Canceled); !errors.Is(err, context.Canceled) || errors.Is(err, db.ErrUnavailable) {
		t.Errorf("cancellation must pass through, got %v", err)
	}
	if err := classify(errors.New("io: broken pipe")); !errors.Is(err, db.ErrUnavailable) {
		t.Errorf("transport error must be unavailable, got %v", err)
	}
}

// --- hash.go tests ---

func TestHSet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET" && cmd[1] == "astrocat:obj:GAIA-1"
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "astrocat:obj:GAIA-1", map[string]string{"ra": "10.5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHSet_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "HSET"
		})).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c)
	err := s.HSet(context.Background(), "k", map[string]string{"f": "v"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline to be preserved, got %v", err)
	}
}

func TestHSetMulti_PartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(2)),
			mock.Result(mock.RedisError("OOM command not allowed")),
		})

	s := NewStoreForTest(c)
	errs := s.HSetMulti(context.Background(), []db.HashSetItem{
		{Key: "k1", Fields: map[string]string{"f1": "v1"}},
		{Key: "k2", Fields: map[string]string{"f2": "v2"}},
	})
	if len(errs) != 2 {
		t.Fatalf("expected per-item errors, got %v", errs)
	}
	if errs[0] != nil {
		t.Errorf("item 0 should succeed, got %v", errs[0])
	}
	if errs[1] == nil || !strings.Contains(errs[1].Error(), "k2") {
		t.Errorf("item 1 error = %v", errs[1])
	}
}

func TestHSetMulti_AllOK(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.Result(mock.RedisInt64(1))})

	s := NewStoreForTest(c)
	if errs := s.HSetMulti(context.Background(), []db.HashSetItem{{Key: "k", Fields: map[string]string{"a": "b"}}}); errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if errs := s.HSetMulti(context.Background(), nil); errs != nil {
		t.Fatalf("empty batch: %v", errs)
	}
}

func TestHGetAll_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "k")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{
			"ra":  mock.RedisString("10.5"),
			"dec": mock.RedisString("-3"),
		})))

	s := NewStoreForTest(c)
	m, err := s.HGetAll(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["ra"] != "10.5" || m["dec"] != "-3" {
		t.Errorf("unexpected map: %v", m)
	}
}

func TestHGetAll_Missing(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HGETALL", "missing")).
		Return(mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})))

	s := NewStoreForTest(c)
	_, err := s.HGetAll(context.Background(), "missing")
	if !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHGetAllMulti_MissingIsNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{"f": mock.RedisString("a")})),
			mock.Result(mock.RedisMap(map[string]rueidis.RedisMessage{})),
		})

	s := NewStoreForTest(c)
	results, err := s.HGetAllMulti(context.Background(), []string{"k1", "k2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[0]["f"] != "a" || results[1] != nil {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestHIncrBy(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("HINCRBY", "k", "observation_count", "1")).
		Return(mock.Result(mock.RedisInt64(4)))

	s := NewStoreForTest(c)
	n, err := s.HIncrBy(context.Background(), "k", "observation_count", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("n = %d, want 4", n)
	}
}

func TestDel_Multiple(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("DEL", "a", "b")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	n, err := s.Del(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}

	if n, err := s.Del(context.Background()); err != nil || n != 0 {
		t.Errorf("empty Del = %d, %v", n, err)
	}
}

func TestExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("EXISTS", "k")).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c)
	ok, err := s.Exists(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}
}

func TestScan_MultiPage(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN"
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42), // cursor=42 means more
					mock.RedisArray(mock.RedisString("key1")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0), // cursor=0 means done
				mock.RedisArray(mock.RedisString("key2")),
			))
		}).Times(2)

	s := NewStoreForTest(c)
	keys, err := s.Scan(context.Background(), "astrocat:obj:*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
}

// --- kv.go tests ---

func TestIncr(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("INCR", "astrocat:seq")).
		Return(mock.Result(mock.RedisInt64(7)))

	s := NewStoreForTest(c)
	n, err := s.Incr(context.Background(), "astrocat:seq")
	if err != nil || n != 7 {
		t.Fatalf("Incr = %d, %v", n, err)
	}
}

// --- index.go tests ---

func TestCreateIndex_Args(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var captured []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.CREATE" {
				return false
			}
			captured = cmd
			return true
		})).
		Return(mock.Result(mock.RedisString("OK")))

	def := db.NewIndex("objs").
		Prefix("obj:").
		SortableTag("type").
		SortableNumeric("magnitude").
		VectorFlat("direction", 3, db.DistanceL2).
		MustBuild()

	s := NewStoreForTest(c)
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(captured, " ")
	for _, want := range []string{
		"FT.CREATE objs ON HASH PREFIX 1 obj: SCHEMA",
		"type TAG CASESENSITIVE SORTABLE",
		"magnitude NUMERIC SORTABLE",
		"direction VECTOR FLAT 6 TYPE FLOAT32 DIM 3 DISTANCE_METRIC L2",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c)
	err := s.CreateIndex(context.Background(), db.NewIndex("objs").Numeric("ra").MustBuild())
	if !errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestCreateIndex_Invalid(t *testing.T) {
	s := NewStoreForTest(nil)
	if err := s.CreateIndex(context.Background(), &db.IndexDefinition{Name: "x"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestDropIndex_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.DROPINDEX", "objs")).
		Return(mock.Result(mock.RedisError("Unknown Index name")))

	s := NewStoreForTest(c)
	if err := s.DropIndex(context.Background(), "objs"); !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "objs")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("objs")))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "objs")).
			Return(mock.Result(mock.RedisError("Unknown Index name"))),
	)

	s := NewStoreForTest(c)
	if ok, err := s.IndexExists(context.Background(), "objs"); err != nil || !ok {
		t.Fatalf("first IndexExists = %v, %v", ok, err)
	}
	if ok, err := s.IndexExists(context.Background(), "objs"); err != nil || ok {
		t.Fatalf("second IndexExists = %v, %v", ok, err)
	}
}

// --- search.go tests ---

func TestSearchKNN_ScoresAreDistances(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var query string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			if cmd[0] != "FT.SEARCH" {
				return false
			}
			query = cmd[2]
			return true
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(1),
			mock.RedisString("obj:A"),
			mock.RedisArray(
				mock.RedisString("__dist"),
				mock.RedisString("0.0001"),
				mock.RedisString("type"),
				mock.RedisString("STAR"),
			),
		)))

	typ, _ := filter.NewMatch("type", "STAR")
	expr, _ := filter.NewExpression([]filter.Condition{typ}, nil, nil)

	s := NewStoreForTest(c)
	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:   "objs",
		VectorField: "direction",
		Filters:     expr,
		Vector:      []float32{1, 0, 0},
		K:           1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "(@type:{STAR})=>[KNN 1 @direction $BLOB AS __dist]" {
		t.Errorf("query = %q", query)
	}
	if len(res.Entries) != 1 || res.Entries[0].Key != "obj:A" {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if res.Entries[0].Score != 0.0001 {
		t.Errorf("score = %g, want raw distance", res.Entries[0].Score)
	}
	if _, ok := res.Entries[0].Fields["__dist"]; ok {
		t.Error("distance field should be stripped")
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := NewStoreForTest(nil)
	cases := []*db.KNNQuery{
		{VectorField: "v", Vector: []float32{1}, K: 1},
		{IndexName: "i", Vector: []float32{1}, K: 1},
		{IndexName: "i", VectorField: "v", K: 1},
		{IndexName: "i", VectorField: "v", Vector: []float32{1}},
	}
	for i, q := range cases {
		if _, err := s.SearchKNN(context.Background(), q); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestSearchList_SortAndPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var args []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			args = cmd
			return cmd[0] == "FT.SEARCH"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(12),
			mock.RedisString("obj:1"),
			mock.RedisArray(mock.RedisString("magnitude"), mock.RedisString("9.5")),
		)))

	s := NewStoreForTest(c)
	res, err := s.SearchList(context.Background(), &db.ListQuery{
		IndexName: "objs",
		Offset:    10,
		Limit:     5,
		SortBy:    "magnitude",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Total != 12 || len(res.Entries) != 1 {
		t.Fatalf("result = %+v", res)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "objs * SORTBY magnitude ASC LIMIT 10 5") {
		t.Errorf("args = %q", joined)
	}
}

func TestSearchCount(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "@type:{GALAXY}"
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(3))))

	typ, _ := filter.NewMatch("type", "GALAXY")
	expr, _ := filter.NewExpression([]filter.Condition{typ}, nil, nil)

	s := NewStoreForTest(c)
	n, err := s.SearchCount(context.Background(), &db.ListQuery{IndexName: "objs", Filters: expr})
	if err != nil || n != 3 {
		t.Fatalf("SearchCount = %d, %v", n, err)
	}
}

func TestAggregate(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var args []string
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			args = cmd
			return cmd[0] == "FT.AGGREGATE"
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisArray(
				mock.RedisString("type"), mock.RedisString("STAR"),
				mock.RedisString("avg"), mock.RedisString("12.5"),
			),
			mock.RedisArray(
				mock.RedisString("type"), mock.RedisString("GALAXY"),
				mock.RedisString("avg"), mock.RedisString("18"),
			),
		)))

	s := NewStoreForTest(c)
	rows, err := s.Aggregate(context.Background(), &db.AggregateQuery{
		IndexName: "objs",
		GroupBy:   "type",
		Reductions: []db.Reduction{
			{Reducer: db.ReduceCount, As: "n"},
			{Reducer: db.ReduceAvg, Field: "magnitude", As: "avg"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[1]["type"] != "GALAXY" || rows[0]["avg"] != "12.5" {
		t.Errorf("rows = %v", rows)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "GROUPBY 1 @type REDUCE COUNT 0 AS n REDUCE AVG 1 @magnitude AS avg") {
		t.Errorf("args = %q", joined)
	}
}

func cursorRow(key, dec string) rueidis.RedisMessage {
	return mock.RedisArray(
		mock.RedisString("__key"), mock.RedisString(key),
		mock.RedisString("dec"), mock.RedisString(dec),
	)
}

func TestSearchScan_FollowsCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	var first []string
	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				first = cmd
				return cmd[0] == "FT.AGGREGATE"
			})).
			Return(mock.Result(mock.RedisArray(
				mock.RedisArray(mock.RedisInt64(3), cursorRow("obj:a", "5"), cursorRow("obj:b", "5")),
				mock.RedisInt64(42),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.CURSOR", "READ", "objs", "42", "COUNT", "2")).
			Return(mock.Result(mock.RedisArray(
				mock.RedisArray(mock.RedisInt64(3), cursorRow("obj:c", "5")),
				mock.RedisInt64(0),
			))),
	)

	s := NewStoreForTest(c)
	var keys []string
	err := s.SearchScan(context.Background(), &db.ScanQuery{
		IndexName:  "objs",
		BatchSize:  2,
		LoadFields: []string{"dec"},
	}, func(batch []db.SearchEntry) error {
		for _, e := range batch {
			if e.Fields["dec"] != "5" {
				t.Errorf("%s: fields = %v", e.Key, e.Fields)
			}
			if _, ok := e.Fields["__key"]; ok {
				t.Errorf("%s: key must not leak into fields", e.Key)
			}
			keys = append(keys, e.Key)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(keys, ",") != "obj:a,obj:b,obj:c" {
		t.Errorf("keys = %v", keys)
	}
	joined := strings.Join(first, " ")
	if !strings.Contains(joined, "LOAD 2 @__key @dec WITHCURSOR COUNT 2") {
		t.Errorf("args = %q", joined)
	}
	if strings.Contains(joined, "LIMIT") {
		t.Errorf("a cursor scan must not page by offset: %q", joined)
	}
}

func TestSearchScan_EarlyStopReleasesCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.AGGREGATE" })).
			Return(mock.Result(mock.RedisArray(
				mock.RedisArray(mock.RedisInt64(10), cursorRow("obj:a", "1")),
				mock.RedisInt64(9),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.CURSOR", "DEL", "objs", "9")).
			Return(mock.Result(mock.RedisString("OK"))),
	)

	stop := errors.New("enough")
	s := NewStoreForTest(c)
	err := s.SearchScan(context.Background(), &db.ScanQuery{IndexName: "objs"}, func([]db.SearchEntry) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

// --- filter building ---

func TestBuildFilter(t *testing.T) {
	types, _ := filter.NewMatch("type", "STAR", "QUASAR")
	catalog, _ := filter.NewMatch("catalog", "GAIA-DR3")
	seam, _ := filter.NewExpression(
		[]filter.Condition{filter.Between("dec", -1, 1), types},
		[]filter.Condition{filter.Between("ra", 359, 360), filter.Between("ra", 0, 1)},
		[]filter.Condition{catalog},
	)
	negOnly, _ := filter.NewExpression(nil, nil, []filter.Condition{types})
	gt, _ := filter.NewRangeFilter(floatPtr(0.5), nil, nil, nil)
	gtCond, _ := filter.NewRange("significance", gt)
	exclusive, _ := filter.NewExpression([]filter.Condition{gtCond}, nil, nil)

	tests := []struct {
		name string
		expr filter.Expression
		want string
	}{
		{"empty", filter.Expression{}, "*"},
		{"seam window", seam, "@dec:[-1 1] @type:{STAR | QUASAR} (@ra:[359 360] | @ra:[0 1]) -@catalog:{GAIA\\-DR3}"},
		{"negative only", negOnly, "* -@type:{STAR | QUASAR}"},
		{"exclusive bound", exclusive, "@significance:[(0.5 +inf]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildFilter(tt.expr); got != tt.want {
				t.Errorf("buildFilter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatNumber_NoExponent(t *testing.T) {
	if got := formatNumber(359.9999999); got != "359.9999999" {
		t.Errorf("formatNumber = %q", got)
	}
	if got := formatNumber(1e-7); strings.ContainsAny(got, "eE") {
		t.Errorf("formatNumber = %q, want plain decimal", got)
	}
}

func TestVectorToBytes(t *testing.T) {
	b := vectorToBytes([]float32{1, 0, 0})
	if len(b) != 12 {
		t.Fatalf("len = %d, want 12", len(b))
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 0x80 || b[3] != 0x3f {
		t.Errorf("little-endian float32(1) mismatch: % x", []byte(b[:4]))
	}
}

// --- helpers ---

func floatPtr(f float64) *float64 { return &f }

func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
