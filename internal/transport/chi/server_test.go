package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/astrocat/internal/domain"
	"github.com/kailas-cloud/astrocat/internal/domain/object"
	"github.com/kailas-cloud/astrocat/internal/domain/processing"
	domquality "github.com/kailas-cloud/astrocat/internal/domain/quality"
	wf "github.com/kailas-cloud/astrocat/internal/domain/workflow"
	cataloguc "github.com/kailas-cloud/astrocat/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/astrocat/internal/usecase/health"
	qualityuc "github.com/kailas-cloud/astrocat/internal/usecase/quality"
	workflowuc "github.com/kailas-cloud/astrocat/internal/usecase/workflow"
)

// stubCatalog implements Catalog; unset funcs panic through the nil embedded interface.
type stubCatalog struct {
	Catalog
	cone   func(cataloguc.ConeQuery) ([]object.Hit, error)
	get    func(string) (object.Object, error)
	save   func(object.Draft) (object.Object, error)
	delete func(string) error
	byType func(object.Type, int, int) (object.Page, error)
	purge  func(time.Time) (int, error)
}

func (c *stubCatalog) FindByType(_ context.Context, typ object.Type, offset, limit int) (object.Page, error) {
	return c.byType(typ, offset, limit)
}

func (c *stubCatalog) CleanupTransients(_ context.Context, olderThan time.Time) (int, error) {
	return c.purge(olderThan)
}

func (c *stubCatalog) Cone(_ context.Context, q cataloguc.ConeQuery) ([]object.Hit, error) {
	return c.cone(q)
}

func (c *stubCatalog) Get(_ context.Context, id string) (object.Object, error) { return c.get(id) }

func (c *stubCatalog) Save(_ context.Context, d object.Draft) (object.Object, error) {
	return c.save(d)
}

func (c *stubCatalog) Delete(_ context.Context, id string) error { return c.delete(id) }

type stubHealth struct{ report healthuc.Report }

func (h stubHealth) Check(context.Context) healthuc.Report { return h.report }

type stubQuality struct{ report domquality.Report }

func (q stubQuality) Assess(context.Context, qualityuc.Region, []domquality.Source) (domquality.Report, error) {
	return q.report, nil
}

type stubWorkflows struct {
	Workflows
	activated workflowuc.ActivateRequest
}

func (s *stubWorkflows) Activate(_ context.Context, req workflowuc.ActivateRequest) (wf.Version, error) {
	s.activated = req
	v, err := wf.New(wf.Spec{Key: req.Key}, time.Now())
	if err != nil {
		return wf.Version{}, err
	}
	return v.Activate(req.TrafficSplit, req.By, req.Reason, time.Now())
}

func mustObject(t *testing.T, id string, ra, dec float64) object.Object {
	t.Helper()
	o, err := object.New(object.Draft{ObjectID: id, Type: object.Star, RA: ra, Dec: dec}, time.Now())
	if err != nil {
		t.Fatalf("object.New: %v", err)
	}
	return o
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		srv := NewServer(Services{Health: stubHealth{report: healthuc.Report{
			Status: tt.status,
			Checks: map[string]healthuc.CheckResult{"catalog": healthuc.CheckOK},
		}}}, nil)
		rr := do(t, srv.Router(), http.MethodGet, "/health", "")
		if rr.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.status, rr.Code, tt.want)
		}
	}
}

func TestConeSearch_Validation(t *testing.T) {
	srv := NewServer(Services{Catalog: &stubCatalog{
		cone: func(cataloguc.ConeQuery) ([]object.Hit, error) {
			t.Fatal("catalog must not be queried for an invalid request")
			return nil, nil
		},
	}}, nil)
	h := srv.Router()

	for _, target := range []string{
		"/api/v1/objects/cone?dec=10&radius=5",
		"/api/v1/objects/cone?ra=abc&dec=10&radius=5",
		"/api/v1/objects/cone?ra=10&dec=10&radius=0",
		"/api/v1/objects/cone?ra=10&dec=10&radius=3601",
		"/api/v1/objects/cone?ra=10&dec=10&radius=5&maxResults=0",
		"/api/v1/objects/cone?ra=10&dec=10&radius=5&maxResults=10001",
		"/api/v1/objects/cone?ra=10&dec=10&radius=5&type=PULSAR",
		"/api/v1/objects/cone?ra=10&dec=10&radius=5&method=manhattan",
	} {
		rr := do(t, h, http.MethodGet, target, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, rr.Code)
			continue
		}
		if resp := decodeError(t, rr); resp.Code != CodeInvalidArgument {
			t.Errorf("%s: code %s, want %s", target, resp.Code, CodeInvalidArgument)
		}
	}
}

func TestConeSearch_OK(t *testing.T) {
	var got cataloguc.ConeQuery
	srv := NewServer(Services{Catalog: &stubCatalog{
		cone: func(q cataloguc.ConeQuery) ([]object.Hit, error) {
			got = q
			return []object.Hit{{Object: mustObject(t, "M31", 10.684708, 41.26875), Separation: 1.5}}, nil
		},
	}}, nil)

	rr := do(t, srv.Router(), http.MethodGet,
		"/api/v1/objects/cone?ra=10.68&dec=41.27&radius=36&maxResults=5&type=STAR&minMagnitude=3.5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if got.MaxResults != 5 || got.RadiusArcsec != 36 {
		t.Errorf("query not bound: %+v", got)
	}
	if len(got.Criteria.Types) != 1 || got.Criteria.Types[0] != object.Star {
		t.Errorf("types: %v", got.Criteria.Types)
	}
	if got.Criteria.MinMagnitude == nil || *got.Criteria.MinMagnitude != 3.5 {
		t.Errorf("minMagnitude not bound")
	}

	var resp coneResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ObjectID != "M31" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if resp.Items[0].SeparationArcsec == nil || *resp.Items[0].SeparationArcsec != 1.5 {
		t.Errorf("separation missing")
	}
	if resp.Items[0].RAHms == "" || resp.Items[0].DecDms == "" {
		t.Errorf("sexagesimal coordinates missing")
	}
	if resp.RadiusDegrees != 0.01 {
		t.Errorf("radiusDegrees: got %v", resp.RadiusDegrees)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   ErrorCode
	}{
		{domain.NewInvalidArgument("ra", "out of range"), http.StatusBadRequest, CodeInvalidArgument},
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists},
		{domain.ErrReferenced, http.StatusConflict, CodeReferenced},
		{domain.ErrCancelled, StatusClientClosedRequest, CodeCancelled},
		{domain.ErrStorageUnavailable, http.StatusServiceUnavailable, CodeStorageUnavailable},
		{domain.ErrConstraintViolation, http.StatusInternalServerError, CodeConstraintViolation},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		srv := NewServer(Services{Catalog: &stubCatalog{
			get: func(string) (object.Object, error) { return object.Object{}, tt.err },
		}}, nil)
		rr := do(t, srv.Router(), http.MethodGet, "/api/v1/objects/X1", "")
		if rr.Code != tt.status {
			t.Errorf("%v: got %d, want %d", tt.err, rr.Code, tt.status)
			continue
		}
		resp := decodeError(t, rr)
		if resp.Code != tt.code {
			t.Errorf("%v: code %s, want %s", tt.err, resp.Code, tt.code)
		}
		if tt.code == CodeInternal && strings.Contains(resp.Message, "boom") {
			t.Errorf("internal error leaked: %q", resp.Message)
		}
	}
}

func TestPutObject_PathWins(t *testing.T) {
	var saved object.Draft
	srv := NewServer(Services{Catalog: &stubCatalog{
		save: func(d object.Draft) (object.Object, error) {
			saved = d
			return object.New(d, time.Now())
		},
	}}, nil)
	h := srv.Router()

	rr := do(t, h, http.MethodPut, "/api/v1/objects/V1", `{"objectId":"OTHER","ra":1,"dec":2}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("mismatched id: got %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodPut, "/api/v1/objects/V1", `{"ra":1,"dec":2,"objectType":"STAR"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if saved.ObjectID != "V1" {
		t.Errorf("objectId: got %q", saved.ObjectID)
	}

	rr = do(t, h, http.MethodPut, "/api/v1/objects/V1", `{"ra":1,"dec":2,"bogus":true}`)
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != CodeBadRequest {
		t.Errorf("unknown field: got %d", rr.Code)
	}
}

func TestDeleteObject(t *testing.T) {
	srv := NewServer(Services{Catalog: &stubCatalog{
		delete: func(id string) error {
			if id == "REF" {
				return domain.ErrReferenced
			}
			return nil
		},
	}}, nil)
	h := srv.Router()

	if rr := do(t, h, http.MethodDelete, "/api/v1/objects/A", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/api/v1/objects/REF", ""); rr.Code != http.StatusConflict {
		t.Errorf("referenced: got %d, want 409", rr.Code)
	}
}

func TestFindByType(t *testing.T) {
	var gotOffset, gotLimit int
	srv := NewServer(Services{Catalog: &stubCatalog{
		byType: func(_ object.Type, offset, limit int) (object.Page, error) {
			gotOffset, gotLimit = offset, limit
			return object.Page{
				Objects: []object.Object{mustObject(t, "Q1", 150, 2)},
				Total:   1,
				Offset:  offset,
				Limit:   limit,
			}, nil
		},
	}}, nil)
	h := srv.Router()

	rr := do(t, h, http.MethodGet, "/api/v1/objects/by-type?type=QUASAR&offset=5&limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if gotOffset != 5 || gotLimit != 10 {
		t.Errorf("paging: got offset=%d limit=%d", gotOffset, gotLimit)
	}
	var body pageResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ObjectID != "Q1" {
		t.Errorf("items: %+v", body.Items)
	}

	for _, url := range []string{
		"/api/v1/objects/by-type",
		"/api/v1/objects/by-type?type=DRAGON",
	} {
		if rr := do(t, h, http.MethodGet, url, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", url, rr.Code)
		}
	}
}

func TestCleanupTransients(t *testing.T) {
	var got time.Time
	srv := NewServer(Services{Catalog: &stubCatalog{
		purge: func(olderThan time.Time) (int, error) {
			got = olderThan
			return 4, nil
		},
	}}, nil)
	h := srv.Router()

	rr := do(t, h, http.MethodDelete, "/api/v1/objects/transients?olderThan=2024-01-02T00:00:00Z", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if !got.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("olderThan: got %v", got)
	}
	if !strings.Contains(rr.Body.String(), `"deleted":4`) {
		t.Errorf("body: %s", rr.Body.String())
	}

	if rr := do(t, h, http.MethodDelete, "/api/v1/objects/transients", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("missing olderThan: got %d, want 400", rr.Code)
	}
}

func TestAssessQuality_NaNIsOmitted(t *testing.T) {
	srv := NewServer(Services{Quality: stubQuality{report: domquality.Report{
		Sources:      3,
		Completeness: domquality.Completeness{Percent: math.NaN()},
		Score:        math.NaN(),
	}}}, nil)

	rr := do(t, srv.Router(), http.MethodGet, "/api/v1/quality?minRa=0&maxRa=1&minDec=0&maxDec=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["score"]; ok {
		t.Errorf("NaN score must be omitted")
	}
	if body["sources"].(float64) != 3 {
		t.Errorf("sources: %v", body["sources"])
	}
}

func TestActivateWorkflow_DefaultsToFullSplit(t *testing.T) {
	wfs := &stubWorkflows{}
	srv := NewServer(Services{Workflows: wfs}, nil)

	rr := do(t, srv.Router(), http.MethodPost, "/api/v1/workflows/detect/versions/1.0/prod/activate", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	if wfs.activated.TrafficSplit != wf.SplitFull {
		t.Errorf("split: got %v", wfs.activated.TrafficSplit)
	}
	if wfs.activated.Key.Type != processing.Production || wfs.activated.Key.Version != "1.0" {
		t.Errorf("key: %+v", wfs.activated.Key)
	}

	rr = do(t, srv.Router(), http.MethodPost, "/api/v1/workflows/detect/versions/1.0/weird/activate", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad type: got %d, want 400", rr.Code)
	}
}

func TestSessions_NotConfigured(t *testing.T) {
	srv := NewServer(Services{}, nil)
	rr := do(t, srv.Router(), http.MethodGet, "/api/v1/sessions/abc", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotConfigured {
		t.Errorf("code: %s", resp.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := NewServer(Services{}, nil)
	rr := do(t, srv.Router(), http.MethodGet, "/api/v2/nothing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != CodeNotFound {
		t.Errorf("code: %s", resp.Code)
	}
}
