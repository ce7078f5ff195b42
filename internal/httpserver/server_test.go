package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/divesite/internal/catalog"
	"github.com/MrSnakeDoc/divesite/internal/domain"
	"github.com/MrSnakeDoc/divesite/internal/editor"
	"github.com/MrSnakeDoc/divesite/internal/events"
	"github.com/MrSnakeDoc/divesite/internal/geocoding"
	"github.com/MrSnakeDoc/divesite/internal/httpserver/deps"
	"github.com/MrSnakeDoc/divesite/internal/logger"
	"github.com/MrSnakeDoc/divesite/internal/metrics"
	"github.com/MrSnakeDoc/divesite/internal/store/sqlite"
)

type testServer struct {
	srv *httptest.Server
	cat *catalog.Catalog
	ed  *editor.Editor
}

func newTestServer(t *testing.T, gw geocoding.Gateway) *testServer {
	t.Helper()
	log := logger.New("error", false)

	bus := events.NewBus()
	cat := catalog.New(catalog.WithSink(bus))
	m := metrics.New()
	opts := []editor.Option{editor.WithMetrics(m), editor.WithLogger(log)}
	if gw != nil {
		opts = append(opts, editor.WithGateway(gw))
	}
	ed := editor.New(cat, bus, opts...)
	t.Cleanup(ed.Close)

	st, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now(),
		Version:       "test",
		Editor:        ed,
		Catalog:       cat,
		Store:         st,
		StoreKind:     "sqlite",
		Metrics:       m,
		Geocoding:     gw != nil,
		GeocodeBurst:  10,
		GeocodePerMin: 60,
	}

	srv := httptest.NewServer(NewRouter(5*time.Second, log, d))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, cat: cat, ed: ed}
}

func (ts *testServer) do(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

type sessionView struct {
	ID             string   `json:"session_id"`
	State          string   `json:"state"`
	Coordinates    string   `json:"coordinates"`
	Modified       bool     `json:"modified"`
	GeocodePending bool     `json:"geocode_pending"`
	Touched        []string `json:"touched"`
	Scratch        struct {
		Name  string `json:"name"`
		Notes string `json:"notes"`
	} `json:"scratch"`
}

func TestCreateEditCommitFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	_ = ts.cat.PutDive(domain.Dive{ID: 7})

	var v sessionView
	if code := ts.do(t, "POST", "/api/sessions", `{"create":"Blue Hole","dive_id":7}`, &v); code != http.StatusCreated {
		t.Fatalf("begin status = %d", code)
	}
	if v.State != "editing" || v.Scratch.Name != "Blue Hole" {
		t.Fatalf("begin view = %+v", v)
	}

	if code := ts.do(t, "PATCH", "/api/sessions/"+v.ID, `{"field":"notes","value":"great viz"}`, &v); code != http.StatusOK {
		t.Fatalf("set notes status = %d", code)
	}
	if code := ts.do(t, "PATCH", "/api/sessions/"+v.ID, `{"field":"coordinates","value":"somewhere"}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("bad coordinates status = %d, want 422", code)
	}
	if code := ts.do(t, "PATCH", "/api/sessions/"+v.ID, `{"field":"depth","value":"30"}`, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("unknown field status = %d, want 422", code)
	}

	var res struct {
		SiteID  uint32 `json:"site_id"`
		Created bool   `json:"created"`
	}
	if code := ts.do(t, "POST", "/api/sessions/"+v.ID+"/commit", "", &res); code != http.StatusOK {
		t.Fatalf("commit status = %d", code)
	}
	if !res.Created || res.SiteID == 0 {
		t.Fatalf("commit result = %+v", res)
	}

	var site struct {
		Name  string   `json:"name"`
		Notes string   `json:"notes"`
		Dives []uint32 `json:"dives"`
	}
	if code := ts.do(t, "GET", "/api/sites/1", "", &site); code != http.StatusOK {
		t.Fatalf("get site status = %d", code)
	}
	if site.Notes != "great viz" || len(site.Dives) != 1 || site.Dives[0] != 7 {
		t.Errorf("site = %+v", site)
	}

	// Session is gone after commit
	if code := ts.do(t, "GET", "/api/sessions/"+v.ID, "", nil); code != http.StatusNotFound {
		t.Errorf("committed session status = %d, want 404", code)
	}
}

func TestEditLockConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	_, _ = ts.cat.Insert(domain.Site{Name: "Reef"})

	if code := ts.do(t, "POST", "/api/sessions", `{"site_id":1}`, nil); code != http.StatusCreated {
		t.Fatalf("first begin status = %d", code)
	}
	if code := ts.do(t, "POST", "/api/sessions", `{"site_id":1}`, nil); code != http.StatusConflict {
		t.Errorf("second begin status = %d, want 409", code)
	}
	if code := ts.do(t, "POST", "/api/sessions", `{"site_id":99}`, nil); code != http.StatusNotFound {
		t.Errorf("begin on missing site status = %d, want 404", code)
	}
	if code := ts.do(t, "POST", "/api/sessions", `{"bogus":1}`, nil); code != http.StatusBadRequest {
		t.Errorf("unknown key status = %d, want 400", code)
	}
}

func TestMergeEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	a, _ := ts.cat.Insert(domain.Site{Name: "Reef"})
	b, _ := ts.cat.Insert(domain.Site{Name: "Reef Annex"})
	_ = ts.cat.PutDive(domain.Dive{ID: 1, SiteID: b})

	if code := ts.do(t, "POST", "/api/sites/1/merge", `{"sources":[2]}`, nil); code != http.StatusPreconditionRequired {
		t.Errorf("unconfirmed merge status = %d, want 428", code)
	}
	if !ts.cat.Contains(b) {
		t.Fatal("unconfirmed merge changed the catalog")
	}

	var conflict struct {
		SiteID uint32 `json:"site_id"`
	}
	if code := ts.do(t, "POST", "/api/sites/1/merge", `{"sources":[2,42],"confirm":true}`, &conflict); code != http.StatusConflict {
		t.Errorf("merge with vanished source status = %d, want 409", code)
	}
	if conflict.SiteID != 42 {
		t.Errorf("conflict site_id = %d, want 42", conflict.SiteID)
	}

	if code := ts.do(t, "POST", "/api/sites/1/merge", `{"sources":[2],"confirm":true}`, nil); code != http.StatusOK {
		t.Fatalf("merge status = %d", code)
	}
	if ts.cat.Contains(b) {
		t.Error("source still present after merge")
	}
	if d, _ := ts.cat.Dive(1); d.SiteID != a {
		t.Errorf("dive site = %d, want %d", d.SiteID, a)
	}
}

func TestResolveAndSameGPS(t *testing.T) {
	ts := newTestServer(t, nil)
	_, _ = ts.cat.Insert(domain.Site{Name: "Reef Annex", Latitude: 1000000, Longitude: 2000000})
	_, _ = ts.cat.Insert(domain.Site{Name: "Annex Wall", Latitude: 1000000, Longitude: 2000000})

	var resolved struct {
		Candidates []struct {
			Kind   string `json:"kind"`
			SiteID uint32 `json:"site_id"`
		} `json:"candidates"`
	}
	if code := ts.do(t, "GET", "/api/sites/resolve?q=reef", "", &resolved); code != http.StatusOK {
		t.Fatalf("resolve status = %d", code)
	}
	if len(resolved.Candidates) != 2 || resolved.Candidates[1].SiteID != 1 {
		t.Errorf("resolve = %+v", resolved)
	}

	var same struct {
		Count int `json:"count"`
	}
	if code := ts.do(t, "GET", "/api/sites/1/same-gps", "", &same); code != http.StatusOK || same.Count != 1 {
		t.Errorf("same-gps = %d, %+v", code, same)
	}

	var list struct {
		Sites []struct {
			Name string `json:"name"`
		} `json:"sites"`
	}
	ts.do(t, "GET", "/api/sites?sort=name", "", &list)
	if len(list.Sites) != 2 || list.Sites[0].Name != "Annex Wall" {
		t.Errorf("sorted listing = %+v", list)
	}

	if code := ts.do(t, "GET", "/api/sites/abc", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", code)
	}
}

func TestDiveEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	_, _ = ts.cat.Insert(domain.Site{Name: "Reef"})

	if code := ts.do(t, "POST", "/api/dives", `{"id":3,"number":12,"site_id":0}`, nil); code != http.StatusCreated {
		t.Fatalf("record dive status = %d", code)
	}
	if code := ts.do(t, "PUT", "/api/dives/3/site", `{"site_id":1}`, nil); code != http.StatusOK {
		t.Fatalf("assign status = %d", code)
	}
	if code := ts.do(t, "PUT", "/api/dives/3/site", `{"site_id":50}`, nil); code != http.StatusNotFound {
		t.Errorf("assign to missing site status = %d, want 404", code)
	}

	var dives struct {
		Dives []domain.Dive `json:"dives"`
	}
	ts.do(t, "GET", "/api/dives", "", &dives)
	if len(dives.Dives) != 1 || dives.Dives[0].SiteID != 1 {
		t.Errorf("dives = %+v", dives)
	}
}

func TestGeocodeEndpoint(t *testing.T) {
	gw := geocoding.GatewayFunc(func(_ context.Context, _, _ domain.MicroDegrees) (domain.Place, error) {
		return domain.Place{Name: "Dahab", Description: "South Sinai"}, nil
	})
	ts := newTestServer(t, gw)

	var v sessionView
	ts.do(t, "POST", "/api/sessions", `{"create":"x"}`, &v)
	if code := ts.do(t, "POST", "/api/sessions/"+v.ID+"/geocode", "", nil); code != http.StatusConflict {
		t.Errorf("geocode without coordinates status = %d, want 409", code)
	}

	ts.do(t, "PATCH", "/api/sessions/"+v.ID, `{"field":"coordinates","value":"N28.5 E34.5"}`, nil)
	if code := ts.do(t, "POST", "/api/sessions/"+v.ID+"/geocode", "", nil); code != http.StatusAccepted {
		t.Fatalf("geocode status = %d, want 202", code)
	}
	ts.ed.Wait()

	ts.do(t, "GET", "/api/sessions/"+v.ID, "", &v)
	if v.GeocodePending || v.Scratch.Name != "Dahab" {
		t.Errorf("after geocode view = %+v", v)
	}
}

func TestGeocodeWithoutGateway(t *testing.T) {
	ts := newTestServer(t, nil)

	var v sessionView
	ts.do(t, "POST", "/api/sessions", `{"create":"x"}`, &v)
	ts.do(t, "PATCH", "/api/sessions/"+v.ID, `{"field":"coordinates","value":"N28.5 E34.5"}`, nil)
	if code := ts.do(t, "POST", "/api/sessions/"+v.ID+"/geocode", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("geocode status = %d, want 503", code)
	}
}

func TestDiscardEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	var v sessionView
	ts.do(t, "POST", "/api/sessions", `{"create":"x"}`, &v)
	if code := ts.do(t, "POST", "/api/sessions/"+v.ID+"/discard", "", nil); code != http.StatusNoContent {
		t.Errorf("discard status = %d, want 204", code)
	}
	if ts.cat.Count() != 0 {
		t.Error("discard changed the catalog")
	}

	ts.do(t, "POST", "/api/sessions", `{"create":"y"}`, &v)
	if code := ts.do(t, "DELETE", "/api/sessions/"+v.ID, "", nil); code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", code)
	}
	if code := ts.do(t, "GET", "/api/sessions/"+v.ID, "", nil); code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", code)
	}
}

func TestOpsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	var health struct {
		Status string `json:"status"`
	}
	if code := ts.do(t, "GET", "/healthz", "", &health); code != http.StatusOK || health.Status != "ok" {
		t.Errorf("healthz = %d, %+v", code, health)
	}

	var ready struct {
		Ready bool `json:"ready"`
	}
	if code := ts.do(t, "GET", "/readyz", "", &ready); code != http.StatusOK || !ready.Ready {
		t.Errorf("readyz = %d, %+v", code, ready)
	}

	var infra struct {
		Mode string `json:"mode"`
	}
	if code := ts.do(t, "GET", "/infra", "", &infra); code != http.StatusOK || infra.Mode != "limited" {
		t.Errorf("infra = %d, %+v (no geocoder configured)", code, infra)
	}

	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "divesite_") {
		t.Error("/metrics does not expose divesite metrics")
	}
}
