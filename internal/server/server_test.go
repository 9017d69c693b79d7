package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attax1994/qiankun/internal/config"
	"github.com/attax1994/qiankun/internal/dom"
	"github.com/attax1994/qiankun/internal/loader"
	"github.com/attax1994/qiankun/internal/logging"
	"github.com/attax1994/qiankun/internal/shared/types"
)

// appProbe observes lifecycle callbacks of one embedded application.
type appProbe struct {
	mu       sync.Mutex
	mounts   int
	unmounts int
	props    map[string]interface{}
}

func (p *appProbe) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mounts, p.unmounts
}

type testServer struct {
	srv    *Server
	static *loader.StaticLoader
}

// newTestServer wires a server around an in-memory page and embedded
// bundles. The singular gate is off so tests can hold several applications
// mounted at once.
func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Engine.Singular = false
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	doc, err := dom.ParseString(`<html><head></head><body><div id="root"></div><div id="other"></div></body></html>`)
	require.NoError(t, err)

	static := loader.NewStatic()
	srv, err := New(Options{
		Config:   cfg,
		Logger:   logging.NewNop(),
		Document: doc,
		Loader:   static,
	})
	require.NoError(t, err)
	return &testServer{srv: srv, static: static}
}

// addApp registers a counting bundle plus its registration, targeting #root.
func (ts *testServer) addApp(t *testing.T, name string) *appProbe {
	t.Helper()
	probe := &appProbe{}
	ts.static.Register(name, loader.StaticEntry{
		Template: `<section class="widget">` + name + `</section>`,
		Lifecycles: types.Lifecycles{
			Bootstrap: func(context.Context) error { return nil },
			Mount: func(_ context.Context, mc types.MountContext) error {
				probe.mu.Lock()
				probe.mounts++
				probe.props = mc.Props
				probe.mu.Unlock()
				return nil
			},
			Unmount: func(context.Context, types.MountContext) error {
				probe.mu.Lock()
				probe.unmounts++
				probe.mu.Unlock()
				return nil
			},
			Update: func(_ context.Context, props map[string]interface{}) error {
				probe.mu.Lock()
				probe.props = props
				probe.mu.Unlock()
				return nil
			},
		},
	})

	w := ts.request(t, http.MethodPost, "/apps", gin.H{
		"name":      name,
		"entry":     "static://" + name,
		"container": "#root",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return probe
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := sonic.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHostPage(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.request(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `id="root"`)
}

func TestDefaultHostPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	srv, err := New(Options{Config: cfg, Logger: logging.NewNop(), Loader: loader.NewStatic()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<div id="root">`)
}

func TestHostPageFromFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	path := filepath.Join(dir, "host.html")
	page := `<html><head><title>shell</title></head><body><main id="shell"></main></body></html>`
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	cfg.Server.HostPage = path
	srv, err := New(Options{Config: cfg, Logger: logging.NewNop(), Loader: loader.NewStatic()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), `id="shell"`)

	cfg = config.Default()
	cfg.Server.HostPage = filepath.Join(dir, "missing.html")
	_, err = New(Options{Config: cfg, Logger: logging.NewNop(), Loader: loader.NewStatic()})
	assert.ErrorContains(t, err, "read host page")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addApp(t, "orders")

	w := ts.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])

	apps, ok := body["apps"].(map[string]interface{})
	require.True(t, ok, "apps section missing: %v", body)
	assert.Equal(t, float64(1), apps["registered"])
	assert.Equal(t, float64(0), apps["mounted"])
}

func TestRegisterValidationOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.request(t, http.MethodPost, "/apps", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.request(t, http.MethodPost, "/apps", gin.H{"name": "orders"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.request(t, http.MethodPost, "/apps", gin.H{"name": "orders", "entry": "static://orders"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.request(t, http.MethodPost, "/apps", gin.H{"name": "orders", "entry": "static://orders"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already registered")

	w = ts.request(t, http.MethodPost, "/apps", gin.H{
		"name":      "billing",
		"entry":     "static://billing",
		"container": "#unclosed[",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid selector")
}

func TestListAndGet(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addApp(t, "orders")
	ts.addApp(t, "billing")

	w := ts.request(t, http.MethodGet, "/apps", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(2), body["total"])

	w = ts.request(t, http.MethodGet, "/apps/orders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode(t, w)
	assert.Equal(t, "orders", info["name"])
	assert.Equal(t, "static://orders", info["entry"])
	assert.Equal(t, "created", info["status"])

	w = ts.request(t, http.MethodGet, "/apps/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMountCycle(t *testing.T) {
	ts := newTestServer(t, nil)
	probe := ts.addApp(t, "orders")

	w := ts.request(t, http.MethodPost, "/apps/orders/mount", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["instance"])

	page := ts.request(t, http.MethodGet, "/", nil).Body.String()
	assert.Contains(t, page, `data-name="orders"`)
	assert.Contains(t, page, `class="widget"`)

	info := decode(t, ts.request(t, http.MethodGet, "/apps/orders", nil))
	assert.Equal(t, "mounted", info["status"])

	w = ts.request(t, http.MethodPost, "/apps/orders/unmount", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	page = ts.request(t, http.MethodGet, "/", nil).Body.String()
	assert.NotContains(t, page, `data-name="orders"`)

	mounts, unmounts := probe.counts()
	assert.Equal(t, 1, mounts)
	assert.Equal(t, 1, unmounts)
}

func TestMountUnknownApp(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.request(t, http.MethodPost, "/apps/ghost/mount", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.request(t, http.MethodPost, "/apps/ghost/unmount", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.request(t, http.MethodDelete, "/apps/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMountMissingBundle(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.request(t, http.MethodPost, "/apps", gin.H{"name": "orders", "entry": "static://orders"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.request(t, http.MethodPost, "/apps/orders/mount", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no static bundle")
}

func TestMountContainerOverride(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addApp(t, "orders")

	w := ts.request(t, http.MethodPost, "/apps/orders/mount", gin.H{"container": "#other"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc := ts.srv.Engine().Document()
	assert.NotNil(t, doc.Find(`#other div[data-name="orders"]`))
	assert.Nil(t, doc.Find(`#root div[data-name="orders"]`))
}

func TestUpdateOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	probe := ts.addApp(t, "orders")

	w := ts.request(t, http.MethodPost, "/apps/orders/update", gin.H{"props": gin.H{"page": 2}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "not mounted")

	require.Equal(t, http.StatusOK, ts.request(t, http.MethodPost, "/apps/orders/mount", nil).Code)

	w = ts.request(t, http.MethodPost, "/apps/orders/update", gin.H{"props": gin.H{"page": 2}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	probe.mu.Lock()
	assert.Equal(t, float64(2), probe.props["page"])
	probe.mu.Unlock()

	w = ts.request(t, http.MethodPost, "/apps/orders/update", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeregisterFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.addApp(t, "orders")
	require.Equal(t, http.StatusOK, ts.request(t, http.MethodPost, "/apps/orders/mount", nil).Code)

	w := ts.request(t, http.MethodDelete, "/apps/orders", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "unmount")

	require.Equal(t, http.StatusOK, ts.request(t, http.MethodPost, "/apps/orders/unmount", nil).Code)

	w = ts.request(t, http.MethodDelete, "/apps/orders", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.request(t, http.MethodGet, "/apps/orders", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGlobalStateEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.srv.Engine().Bus().InitGlobalState(map[string]interface{}{"user": "alice"})

	w := ts.request(t, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	state, ok := body["state"].(map[string]interface{})
	require.True(t, ok, "state section missing: %v", body)
	assert.Equal(t, "alice", state["user"])
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.request(t, http.MethodGet, "/health", nil)

	w := ts.request(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.GreaterOrEqual(t, body["total_requests"], float64(1))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.request(t, http.MethodGet, "/health", nil)

	w := ts.request(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "qiankun_http_requests_total")
}

func TestRateLimitApplied(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	first := ts.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := ts.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestStaticAssets(t *testing.T) {
	dir := t.TempDir()
	payload := strings.Repeat("host shell asset payload line\n", 200)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(payload), 0o644))

	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.StaticDir = dir
	})

	w := ts.request(t, http.MethodGet, "/static/notes.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, payload, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/static/notes.txt", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	w = ts.request(t, http.MethodGet, "/static/absent.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeededRegistrations(t *testing.T) {
	dir := t.TempDir()
	appDir := filepath.Join(dir, "billing")
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	manifest := "name: billing\nentry: static://billing\ncontainer: \"#root\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "microapp.yaml"), []byte(manifest), 0o644))

	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Registry.SeedDir = dir
	})

	w := ts.request(t, http.MethodGet, "/apps/billing", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "static://billing", decode(t, w)["entry"])
}

func TestShutdownUnmountsApplications(t *testing.T) {
	ts := newTestServer(t, nil)
	probe := ts.addApp(t, "orders")
	require.Equal(t, http.StatusOK, ts.request(t, http.MethodPost, "/apps/orders/mount", nil).Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))

	_, unmounts := probe.counts()
	assert.Equal(t, 1, unmounts)

	info, ok := ts.srv.Registry().Get("orders")
	require.True(t, ok)
	assert.Equal(t, types.StatusUnmounted, info.Status)
}
