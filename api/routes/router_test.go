package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bleu-ims/ims-gateway/api/middleware"
	"github.com/bleu-ims/ims-gateway/internal/mutations"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/upstream"
	"github.com/bleu-ims/ims-gateway/internal/views"
	"github.com/bleu-ims/ims-gateway/pkg/config"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"github.com/bleu-ims/ims-gateway/pkg/redis"
	"github.com/bleu-ims/ims-gateway/pkg/types"
)

const revokedSubject = "revoked"

// fakeInventory serves the ingredient collection of the inventory services.
type fakeInventory struct {
	mu          sync.Mutex
	ingredients []map[string]any
	nextID      int64
}

func (f *fakeInventory) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Authorization"), bearerFor(revokedSubject)) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Token has expired"}`)
		return
	}
	if r.URL.Path != "/ingredients/ingredients/" {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Not Found"}`)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(f.ingredients)
	case http.MethodPost:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["IngredientName"] == "Flour" {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"detail":"Ingredient already exists"}`)
			return
		}
		f.nextID++
		body["IngredientID"] = f.nextID
		body["Status"] = "Available"
		f.ingredients = append(f.ingredients, body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

var tokens sync.Map

func bearerFor(subject string) string {
	if v, ok := tokens.Load(subject); ok {
		return v.(string)
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": "Manager",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("upstream-secret"))
	actual, _ := tokens.LoadOrStore(subject, token)
	return actual.(string)
}

type testGateway struct {
	handler  http.Handler
	sessions *session.Manager
	registry *views.Registry
	inv      *fakeInventory
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Env: "test"},
		Views:  config.ViewsConfig{DefaultPerPage: 25},
		Limits: config.LimitsConfig{SessionPerMinute: 100, MaxBodyBytes: 1 << 20},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}},
	}
}

func newTestGateway(t *testing.T, pinger redis.Pinger) *testGateway {
	t.Helper()
	inv := &fakeInventory{ingredients: []map[string]any{
		{"IngredientID": 1, "IngredientName": "Sugar", "Amount": 4, "Measurement": "kg", "Status": "Low Stock"},
	}, nextID: 1}
	srv := httptest.NewServer(inv)
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewGateway(reg)
	logg := logger.Nop()
	baseURLs := map[string]string{}
	for name := range testConfig().Upstream.Services() {
		baseURLs[name] = srv.URL
	}

	sessions := session.NewManager(nil, session.WithLogger(logg), session.WithMetrics(m))
	registry := views.NewRegistry(func(s *session.Session) (views.Source, error) {
		return upstream.NewClient(s, upstream.WithBaseURLs(baseURLs), upstream.WithHTTPClient(srv.Client()), upstream.WithMetrics(m))
	}, views.WithLogger(logg), views.WithMetrics(m))
	sessions.OnLogout(func(s *session.Session, _ string) { registry.UnmountSession(s.ID()) })

	coordinator := mutations.NewCoordinator(registry, func(s *session.Session) (mutations.Mutator, error) {
		return upstream.NewClient(s, upstream.WithBaseURLs(baseURLs), upstream.WithHTTPClient(srv.Client()), upstream.WithMetrics(m))
	}, logg)

	handler := NewRouter(testConfig(), logg, Observability{Gatherer: reg}, pinger, sessions, registry, coordinator)
	return &testGateway{handler: handler, sessions: sessions, registry: registry, inv: inv}
}

func (g *testGateway) do(t *testing.T, method, path, sessionID string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "10.0.0.9:1234"
	if sessionID != "" {
		req.Header.Set(middleware.SessionHeader, sessionID)
	}
	resp := httptest.NewRecorder()
	g.handler.ServeHTTP(resp, req)

	var decoded map[string]any
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &decoded))
	}
	return resp, decoded
}

func (g *testGateway) login(t *testing.T, subject string) string {
	t.Helper()
	resp, body := g.do(t, http.MethodPost, "/api/v1/session", "", map[string]string{"token": bearerFor(subject), "username": subject})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, "Manager", data["role"])
	return data["session_id"].(string)
}

func TestHealthRoutes(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, _ := g.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "nosniff", resp.Header().Get("X-Content-Type-Options"))

	resp, body := g.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	checks := body["data"].(map[string]any)["checks"].(map[string]any)
	assert.Equal(t, "memory", checks["sessions"])
}

func TestHealthReadyPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	g := newTestGateway(t, client)

	resp, _ := g.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	mr.Close()
	resp, body := g.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.Equal(t, "DEPENDENCY_ERROR", body["error"].(map[string]any)["code"])
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, body := g.do(t, http.MethodGet, "/api/v1/views/ingredients", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, true, body["error"].(map[string]any)["logout"])
}

func TestViewReadAndWriteRoundTrip(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")

	resp, body := g.do(t, http.MethodGet, "/api/v1/views/ingredients?status=Low%20Stock", id, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page := body["data"].(map[string]any)
	rows := page["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sugar", rows[0].(map[string]any)["name"])
	assert.Equal(t, false, page["degraded"])

	create := map[string]any{
		"IngredientName": "Milk",
		"Amount":         12,
		"Measurement":    "l",
		"BestBeforeDate": "2030-01-01",
		"ExpirationDate": "2030-02-01",
	}
	resp, body = g.do(t, http.MethodPost, "/api/v1/resources/ingredient?view=ingredients&sort=asc", id, create)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"ingredients"}, data["refreshed"])
	viewRows := data["view"].(map[string]any)["rows"].([]any)
	require.Len(t, viewRows, 2)
	assert.Equal(t, "Milk", viewRows[0].(map[string]any)["name"])
	assert.Equal(t, "Sugar", viewRows[1].(map[string]any)["name"])

	resp, body = g.do(t, http.MethodGet, "/api/v1/session", id, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []any{"ingredients"}, body["data"].(map[string]any)["views"])
}

func TestUpstreamRejectionKeepsStatusAndDetail(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")

	create := map[string]any{
		"IngredientName": "Flour",
		"Amount":         1,
		"Measurement":    "kg",
		"BestBeforeDate": "2030-01-01",
		"ExpirationDate": "2030-02-01",
	}
	resp, _ := g.do(t, http.MethodPost, "/api/v1/resources/ingredient", id, create)
	require.Equal(t, http.StatusConflict, resp.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.Equal(t, "REQUEST_REJECTED", envelope.Error.Code)
	assert.Equal(t, "Ingredient already exists", envelope.Error.Message)
	assert.False(t, envelope.Error.Logout)
}

func TestValidationFailureNeverReachesUpstream(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")

	resp, body := g.do(t, http.MethodPost, "/api/v1/resources/ingredient", id, map[string]any{"Amount": 1})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "is required", details["IngredientName"])
	assert.Len(t, g.inv.ingredients, 1)
}

func TestUnknownViewAndKind(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")

	resp, _ := g.do(t, http.MethodGet, "/api/v1/views/orders", id, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp, _ = g.do(t, http.MethodPost, "/api/v1/resources/orders", id, map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpstreamUnauthorizedTearsSessionDown(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, revokedSubject)

	resp, body := g.do(t, http.MethodGet, "/api/v1/views/ingredients", id, nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code, resp.Body.String())
	assert.Equal(t, true, body["error"].(map[string]any)["logout"])
	assert.Zero(t, g.registry.Count())
	assert.Zero(t, g.sessions.Live())

	resp, _ = g.do(t, http.MethodGet, "/api/v1/session", id, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutUnmountsViews(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")

	resp, _ := g.do(t, http.MethodGet, "/api/v1/views/ingredients", id, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 1, g.registry.Count())

	resp, _ = g.do(t, http.MethodDelete, "/api/v1/session", id, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Zero(t, g.registry.Count())

	resp, _ = g.do(t, http.MethodGet, "/api/v1/views/ingredients", id, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestViewDeleteUnmounts(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")

	g.do(t, http.MethodGet, "/api/v1/views/ingredients", id, nil)
	resp, body := g.do(t, http.MethodDelete, "/api/v1/views/ingredients", id, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, body["data"].(map[string]any)["unmounted"])
	assert.Zero(t, g.registry.Count())
}

func TestMetricsEndpointExportsGatewayMetrics(t *testing.T) {
	g := newTestGateway(t, nil)
	id := g.login(t, "maria")
	g.do(t, http.MethodGet, "/api/v1/views/ingredients", id, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	g.handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "ims_gateway_upstream_requests_total")
	assert.Contains(t, resp.Body.String(), "ims_gateway_view_loads_total")
}

func TestBearerSessionWithoutLogin(t *testing.T) {
	g := newTestGateway(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/views/ingredients", nil)
	req.Header.Set("Authorization", "Bearer "+bearerFor("maria"))
	resp := httptest.NewRecorder()
	g.handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = httptest.NewRecorder()
	g.handler.ServeHTTP(resp, req.Clone(context.Background()))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, g.registry.Count())
}
