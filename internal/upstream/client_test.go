package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type fakeCreds struct {
	mu      sync.Mutex
	token   string
	expired []string
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) Expire(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.expired = append(f.expired, reason)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, creds Credentials, rt roundTripFunc, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithHTTPClient(&http.Client{Transport: rt}),
		WithBaseURLs(map[string]string{
			"products":    "http://products.test/",
			"ingredients": "http://ingredients.test",
			"materials":   "http://materials.test",
			"merchandise": "http://merchandise.test",
			"recipes":     "http://recipes.test",
			"waste":       "http://waste.test",
		}),
	}
	client, err := NewClient(creds, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestFetchCollectionAttachesBearerToken(t *testing.T) {
	var capturedURL, capturedAuth string
	client := newTestClient(t, &fakeCreds{token: "tok"}, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		return jsonResponse(http.StatusOK, `[{"RecipeID":1,"ProductID":42,"RecipeName":"Latte"}]`), nil
	})

	records, err := client.FetchCollection(context.Background(), catalog.KindRecipe)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if capturedURL != "http://recipes.test/recipes/recipes/" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	recipes, err := Decode[catalog.Recipe](catalog.KindRecipe, records)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(recipes) != 1 || recipes[0].ProductID != 42 {
		t.Fatalf("unexpected recipes %+v", recipes)
	}
}

func TestMissingTokenFailsWithoutNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, &fakeCreds{}, func(req *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	_, err := client.FetchCollection(context.Background(), catalog.KindIngredient)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if called {
		t.Fatalf("network must not be touched without a token")
	}
}

func TestNonSuccessStatusesAreClassified(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantCode   pkgerrors.Code
		wantDetail string
		wantLogout bool
	}{
		{name: "detail string", status: http.StatusBadRequest, body: `{"detail":"name required"}`, wantCode: pkgerrors.CodeRequestRejected, wantDetail: "name required"},
		{name: "structured detail", status: http.StatusUnprocessableEntity, body: `{"detail":[{"loc":["body","unit"],"msg":"field required"}]}`, wantCode: pkgerrors.CodeRequestRejected, wantDetail: `[{"loc":["body","unit"],"msg":"field required"}]`},
		{name: "plain body", status: http.StatusConflict, body: "duplicate entry", wantCode: pkgerrors.CodeRequestRejected, wantDetail: "duplicate entry"},
		{name: "empty body", status: http.StatusInternalServerError, body: "", wantCode: pkgerrors.CodeRequestRejected, wantDetail: "Internal Server Error"},
		{name: "forbidden keeps session", status: http.StatusForbidden, body: `{"detail":"Access denied"}`, wantCode: pkgerrors.CodeRequestRejected, wantDetail: "Access denied"},
		{name: "unauthorized logs out", status: http.StatusUnauthorized, body: `{"detail":"Token expired"}`, wantCode: pkgerrors.CodeUnauthenticated, wantDetail: "Token expired", wantLogout: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := &fakeCreds{token: "tok"}
			client := newTestClient(t, creds, func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})
			_, err := client.FetchCollection(context.Background(), catalog.KindMaterial)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tt.wantCode {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if typed.Message() != tt.wantDetail {
				t.Fatalf("expected detail %q, got %q", tt.wantDetail, typed.Message())
			}
			if tt.wantCode == pkgerrors.CodeRequestRejected && typed.Status() != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, typed.Status())
			}
			if got := len(creds.expired) > 0; got != tt.wantLogout {
				t.Fatalf("logout triggered=%v, want %v", got, tt.wantLogout)
			}
		})
	}
}

func TestTransportFailureIsUnreachable(t *testing.T) {
	client := newTestClient(t, &fakeCreds{token: "tok"}, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	_, err := client.FetchCollection(context.Background(), catalog.KindMerchandise)
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
}

func TestUndecodableSuccessIsRejected(t *testing.T) {
	client := newTestClient(t, &fakeCreds{token: "tok"}, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"not":"a list"}`), nil
	})
	_, err := client.FetchCollection(context.Background(), catalog.KindWasteLog)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeRequestRejected || typed.Status() != http.StatusBadGateway {
		t.Fatalf("expected 502 rejection, got %v", err)
	}

	_, err = Decode[catalog.Ingredient](catalog.KindIngredient, []json.RawMessage{json.RawMessage(`{"Amount":"lots"}`)})
	if !pkgerrors.IsCode(err, pkgerrors.CodeRequestRejected) {
		t.Fatalf("expected decode rejection, got %v", err)
	}
}

func TestMutateEncodesPerRoute(t *testing.T) {
	type captured struct {
		method, url, contentType string
		body                     []byte
	}
	var calls []captured
	client := newTestClient(t, &fakeCreds{token: "tok"}, func(req *http.Request) (*http.Response, error) {
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
		}
		calls = append(calls, captured{method: req.Method, url: req.URL.String(), contentType: req.Header.Get("Content-Type"), body: body})
		return jsonResponse(http.StatusOK, `{"ok":true}`), nil
	})
	ctx := context.Background()

	if _, err := client.Mutate(ctx, catalog.KindProductType, catalog.OpCreate, "", map[string]any{"productTypeName": "Drinks", "SizeRequired": 1}); err != nil {
		t.Fatalf("create type: %v", err)
	}
	if _, err := client.Mutate(ctx, catalog.KindProduct, catalog.OpUpdate, "42", map[string]any{"ProductName": "Latte", "ProductPrice": 120.5, "ProductSize": nil}); err != nil {
		t.Fatalf("update product: %v", err)
	}
	if _, err := client.Mutate(ctx, catalog.KindIngredient, catalog.OpDelete, "5", nil); err != nil {
		t.Fatalf("delete ingredient: %v", err)
	}

	if calls[0].method != http.MethodPost || calls[0].url != "http://products.test/ProductType/create" || calls[0].contentType != "application/json" {
		t.Fatalf("unexpected type create call %+v", calls[0])
	}

	if calls[1].method != http.MethodPut || calls[1].url != "http://products.test/is_products/products/42" {
		t.Fatalf("unexpected product update call %+v", calls[1])
	}
	mediaType, params, err := mime.ParseMediaType(calls[1].contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("expected multipart form, got %q", calls[1].contentType)
	}
	form, err := multipart.NewReader(strings.NewReader(string(calls[1].body)), params["boundary"]).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	if form.Value["ProductName"][0] != "Latte" || form.Value["ProductPrice"][0] != "120.5" {
		t.Fatalf("unexpected form values %v", form.Value)
	}
	if _, ok := form.Value["ProductSize"]; ok {
		t.Fatalf("null fields must be omitted")
	}

	if calls[2].method != http.MethodDelete || calls[2].url != "http://ingredients.test/ingredients/ingredients/5" || len(calls[2].body) != 0 {
		t.Fatalf("unexpected delete call %+v", calls[2])
	}
}

func TestMutateRejectsUnsupportedOpsLocally(t *testing.T) {
	called := false
	client := newTestClient(t, &fakeCreds{token: "tok"}, func(req *http.Request) (*http.Response, error) {
		called = true
		return jsonResponse(http.StatusOK, `{}`), nil
	})
	if _, err := client.Mutate(context.Background(), catalog.KindWasteLog, catalog.OpDelete, "1", nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := client.Mutate(context.Background(), catalog.KindRecipe, catalog.OpUpdate, " ", map[string]any{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected missing id error, got %v", err)
	}
	if called {
		t.Fatalf("network must not be touched")
	}
}

func TestFetchAggregateAndTelemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reg := prometheus.NewRegistry()

	var traceparent string
	client := newTestClient(t, &fakeCreds{token: "tok"}, func(req *http.Request) (*http.Response, error) {
		traceparent = req.Header.Get("traceparent")
		if req.URL.Path != "/ingredients/ingredients/stock-status-counts" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"available":5,"low_stock":1,"not_available":0}`), nil
	}, WithTracerProvider(tp), WithPropagator(propagation.TraceContext{}), WithMetrics(metrics.NewGateway(reg)))

	var counts catalog.StockStatusCounts
	if err := client.FetchAggregate(context.Background(), catalog.AggIngredientStock, &counts); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if counts.Available != 5 || counts.LowStock != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if traceparent == "" {
		t.Fatalf("expected trace context to be propagated")
	}
	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Name() != "upstream GET ingredient_stock_status" {
		t.Fatalf("unexpected spans %v", spans)
	}
	families, err := reg.Gather()
	if err != nil || len(families) == 0 {
		t.Fatalf("expected upstream metrics, err=%v", err)
	}
}
