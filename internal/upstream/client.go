package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultErrorBodyLimit int64 = 64 * 1024
	tracerName                  = "ims-gateway/upstream"
)

// Credentials is the session context a client is bound to.
type Credentials interface {
	// Token returns the bearer token, or "" once the session is gone.
	Token() string
	// Expire tears the session down after the upstream rejected the token.
	Expire(reason string)
}

// Client issues authenticated requests to the inventory services.
type Client struct {
	creds          Credentials
	baseURLs       map[string]string
	httpClient     *http.Client
	metrics        *metrics.Gateway
	logg           *logger.Logger
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator
	errorBodyLimit int64
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURLs sets the base URL of each upstream service keyed by service name.
func WithBaseURLs(urls map[string]string) Option {
	return func(c *Client) {
		for name, raw := range urls {
			trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
			if trimmed != "" {
				c.baseURLs[name] = trimmed
			}
		}
	}
}

func WithMetrics(m *metrics.Gateway) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logg = logg
		}
	}
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithPropagator overrides the global text map propagator used for outgoing headers.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *Client) {
		if p != nil {
			c.propagator = p
		}
	}
}

// WithErrorBodyLimit caps how much of a failed response is read for its detail.
func WithErrorBodyLimit(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.errorBodyLimit = limit
		}
	}
}

// NewClient binds a client to the session credentials.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, fmt.Errorf("upstream client requires credentials")
	}
	client := &Client{
		creds:          creds,
		baseURLs:       map[string]string{},
		httpClient:     &http.Client{},
		logg:           logger.Nop(),
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
		propagator:     otel.GetTextMapPropagator(),
		errorBodyLimit: defaultErrorBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// FetchCollection lists every record of kind.
func (c *Client) FetchCollection(ctx context.Context, kind catalog.Kind) ([]json.RawMessage, error) {
	route, ok := catalog.RouteFor(kind)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown resource kind %q", kind))
	}
	body, err := c.do(ctx, request{kind: string(kind), method: http.MethodGet, route: route, path: route.Path})
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, c.invalidBody(ctx, string(kind), route, err)
	}
	return records, nil
}

// Get fetches a single record.
func (c *Client) Get(ctx context.Context, kind catalog.Kind, id string) (json.RawMessage, error) {
	route, ok := catalog.RouteFor(kind)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown resource kind %q", kind))
	}
	return c.do(ctx, request{kind: string(kind), method: http.MethodGet, route: route, path: route.ItemPath(id)})
}

// FetchAggregate decodes a computed endpoint into dest.
func (c *Client) FetchAggregate(ctx context.Context, agg catalog.Aggregate, dest any) error {
	route, ok := catalog.AggregateRoute(agg)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown aggregate %q", agg))
	}
	body, err := c.do(ctx, request{kind: string(agg), method: http.MethodGet, route: route, path: route.Path})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return c.invalidBody(ctx, string(agg), route, err)
	}
	return nil
}

// Mutate creates, updates or deletes one record and returns the upstream response body.
func (c *Client) Mutate(ctx context.Context, kind catalog.Kind, op catalog.Op, id string, payload any) (json.RawMessage, error) {
	route, ok := catalog.RouteFor(kind)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown resource kind %q", kind))
	}
	if !route.Allows(op) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s does not support %s", kind, op))
	}
	if op != catalog.OpCreate && strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id is required").WithDetails(map[string]string{"id": "is required"})
	}

	req := request{kind: string(kind), route: route, path: route.MutationPath(op, id)}
	switch op {
	case catalog.OpCreate:
		req.method = http.MethodPost
	case catalog.OpUpdate:
		req.method = http.MethodPut
	case catalog.OpDelete:
		req.method = http.MethodDelete
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported operation %q", op))
	}

	if op != catalog.OpDelete {
		var err error
		if route.Form {
			req.body, req.contentType, err = encodeForm(payload)
		} else {
			req.body, req.contentType, err = encodeJSON(payload)
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode request payload")
		}
	}
	return c.do(ctx, req)
}

type request struct {
	kind        string
	method      string
	route       catalog.Route
	path        string
	body        []byte
	contentType string
}

func (c *Client) do(ctx context.Context, req request) (json.RawMessage, error) {
	token := c.creds.Token()
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "no active session")
	}
	base, ok := c.baseURLs[req.route.Service]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("no base url configured for %s service", req.route.Service))
	}

	ctx, span := c.tracer.Start(ctx, "upstream "+req.method+" "+req.kind,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("ims.service", req.route.Service),
			attribute.String("ims.kind", req.kind),
			attribute.String("http.method", req.method),
		),
	)
	defer span.End()

	start := time.Now()
	outcome := "ok"
	defer func() {
		c.metrics.ObserveUpstream(req.kind, req.method, outcome, time.Since(start))
	}()

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, base+req.path, body)
	if err != nil {
		outcome = "invalid"
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build upstream request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	c.propagator.Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		outcome = "unreachable"
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreachable")
		c.logFailure(ctx, req, 0, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnreachable, err, fmt.Sprintf("%s service unreachable", req.route.Service))
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, c.errorBodyLimit))
		detail := extractDetail(raw, resp.StatusCode)
		span.SetStatus(codes.Error, detail)
		if resp.StatusCode == http.StatusUnauthorized {
			outcome = "unauthorized"
			c.creds.Expire("unauthorized")
			err := pkgerrors.New(pkgerrors.CodeUnauthenticated, detail)
			c.logFailure(ctx, req, resp.StatusCode, err)
			return nil, err
		}
		outcome = "rejected"
		err := pkgerrors.Rejected(resp.StatusCode, detail)
		c.logFailure(ctx, req, resp.StatusCode, err)
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "unreachable"
		span.RecordError(err)
		c.logFailure(ctx, req, resp.StatusCode, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnreachable, err, fmt.Sprintf("reading %s service response", req.route.Service))
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if !json.Valid(raw) {
		outcome = "invalid"
		return nil, c.invalidBody(ctx, req.kind, req.route, fmt.Errorf("response is not valid JSON"))
	}
	return json.RawMessage(raw), nil
}

func (c *Client) invalidBody(ctx context.Context, kind string, route catalog.Route, cause error) error {
	err := pkgerrors.Rejected(http.StatusBadGateway, fmt.Sprintf("unexpected response from %s service: %v", route.Service, cause))
	c.logFailure(ctx, request{kind: kind, route: route}, http.StatusBadGateway, err)
	return err
}

func (c *Client) logFailure(ctx context.Context, req request, status int, err error) {
	fields := map[string]any{
		"upstream_service": req.route.Service,
		"upstream_kind":    req.kind,
	}
	if req.method != "" {
		fields["upstream_method"] = req.method
	}
	if status != 0 {
		fields["upstream_status"] = status
	}
	c.logg.Warn(c.logg.WithFields(ctx, fields), fmt.Sprintf("upstream request failed: %v", err))
}

// extractDetail prefers the body's detail field, then the body text, then the status text.
func extractDetail(body []byte, status int) string {
	trimmed := bytes.TrimSpace(body)
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(trimmed) > 0 && json.Unmarshal(trimmed, &envelope) == nil && len(envelope.Detail) > 0 && string(envelope.Detail) != "null" {
		var text string
		if json.Unmarshal(envelope.Detail, &text) == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text
			}
		} else {
			var compact bytes.Buffer
			if json.Compact(&compact, envelope.Detail) == nil {
				return compact.String()
			}
		}
	}
	if len(trimmed) > 0 {
		return string(trimmed)
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
