package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Upstream UpstreamConfig
	Redis    RedisConfig
	Session  SessionConfig
	Views    ViewsConfig
	Status   StatusConfig
	CORS     CORSConfig
	Tracing  TracingConfig
	Limits   LimitsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Upstream.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"IMS_APP_ENV" default:"dev"`
	Port         string `envconfig:"IMS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"IMS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"IMS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// UpstreamConfig addresses the six inventory services. The defaults match the
// ports the services listen on in a local deployment.
type UpstreamConfig struct {
	ProductsURL    string        `envconfig:"IMS_UPSTREAM_PRODUCTS_URL" default:"http://127.0.0.1:8001"`
	IngredientsURL string        `envconfig:"IMS_UPSTREAM_INGREDIENTS_URL" default:"http://127.0.0.1:8002"`
	MaterialsURL   string        `envconfig:"IMS_UPSTREAM_MATERIALS_URL" default:"http://127.0.0.1:8003"`
	MerchandiseURL string        `envconfig:"IMS_UPSTREAM_MERCHANDISE_URL" default:"http://127.0.0.1:8004"`
	RecipesURL     string        `envconfig:"IMS_UPSTREAM_RECIPES_URL" default:"http://127.0.0.1:8005"`
	WasteURL       string        `envconfig:"IMS_UPSTREAM_WASTE_URL" default:"http://127.0.0.1:8006"`
	Timeout        time.Duration `envconfig:"IMS_UPSTREAM_TIMEOUT" default:"0s"`
	MaxErrorBody   int64         `envconfig:"IMS_UPSTREAM_MAX_ERROR_BODY" default:"65536"`
}

// Services returns the base URL of every upstream service keyed by service name.
func (u UpstreamConfig) Services() map[string]string {
	return map[string]string{
		ServiceProducts:    u.ProductsURL,
		ServiceIngredients: u.IngredientsURL,
		ServiceMaterials:   u.MaterialsURL,
		ServiceMerchandise: u.MerchandiseURL,
		ServiceRecipes:     u.RecipesURL,
		ServiceWaste:       u.WasteURL,
	}
}

func (u UpstreamConfig) validate() error {
	for name, raw := range u.Services() {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid %s upstream url %q", name, raw)
		}
	}
	return nil
}

// RedisConfig is optional. Sessions stay in memory when neither URL nor Address is set.
type RedisConfig struct {
	URL          string        `envconfig:"IMS_REDIS_URL"`
	Address      string        `envconfig:"IMS_REDIS_ADDR"`
	Password     string        `envconfig:"IMS_REDIS_PASSWORD"`
	DB           int           `envconfig:"IMS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"IMS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"IMS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"IMS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"IMS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"IMS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type SessionConfig struct {
	TTL time.Duration `envconfig:"IMS_SESSION_TTL" default:"12h"`
}

type ViewsConfig struct {
	IdleTTL         time.Duration `envconfig:"IMS_VIEW_IDLE_TTL" default:"15m"`
	JanitorInterval time.Duration `envconfig:"IMS_VIEW_JANITOR_INTERVAL" default:"1m"`
	DefaultPerPage  int           `envconfig:"IMS_VIEW_DEFAULT_PER_PAGE" default:"25"`
}

// StatusConfig selects the status mode per resource kind. Values are
// "server" (trust the upstream label) or "client" (derive from quantity).
type StatusConfig struct {
	Ingredient       string  `envconfig:"IMS_STATUS_INGREDIENT" default:"server"`
	Material         string  `envconfig:"IMS_STATUS_MATERIAL" default:"server"`
	Merchandise      string  `envconfig:"IMS_STATUS_MERCHANDISE" default:"server"`
	IngredientBatch  string  `envconfig:"IMS_STATUS_INGREDIENT_BATCH" default:"client"`
	MaterialBatch    string  `envconfig:"IMS_STATUS_MATERIAL_BATCH" default:"client"`
	MerchandiseBatch string  `envconfig:"IMS_STATUS_MERCHANDISE_BATCH" default:"client"`
	LowThreshold     float64 `envconfig:"IMS_STATUS_LOW_THRESHOLD" default:"10"`
	UnitRules        bool    `envconfig:"IMS_STATUS_UNIT_RULES" default:"false"`
}

// ModeFor returns the configured mode for a kind, falling back to "server".
func (s StatusConfig) ModeFor(kind string) string {
	modes := map[string]string{
		"ingredient":        s.Ingredient,
		"material":          s.Material,
		"merchandise":       s.Merchandise,
		"ingredient_batch":  s.IngredientBatch,
		"material_batch":    s.MaterialBatch,
		"merchandise_batch": s.MerchandiseBatch,
	}
	mode := strings.ToLower(strings.TrimSpace(modes[kind]))
	if mode == "" {
		return StatusModeServer
	}
	return mode
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"IMS_CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

// TracingConfig enables OTLP/HTTP span export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `envconfig:"IMS_OTLP_ENDPOINT"`
	Insecure    bool    `envconfig:"IMS_OTLP_INSECURE" default:"true"`
	ServiceName string  `envconfig:"IMS_SERVICE_NAME" default:"ims-gateway"`
	SampleRatio float64 `envconfig:"IMS_TRACE_SAMPLE_RATIO" default:"1"`
}

func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

type LimitsConfig struct {
	SessionPerMinute int   `envconfig:"IMS_LIMIT_SESSION_PER_MINUTE" default:"20"`
	MaxBodyBytes     int64 `envconfig:"IMS_LIMIT_MAX_BODY_BYTES" default:"1048576"`
}
