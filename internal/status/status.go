package status

import (
	"strings"
	"time"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/pkg/config"
)

// Status is a display label for an inventory record.
type Status string

const (
	Available    Status = "Available"
	LowStock     Status = "Low Stock"
	NotAvailable Status = "Not Available"
	Used         Status = "Used"
	Expired      Status = "Expired"
	Unknown      Status = "Unknown"
)

// Mode selects who owns the label of a resource kind.
type Mode int

const (
	// ServerTrusted passes the upstream label through.
	ServerTrusted Mode = iota
	// ClientDerived computes the label from quantity and expiration.
	ClientDerived
)

func ParseMode(value string) Mode {
	if strings.EqualFold(strings.TrimSpace(value), config.StatusModeClient) {
		return ClientDerived
	}
	return ServerTrusted
}

func (m Mode) String() string {
	if m == ClientDerived {
		return config.StatusModeClient
	}
	return config.StatusModeServer
}

// Labels is the label set a policy classifies into.
type Labels struct {
	Available Status
	Low       Status
	Empty     Status
}

var (
	StockLabels = Labels{Available: Available, Low: LowStock, Empty: NotAvailable}
	BatchLabels = Labels{Available: Available, Low: Used, Empty: Used}
)

// DefaultLowThreshold is the inclusive upper bound of the low class.
const DefaultLowThreshold = 10

// UnitFallbackThreshold applies to units missing from a unit threshold table.
const UnitFallbackThreshold = 1

// DefaultUnitThresholds are the per-unit low thresholds used by the
// ingredient and material services.
var DefaultUnitThresholds = map[string]float64{
	"g":  50,
	"kg": 0.5,
	"ml": 100,
	"l":  0.5,
}

// Policy configures classification for one resource kind.
type Policy struct {
	Mode   Mode
	Labels Labels
	// Empty is the inclusive upper bound of the empty class.
	Empty float64
	// Low is the inclusive upper bound of the low class.
	Low float64
	// UnitLow, when set, replaces Low with a per-unit threshold.
	UnitLow map[string]float64
}

// Input carries the fields classification may read.
type Input struct {
	Quantity   float64
	Unit       string
	Expiration *time.Time
	Server     string
}

// Classify maps a record to its label. Server-trusted policies only normalise
// the upstream value; client-derived policies let expiration win over quantity.
func Classify(in Input, now time.Time, p Policy) Status {
	if p.Mode == ServerTrusted {
		return Normalize(in.Server)
	}
	if in.Expiration != nil && in.Expiration.Before(now) {
		return Expired
	}
	switch {
	case in.Quantity <= p.Empty:
		return p.Labels.Empty
	case in.Quantity <= p.lowFor(in.Unit):
		return p.Labels.Low
	default:
		return p.Labels.Available
	}
}

func (p Policy) lowFor(unit string) float64 {
	if p.UnitLow == nil {
		return p.Low
	}
	if threshold, ok := p.UnitLow[strings.ToLower(strings.TrimSpace(unit))]; ok {
		return threshold
	}
	return UnitFallbackThreshold
}

var known = map[string]Status{
	"available":     Available,
	"low stock":     LowStock,
	"low":           LowStock,
	"not available": NotAvailable,
	"out of stock":  NotAvailable,
	"used":          Used,
	"expired":       Expired,
}

// Normalize canonicalises an upstream label; unrecognised or blank values are Unknown.
func Normalize(label string) Status {
	key := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(label, "_", " ")), " "))
	if s, ok := known[key]; ok {
		return s
	}
	return Unknown
}

// Policies holds the policy of every classified kind.
type Policies map[catalog.Kind]Policy

// PoliciesFromConfig builds the per-kind policies from configuration.
func PoliciesFromConfig(cfg config.StatusConfig) Policies {
	low := cfg.LowThreshold
	if low <= 0 {
		low = DefaultLowThreshold
	}
	live := func(kind catalog.Kind, unitRules bool) Policy {
		p := Policy{Mode: ParseMode(cfg.ModeFor(string(kind))), Labels: StockLabels, Low: low}
		if unitRules {
			p.UnitLow = DefaultUnitThresholds
		}
		return p
	}
	batch := func(kind catalog.Kind) Policy {
		return Policy{Mode: ParseMode(cfg.ModeFor(string(kind))), Labels: BatchLabels, Low: low}
	}
	return Policies{
		catalog.KindIngredient:       live(catalog.KindIngredient, cfg.UnitRules),
		catalog.KindMaterial:         live(catalog.KindMaterial, cfg.UnitRules),
		catalog.KindMerchandise:      live(catalog.KindMerchandise, false),
		catalog.KindIngredientBatch:  batch(catalog.KindIngredientBatch),
		catalog.KindMaterialBatch:    batch(catalog.KindMaterialBatch),
		catalog.KindMerchandiseBatch: batch(catalog.KindMerchandiseBatch),
	}
}

// DefaultPolicies mirrors the configuration defaults.
func DefaultPolicies() Policies {
	return PoliciesFromConfig(config.StatusConfig{
		Ingredient:       config.StatusModeServer,
		Material:         config.StatusModeServer,
		Merchandise:      config.StatusModeServer,
		IngredientBatch:  config.StatusModeClient,
		MaterialBatch:    config.StatusModeClient,
		MerchandiseBatch: config.StatusModeClient,
		LowThreshold:     DefaultLowThreshold,
	})
}

// For returns the policy of kind, defaulting to server-trusted stock labels.
func (p Policies) For(kind catalog.Kind) Policy {
	if policy, ok := p[kind]; ok {
		return policy
	}
	return Policy{Mode: ServerTrusted, Labels: StockLabels, Low: DefaultLowThreshold}
}
