package mutations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/views"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
)

// Mutator is the write side of the upstream client.
type Mutator interface {
	Mutate(ctx context.Context, kind catalog.Kind, op catalog.Op, id string, payload any) (json.RawMessage, error)
}

// MutatorFactory binds a mutator to a session.
type MutatorFactory func(s *session.Session) (Mutator, error)

// Request is one create, update or delete.
type Request struct {
	Kind catalog.Kind
	Op   catalog.Op
	ID   string
	Body []byte
	// View is refreshed and returned after the write. It is mounted if needed.
	View views.Name
}

// Result is the confirmed server state after a write.
type Result struct {
	Record    json.RawMessage
	Refreshed []views.Name
	// Snapshot is the requested view after refresh, nil when none was named
	// or its refresh failed.
	Snapshot     *views.Snapshot
	RefreshError error
}

// Coordinator proxies writes and re-runs every affected view afterwards.
// Views are never patched locally.
type Coordinator struct {
	registry *views.Registry
	factory  MutatorFactory
	logg     *logger.Logger
}

func NewCoordinator(registry *views.Registry, factory MutatorFactory, logg *logger.Logger) *Coordinator {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Coordinator{registry: registry, factory: factory, logg: logg}
}

// Submit validates the payload, sends it upstream and, on success, refreshes
// every mounted view of the session that depends on the kind. On failure the
// upstream error is returned untouched and no cache is modified.
func (c *Coordinator) Submit(ctx context.Context, s *session.Session, req Request) (*Result, error) {
	route, ok := catalog.RouteFor(req.Kind)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown resource kind %q", req.Kind))
	}
	if !route.Allows(req.Op) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s does not support %s", req.Kind, req.Op))
	}

	var payload any
	if req.Op != catalog.OpDelete {
		decoded, err := Decode(req.Kind, req.Body)
		if err != nil {
			return nil, err
		}
		if err := c.checkProductSize(ctx, s, decoded); err != nil {
			return nil, err
		}
		payload = decoded
	}

	mutator, err := c.factory(s)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to build upstream client")
	}
	record, err := mutator.Mutate(ctx, req.Kind, req.Op, req.ID, payload)
	if err != nil {
		return nil, err
	}

	ctx = c.logg.WithFields(c.logg.WithSessionID(ctx, s.ID()), map[string]any{
		"kind": string(req.Kind),
		"op":   string(req.Op),
	})
	c.logg.Info(ctx, "mutation confirmed")

	result := &Result{Record: record}
	targets := c.registry.Mounted(s.ID())
	if req.View != "" {
		if _, mounted := c.registry.Lookup(s.ID(), req.View); !mounted {
			v, err := c.registry.Mount(s, req.View)
			if err != nil {
				result.RefreshError = err
				return result, nil
			}
			targets = append(targets, v)
		}
	}

	for _, v := range targets {
		requested := v.Name() == req.View
		if !requested && !views.DependsOn(v.Name(), req.Kind) {
			continue
		}
		snap, err := v.Refresh(ctx)
		if err != nil {
			c.logg.Warn(c.logg.WithView(ctx, string(v.Name())), fmt.Sprintf("refresh after mutation failed: %v", err))
			if requested {
				result.RefreshError = err
			}
			continue
		}
		result.Refreshed = append(result.Refreshed, v.Name())
		if requested {
			result.Snapshot = snap
		}
	}
	return result, nil
}

// checkProductSize enforces ProductType.SizeRequired. Types come from a
// mounted view when cached, otherwise from the products service.
func (c *Coordinator) checkProductSize(ctx context.Context, s *session.Session, payload any) error {
	product, ok := payload.(*ProductPayload)
	if !ok || product.ProductSize != nil {
		return nil
	}
	types, err := c.registry.ProductTypes(ctx, s)
	if err != nil {
		return err
	}
	for _, t := range types {
		if t.ProductTypeID == product.ProductTypeID && bool(t.SizeRequired) {
			return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"ProductSize": "is required"})
		}
	}
	return nil
}
