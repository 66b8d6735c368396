package views

import (
	"context"
	"encoding/json"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/collections"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/upstream"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
)

// Source is the read side of the upstream client.
type Source interface {
	FetchCollection(ctx context.Context, kind catalog.Kind) ([]json.RawMessage, error)
	FetchAggregate(ctx context.Context, agg catalog.Aggregate, dest any) error
}

// Source states reported per dependency and per dashboard widget.
const (
	StateLoading = "loading"
	StateLoaded  = "loaded"
	StateError   = "error"
)

// SourceState describes how one dependency settled during the last load.
type SourceState struct {
	State   string `json:"state"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type loader func(ctx context.Context, src Source) (any, error)

func kindKey(kind catalog.Kind) collections.Key {
	return collections.Key(kind)
}

func aggregateKey(agg catalog.Aggregate) collections.Key {
	return collections.Key(agg)
}

func collectionLoader[T any](kind catalog.Kind) loader {
	return func(ctx context.Context, src Source) (any, error) {
		raw, err := src.FetchCollection(ctx, kind)
		if err != nil {
			return nil, err
		}
		return upstream.Decode[T](kind, raw)
	}
}

func aggregateLoader[T any](agg catalog.Aggregate) loader {
	return func(ctx context.Context, src Source) (any, error) {
		var out T
		if err := src.FetchAggregate(ctx, agg, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

var loaders = map[collections.Key]loader{
	kindKey(catalog.KindIngredient):       collectionLoader[catalog.Ingredient](catalog.KindIngredient),
	kindKey(catalog.KindMaterial):         collectionLoader[catalog.Material](catalog.KindMaterial),
	kindKey(catalog.KindMerchandise):      collectionLoader[catalog.Merchandise](catalog.KindMerchandise),
	kindKey(catalog.KindIngredientBatch):  collectionLoader[catalog.Batch](catalog.KindIngredientBatch),
	kindKey(catalog.KindMaterialBatch):    collectionLoader[catalog.Batch](catalog.KindMaterialBatch),
	kindKey(catalog.KindMerchandiseBatch): collectionLoader[catalog.Batch](catalog.KindMerchandiseBatch),
	kindKey(catalog.KindProduct):          collectionLoader[catalog.Product](catalog.KindProduct),
	kindKey(catalog.KindProductType):      collectionLoader[catalog.ProductType](catalog.KindProductType),
	kindKey(catalog.KindRecipe):           collectionLoader[catalog.Recipe](catalog.KindRecipe),
	kindKey(catalog.KindWasteLog):         collectionLoader[catalog.WasteLog](catalog.KindWasteLog),

	aggregateKey(catalog.AggIngredientStock):     aggregateLoader[catalog.StockStatusCounts](catalog.AggIngredientStock),
	aggregateKey(catalog.AggMaterialStock):       aggregateLoader[catalog.StockStatusCounts](catalog.AggMaterialStock),
	aggregateKey(catalog.AggMerchandiseStock):    aggregateLoader[catalog.StockStatusCounts](catalog.AggMerchandiseStock),
	aggregateKey(catalog.AggProductCount):        aggregateLoader[catalog.ProductCount](catalog.AggProductCount),
	aggregateKey(catalog.AggInventoryByCategory): aggregateLoader[[]catalog.CategoryCount](catalog.AggInventoryByCategory),
	aggregateKey(catalog.AggIngredientLowStock):  aggregateLoader[[]catalog.LowStockAlert](catalog.AggIngredientLowStock),
	aggregateKey(catalog.AggMaterialLowStock):    aggregateLoader[[]catalog.LowStockAlert](catalog.AggMaterialLowStock),
	aggregateKey(catalog.AggMerchandiseLowStock): aggregateLoader[[]catalog.LowStockAlert](catalog.AggMerchandiseLowStock),
}

// ProductTypes returns the product types held by any mounted view of the
// session, fetching them upstream when no view has them cached.
func (r *Registry) ProductTypes(ctx context.Context, s *session.Session) ([]catalog.ProductType, error) {
	key := kindKey(catalog.KindProductType)
	for _, v := range r.Mounted(s.ID()) {
		if types, ok := collections.GetAs[[]catalog.ProductType](v.cache, key); ok {
			return types, nil
		}
	}
	src, err := r.factory(s)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to build upstream client")
	}
	loaded, err := loaders[key](ctx, src)
	if err != nil {
		return nil, err
	}
	return loaded.([]catalog.ProductType), nil
}
