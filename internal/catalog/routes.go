package catalog

import (
	"strings"

	"github.com/bleu-ims/ims-gateway/pkg/config"
)

// Route locates a collection on its upstream service.
type Route struct {
	Service string
	// Path is the collection path; item paths append the id to it.
	Path string
	// CreatePath overrides Path for create calls.
	CreatePath string
	// Form marks services that accept mutations as multipart form fields.
	Form bool
	Ops  []Op
}

var crud = []Op{OpCreate, OpUpdate, OpDelete}

var routes = map[Kind]Route{
	KindIngredient:       {Service: config.ServiceIngredients, Path: "/ingredients/ingredients/", Ops: crud},
	KindMaterial:         {Service: config.ServiceMaterials, Path: "/materials/materials/", Ops: crud},
	KindMerchandise:      {Service: config.ServiceMerchandise, Path: "/merchandise/merchandise/", Ops: crud},
	KindIngredientBatch:  {Service: config.ServiceIngredients, Path: "/ingredient-batches/ingredient-batches/", Ops: []Op{OpCreate}},
	KindMaterialBatch:    {Service: config.ServiceMaterials, Path: "/material-batches/material-batches/", Ops: []Op{OpCreate}},
	KindMerchandiseBatch: {Service: config.ServiceMerchandise, Path: "/merchandise-batches/merchandise-batches/", Ops: []Op{OpCreate}},
	KindProduct:          {Service: config.ServiceProducts, Path: "/is_products/products/", Form: true, Ops: crud},
	KindProductType:      {Service: config.ServiceProducts, Path: "/ProductType/", CreatePath: "/ProductType/create", Ops: crud},
	KindRecipe:           {Service: config.ServiceRecipes, Path: "/recipes/recipes/", Ops: crud},
	KindWasteLog:         {Service: config.ServiceWaste, Path: "/wastelogs/wastelogs/", Ops: []Op{OpCreate}},
}

// RouteFor returns the route of a kind.
func RouteFor(kind Kind) (Route, bool) {
	r, ok := routes[kind]
	return r, ok
}

// Allows reports whether the upstream exposes op for this collection.
func (r Route) Allows(op Op) bool {
	for _, candidate := range r.Ops {
		if candidate == op {
			return true
		}
	}
	return false
}

// ItemPath returns the path of one record.
func (r Route) ItemPath(id string) string {
	return strings.TrimRight(r.Path, "/") + "/" + strings.TrimSpace(id)
}

// MutationPath returns the path used for op.
func (r Route) MutationPath(op Op, id string) string {
	if op == OpCreate {
		if r.CreatePath != "" {
			return r.CreatePath
		}
		return r.Path
	}
	return r.ItemPath(id)
}

// Aggregate names a computed endpoint that returns a single document.
type Aggregate string

const (
	AggIngredientStock     Aggregate = "ingredient_stock_status"
	AggMaterialStock       Aggregate = "material_stock_status"
	AggMerchandiseStock    Aggregate = "merchandise_stock_status"
	AggProductCount        Aggregate = "product_count"
	AggInventoryByCategory Aggregate = "inventory_by_category"
	AggIngredientLowStock  Aggregate = "ingredient_low_stock"
	AggMaterialLowStock    Aggregate = "material_low_stock"
	AggMerchandiseLowStock Aggregate = "merchandise_low_stock"
)

var aggregateRoutes = map[Aggregate]Route{
	AggIngredientStock:     {Service: config.ServiceIngredients, Path: "/ingredients/ingredients/stock-status-counts"},
	AggMaterialStock:       {Service: config.ServiceMaterials, Path: "/materials/materials/stock-status-counts"},
	AggMerchandiseStock:    {Service: config.ServiceMerchandise, Path: "/merchandise/merchandise/stock-status-counts"},
	AggProductCount:        {Service: config.ServiceProducts, Path: "/is_products/count"},
	AggInventoryByCategory: {Service: config.ServiceProducts, Path: "/is_products/inventory-by-category"},
	AggIngredientLowStock:  {Service: config.ServiceIngredients, Path: "/ingredients/ingredients/low-stock-alerts"},
	AggMaterialLowStock:    {Service: config.ServiceMaterials, Path: "/materials/materials/low-stock-alerts"},
	AggMerchandiseLowStock: {Service: config.ServiceMerchandise, Path: "/merchandise/merchandise/low-stock-alerts"},
}

// AggregateRoute returns the route of an aggregate endpoint.
func AggregateRoute(a Aggregate) (Route, bool) {
	r, ok := aggregateRoutes[a]
	return r, ok
}
