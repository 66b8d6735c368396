package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/collections"
	"github.com/bleu-ims/ims-gateway/internal/join"
	"github.com/bleu-ims/ims-gateway/internal/status"
)

// Name identifies a screen.
type Name string

const (
	Ingredients        Name = "ingredients"
	Supplies           Name = "supplies"
	Merchandise        Name = "merchandise"
	IngredientBatches  Name = "ingredient-batches"
	MaterialBatches    Name = "material-batches"
	MerchandiseBatches Name = "merchandise-batches"
	Products           Name = "products"
	Recipes            Name = "recipes"
	Waste              Name = "waste"
	Dashboard          Name = "dashboard"
)

// Names lists every view in menu order.
var Names = []Name{
	Dashboard, Ingredients, Supplies, Merchandise,
	IngredientBatches, MaterialBatches, MerchandiseBatches,
	Products, Recipes, Waste,
}

// ParseName accepts a view name in any case, with dashes or underscores.
func ParseName(value string) (Name, error) {
	name := Name(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-"))
	if name == "materials" {
		name = Supplies
	}
	if _, ok := definitions[name]; !ok {
		return "", fmt.Errorf("unknown view %q", value)
	}
	return name, nil
}

// buildInput is what a view builder reads after every dependency settled.
type buildInput struct {
	values   map[collections.Key]any
	states   map[collections.Key]SourceState
	policies status.Policies
	now      time.Time
}

func value[T any](in buildInput, key collections.Key) T {
	var zero T
	v, ok := in.values[key]
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

type built struct {
	rows      []Row
	options   map[string][]Choice
	dashboard *DashboardAggregate
}

type definition struct {
	deps  []collections.Key
	build func(in buildInput) built
}

// Dependencies returns the cache keys a view reads.
func Dependencies(name Name) []collections.Key {
	def, ok := definitions[name]
	if !ok {
		return nil
	}
	return append([]collections.Key(nil), def.deps...)
}

// DependsOn reports whether a mutation of kind must refresh the view.
func DependsOn(name Name, kind catalog.Kind) bool {
	for _, key := range Dependencies(name) {
		if key == kindKey(kind) {
			return true
		}
	}
	return false
}

func keys(kinds ...catalog.Kind) []collections.Key {
	out := make([]collections.Key, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, kindKey(kind))
	}
	return out
}

func ingredientItems(in buildInput) []catalog.InventoryItem {
	records := value[[]catalog.Ingredient](in, kindKey(catalog.KindIngredient))
	items := make([]catalog.InventoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, catalog.FromIngredient(r))
	}
	return items
}

func materialItems(in buildInput) []catalog.InventoryItem {
	records := value[[]catalog.Material](in, kindKey(catalog.KindMaterial))
	items := make([]catalog.InventoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, catalog.FromMaterial(r))
	}
	return items
}

func merchandiseItems(in buildInput) []catalog.InventoryItem {
	records := value[[]catalog.Merchandise](in, kindKey(catalog.KindMerchandise))
	items := make([]catalog.InventoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, catalog.FromMerchandise(r))
	}
	return items
}

func inventoryView(kind catalog.Kind, items func(buildInput) []catalog.InventoryItem) definition {
	return definition{
		deps: keys(kind),
		build: func(in buildInput) built {
			return built{rows: inventoryRows(kind, items(in), in.policies.For(kind), in.now)}
		},
	}
}

func batchView(batchKind, itemKind catalog.Kind, sentinel string, items func(buildInput) []catalog.InventoryItem) definition {
	return definition{
		deps: keys(batchKind, itemKind),
		build: func(in buildInput) built {
			catalogItems := items(in)
			batches := value[[]catalog.Batch](in, kindKey(batchKind))
			return built{
				rows:    restockRows(batchKind, batches, catalogItems, sentinel, in.policies.For(batchKind), in.now),
				options: map[string][]Choice{"items": inventoryOptions(catalogItems)},
			}
		},
	}
}

var definitions = map[Name]definition{
	Ingredients:        inventoryView(catalog.KindIngredient, ingredientItems),
	Supplies:           inventoryView(catalog.KindMaterial, materialItems),
	Merchandise:        inventoryView(catalog.KindMerchandise, merchandiseItems),
	IngredientBatches:  batchView(catalog.KindIngredientBatch, catalog.KindIngredient, "Ingredient Not Found", ingredientItems),
	MaterialBatches:    batchView(catalog.KindMaterialBatch, catalog.KindMaterial, "Material Not Found", materialItems),
	MerchandiseBatches: batchView(catalog.KindMerchandiseBatch, catalog.KindMerchandise, "Merchandise Not Found", merchandiseItems),
	Products: {
		deps: keys(catalog.KindProduct, catalog.KindProductType),
		build: func(in buildInput) built {
			types := value[[]catalog.ProductType](in, kindKey(catalog.KindProductType))
			products := productRows(value[[]catalog.Product](in, kindKey(catalog.KindProduct)), types)
			rows := make([]Row, 0, len(products))
			for _, p := range products {
				rows = append(rows, p)
			}
			return built{rows: rows, options: map[string][]Choice{"product_types": productTypeOptions(types)}}
		},
	},
	Recipes: {
		deps: keys(catalog.KindRecipe, catalog.KindProduct, catalog.KindProductType, catalog.KindIngredient, catalog.KindMaterial),
		build: func(in buildInput) built {
			products := value[[]catalog.Product](in, kindKey(catalog.KindProduct))
			types := value[[]catalog.ProductType](in, kindKey(catalog.KindProductType))
			ingredients := value[[]catalog.Ingredient](in, kindKey(catalog.KindIngredient))
			materials := value[[]catalog.Material](in, kindKey(catalog.KindMaterial))
			rows := recipeRows(value[[]catalog.Recipe](in, kindKey(catalog.KindRecipe)), productRows(products, types), ingredients, materials)
			return built{rows: rows, options: map[string][]Choice{
				"products":    productOptions(products),
				"ingredients": inventoryOptions(ingredientItems(in)),
				"materials":   inventoryOptions(materialItems(in)),
			}}
		},
	},
	Waste: {
		deps: keys(
			catalog.KindWasteLog,
			catalog.KindIngredient, catalog.KindMaterial, catalog.KindMerchandise,
			catalog.KindIngredientBatch, catalog.KindMaterialBatch, catalog.KindMerchandiseBatch,
		),
		build: func(in buildInput) built {
			src := join.WasteSources{
				Ingredients: value[[]catalog.Ingredient](in, kindKey(catalog.KindIngredient)),
				Materials:   value[[]catalog.Material](in, kindKey(catalog.KindMaterial)),
				Merchandise: value[[]catalog.Merchandise](in, kindKey(catalog.KindMerchandise)),
				Batches: map[catalog.ItemType][]catalog.Batch{
					catalog.ItemIngredient:  value[[]catalog.Batch](in, kindKey(catalog.KindIngredientBatch)),
					catalog.ItemMaterial:    value[[]catalog.Batch](in, kindKey(catalog.KindMaterialBatch)),
					catalog.ItemMerchandise: value[[]catalog.Batch](in, kindKey(catalog.KindMerchandiseBatch)),
				},
			}
			return built{
				rows: wasteRows(value[[]catalog.WasteLog](in, kindKey(catalog.KindWasteLog)), src),
				options: map[string][]Choice{
					"ingredients": inventoryOptions(ingredientItems(in)),
					"materials":   inventoryOptions(materialItems(in)),
					"merchandise": inventoryOptions(merchandiseItems(in)),
				},
			}
		},
	},
	Dashboard: {
		deps: dashboardDeps,
		build: func(in buildInput) built {
			return built{dashboard: aggregateDashboard(in)}
		},
	},
}
