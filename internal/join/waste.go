package join

import "github.com/bleu-ims/ims-gateway/internal/catalog"

// ItemNotFoundLabel resolves waste rows whose item type is unknown.
const ItemNotFoundLabel = "Item Not Found"

// WasteSources are the collections a waste log may point into.
// Nil collections resolve every reference to a sentinel.
type WasteSources struct {
	Ingredients []catalog.Ingredient
	Materials   []catalog.Material
	Merchandise []catalog.Merchandise
	Batches     map[catalog.ItemType][]catalog.Batch
}

// Resolver looks up item names and batch labels for one item type.
type Resolver struct {
	Sentinel string
	names    map[int64]string
	batches  BatchNumbers
}

func newResolver(sentinel string, names map[int64]string, batches []catalog.Batch) Resolver {
	return Resolver{Sentinel: sentinel, names: names, batches: NumberBatches(batches)}
}

func (r Resolver) Name(itemID int64) (string, bool) {
	name, ok := r.names[itemID]
	if !ok {
		return r.Sentinel, false
	}
	return name, true
}

// WasteResolvers dispatches on a waste log's item type.
type WasteResolvers map[catalog.ItemType]Resolver

func NewWasteResolvers(src WasteSources) WasteResolvers {
	ingredients := make(map[int64]string, len(src.Ingredients))
	for _, in := range src.Ingredients {
		ingredients[in.IngredientID] = in.IngredientName
	}
	materials := make(map[int64]string, len(src.Materials))
	for _, in := range src.Materials {
		materials[in.MaterialID] = in.MaterialName
	}
	merchandise := make(map[int64]string, len(src.Merchandise))
	for _, in := range src.Merchandise {
		merchandise[in.MerchandiseID] = in.MerchandiseName
	}
	return WasteResolvers{
		catalog.ItemIngredient:  newResolver("Ingredient Not Found", ingredients, src.Batches[catalog.ItemIngredient]),
		catalog.ItemMaterial:    newResolver("Material Not Found", materials, src.Batches[catalog.ItemMaterial]),
		catalog.ItemMerchandise: newResolver("Merchandise Not Found", merchandise, src.Batches[catalog.ItemMerchandise]),
	}
}

// WasteResolution is the joined view of one waste log.
type WasteResolution struct {
	ItemName      string
	BatchLabel    string
	ItemResolved  bool
	BatchResolved bool
}

// Resolve never fails: unknown references come back as sentinel labels.
func (r WasteResolvers) Resolve(log catalog.WasteLog) WasteResolution {
	resolver, ok := r[log.ItemType.Normalize()]
	if !ok {
		out := WasteResolution{ItemName: ItemNotFoundLabel, BatchLabel: BatchNotFoundLabel}
		if log.BatchID == nil {
			out.BatchLabel = NoBatchLabel
			out.BatchResolved = true
		}
		return out
	}
	name, itemOK := resolver.Name(log.ItemID)
	label, batchOK := resolver.batches.Label(log.ItemID, log.BatchID)
	return WasteResolution{ItemName: name, BatchLabel: label, ItemResolved: itemOK, BatchResolved: batchOK}
}
