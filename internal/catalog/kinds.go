package catalog

import (
	"fmt"
	"strings"
)

// Kind names one upstream-owned collection.
type Kind string

const (
	KindIngredient       Kind = "ingredient"
	KindMaterial         Kind = "material"
	KindMerchandise      Kind = "merchandise"
	KindIngredientBatch  Kind = "ingredient_batch"
	KindMaterialBatch    Kind = "material_batch"
	KindMerchandiseBatch Kind = "merchandise_batch"
	KindProduct          Kind = "product"
	KindProductType      Kind = "product_type"
	KindRecipe           Kind = "recipe"
	KindWasteLog         Kind = "waste_log"
)

var validKinds = []Kind{
	KindIngredient,
	KindMaterial,
	KindMerchandise,
	KindIngredientBatch,
	KindMaterialBatch,
	KindMerchandiseBatch,
	KindProduct,
	KindProductType,
	KindRecipe,
	KindWasteLog,
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known Kind.
func (k Kind) IsValid() bool {
	for _, candidate := range validKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseKind accepts kinds written with dashes or underscores in any case.
func ParseKind(value string) (Kind, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	k := Kind(normalized)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid resource kind %q", value)
	}
	return k, nil
}

// Op is a mutation verb.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ItemType tags a waste log with the catalog its ItemID points into.
type ItemType string

const (
	ItemIngredient  ItemType = "ingredient"
	ItemMaterial    ItemType = "material"
	ItemMerchandise ItemType = "merchandise"
)

// ItemTypes lists the supported waste item types.
var ItemTypes = []ItemType{ItemIngredient, ItemMaterial, ItemMerchandise}

// Normalize lower-cases and trims the raw value.
func (t ItemType) Normalize() ItemType {
	return ItemType(strings.ToLower(strings.TrimSpace(string(t))))
}

// CatalogKind returns the live-inventory collection for the item type.
func (t ItemType) CatalogKind() (Kind, bool) {
	switch t.Normalize() {
	case ItemIngredient:
		return KindIngredient, true
	case ItemMaterial:
		return KindMaterial, true
	case ItemMerchandise:
		return KindMerchandise, true
	}
	return "", false
}

// BatchKind returns the restock batch collection for the item type.
func (t ItemType) BatchKind() (Kind, bool) {
	switch t.Normalize() {
	case ItemIngredient:
		return KindIngredientBatch, true
	case ItemMaterial:
		return KindMaterialBatch, true
	case ItemMerchandise:
		return KindMerchandiseBatch, true
	}
	return "", false
}

// BatchItemType maps a batch kind back to the item type it restocks.
func BatchItemType(kind Kind) (ItemType, bool) {
	switch kind {
	case KindIngredientBatch:
		return ItemIngredient, true
	case KindMaterialBatch:
		return ItemMaterial, true
	case KindMerchandiseBatch:
		return ItemMerchandise, true
	}
	return "", false
}
