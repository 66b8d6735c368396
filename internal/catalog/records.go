package catalog

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

type Ingredient struct {
	IngredientID   int64   `json:"IngredientID"`
	IngredientName string  `json:"IngredientName"`
	Amount         float64 `json:"Amount"`
	Measurement    string  `json:"Measurement"`
	BestBeforeDate Date    `json:"BestBeforeDate"`
	ExpirationDate Date    `json:"ExpirationDate"`
	Status         string  `json:"Status"`
}

type Material struct {
	MaterialID          int64   `json:"MaterialID"`
	MaterialName        string  `json:"MaterialName"`
	MaterialQuantity    float64 `json:"MaterialQuantity"`
	MaterialMeasurement string  `json:"MaterialMeasurement"`
	DateAdded           Date    `json:"DateAdded"`
	Status              string  `json:"Status"`
}

type Merchandise struct {
	MerchandiseID        int64   `json:"MerchandiseID"`
	MerchandiseName      string  `json:"MerchandiseName"`
	MerchandiseQuantity  float64 `json:"MerchandiseQuantity"`
	MerchandiseDateAdded Date    `json:"MerchandiseDateAdded"`
	Status               string  `json:"Status"`
}

// Batch is one restock of an inventory item. The three batch services share the
// shape but prefix the item columns with their own kind.
type Batch struct {
	BatchID        int64   `json:"batch_id"`
	ItemID         int64   `json:"item_id"`
	ItemName       string  `json:"item_name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	BatchDate      Date    `json:"batch_date"`
	RestockDate    Date    `json:"restock_date"`
	ExpirationDate Date    `json:"expiration_date"`
	LoggedBy       string  `json:"logged_by"`
	Notes          string  `json:"notes"`
	Status         string  `json:"status"`
}

// UnmarshalJSON reads the kind-prefixed item columns (ingredient_id,
// material_name, ...) into ItemID and ItemName.
func (b *Batch) UnmarshalJSON(data []byte) error {
	type plain Batch
	var wire struct {
		plain
		IngredientID    *int64  `json:"ingredient_id"`
		IngredientName  *string `json:"ingredient_name"`
		MaterialID      *int64  `json:"material_id"`
		MaterialName    *string `json:"material_name"`
		MerchandiseID   *int64  `json:"merchandise_id"`
		MerchandiseName *string `json:"merchandise_name"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*b = Batch(wire.plain)
	for _, id := range []*int64{wire.IngredientID, wire.MaterialID, wire.MerchandiseID} {
		if id != nil {
			b.ItemID = *id
		}
	}
	for _, name := range []*string{wire.IngredientName, wire.MaterialName, wire.MerchandiseName} {
		if name != nil {
			b.ItemName = *name
		}
	}
	return nil
}

type Product struct {
	ProductID          int64           `json:"ProductID"`
	ProductName        string          `json:"ProductName"`
	ProductTypeID      int64           `json:"ProductTypeID"`
	ProductTypeName    string          `json:"ProductTypeName"`
	ProductCategory    string          `json:"ProductCategory"`
	ProductDescription string          `json:"ProductDescription"`
	ProductPrice       decimal.Decimal `json:"ProductPrice"`
	ProductSize        *string         `json:"ProductSize"`
	ProductImage       string          `json:"ProductImage"`
}

type ProductType struct {
	ProductTypeID   int64  `json:"productTypeID"`
	ProductTypeName string `json:"productTypeName"`
	SizeRequired    Flag   `json:"SizeRequired"`
}

type RecipeIngredient struct {
	RecipeIngredientID int64   `json:"RecipeIngredientID,omitempty"`
	IngredientID       int64   `json:"IngredientID,omitempty"`
	IngredientName     string  `json:"IngredientName"`
	Amount             float64 `json:"Amount"`
	Measurement        string  `json:"Measurement"`
}

type RecipeMaterial struct {
	RecipeMaterialID int64   `json:"RecipeMaterialID,omitempty"`
	MaterialID       int64   `json:"MaterialID,omitempty"`
	MaterialName     string  `json:"MaterialName"`
	Quantity         float64 `json:"Quantity"`
	Measurement      string  `json:"Measurement"`
}

type Recipe struct {
	RecipeID    int64              `json:"RecipeID"`
	ProductID   int64              `json:"ProductID"`
	RecipeName  string             `json:"RecipeName"`
	Ingredients []RecipeIngredient `json:"Ingredients"`
	Materials   []RecipeMaterial   `json:"Materials"`
}

type WasteLog struct {
	WasteID     int64    `json:"WasteID"`
	ItemType    ItemType `json:"ItemType"`
	ItemID      int64    `json:"ItemID"`
	BatchID     *int64   `json:"BatchID"`
	Amount      float64  `json:"Amount"`
	Unit        string   `json:"Unit"`
	WasteReason string   `json:"WasteReason"`
	WasteDate   Date     `json:"WasteDate"`
	LoggedBy    string   `json:"LoggedBy"`
	Notes       *string  `json:"Notes"`
}

// StockStatusCounts is returned by each live-inventory service.
type StockStatusCounts struct {
	Available    int64 `json:"available"`
	LowStock     int64 `json:"low_stock"`
	NotAvailable int64 `json:"not_available"`
}

// Add sums two count sets field by field.
func (c StockStatusCounts) Add(other StockStatusCounts) StockStatusCounts {
	return StockStatusCounts{
		Available:    c.Available + other.Available,
		LowStock:     c.LowStock + other.LowStock,
		NotAvailable: c.NotAvailable + other.NotAvailable,
	}
}

// Total is the number of items counted.
func (c StockStatusCounts) Total() int64 {
	return c.Available + c.LowStock + c.NotAvailable
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type ProductCount struct {
	Count int64 `json:"count"`
}

type LowStockAlert struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	InStock       float64 `json:"inStock"`
	ReorderLevel  float64 `json:"reorderLevel"`
	LastRestocked Date    `json:"lastRestocked"`
	Status        string  `json:"status"`
}

// FormatID renders a numeric id for use in paths and join keys.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
