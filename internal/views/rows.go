package views

import (
	"strings"
	"time"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/join"
	"github.com/bleu-ims/ims-gateway/internal/status"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Row is one rendered line of a view.
type Row interface {
	RowName() string
	RowStatus() string
}

// groupedRow is implemented by rows that belong to a tab.
type groupedRow interface {
	RowGroup() string
}

// Sentinels for unresolved references.
const (
	ProductNotFound = "Product Not Found"
	TypeNotFound    = "Type Not Found"
)

// InventoryRow is a live ingredient, material or merchandise record.
type InventoryRow struct {
	catalog.InventoryItem
}

func (r InventoryRow) RowName() string   { return r.Name }
func (r InventoryRow) RowStatus() string { return r.Status }

func inventoryRows(kind catalog.Kind, items []catalog.InventoryItem, policy status.Policy, now time.Time) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		item.Status = string(status.Classify(status.Input{
			Quantity:   item.Quantity,
			Unit:       item.Unit,
			Expiration: item.ExpirationDate.Ptr(),
			Server:     item.Status,
		}, now, policy))
		item.Kind = kind
		rows = append(rows, InventoryRow{InventoryItem: item})
	}
	return rows
}

// RestockRow is a batch joined with the item it restocked.
type RestockRow struct {
	Kind           catalog.Kind `json:"kind"`
	BatchID        int64        `json:"batch_id"`
	BatchLabel     string       `json:"batch_label"`
	ItemID         int64        `json:"item_id"`
	ItemName       string       `json:"item_name"`
	ItemResolved   bool         `json:"item_resolved"`
	Quantity       float64      `json:"quantity"`
	Unit           string       `json:"unit"`
	BatchDate      catalog.Date `json:"batch_date"`
	RestockDate    catalog.Date `json:"restock_date"`
	ExpirationDate catalog.Date `json:"expiration_date"`
	LoggedBy       string       `json:"logged_by"`
	Notes          string       `json:"notes,omitempty"`
	Status         string       `json:"status"`
}

func (r RestockRow) RowName() string   { return r.ItemName }
func (r RestockRow) RowStatus() string { return r.Status }

func restockRows(kind catalog.Kind, batches []catalog.Batch, items []catalog.InventoryItem, sentinel string, policy status.Policy, now time.Time) []Row {
	joined, _ := join.Left(batches,
		func(b catalog.Batch) int64 { return b.ItemID },
		items,
		func(i catalog.InventoryItem) int64 { return i.ID },
		join.KeepUnresolved,
	)
	numbers := join.NumberBatches(batches)

	rows := make([]Row, 0, len(joined))
	for _, j := range joined {
		b := j.Primary
		name := b.ItemName
		if j.Resolved {
			name = j.Secondary.Name
		} else if strings.TrimSpace(name) == "" {
			name = sentinel
		}
		label, _ := numbers.Label(b.ItemID, &b.BatchID)
		rows = append(rows, RestockRow{
			Kind:           kind,
			BatchID:        b.BatchID,
			BatchLabel:     label,
			ItemID:         b.ItemID,
			ItemName:       name,
			ItemResolved:   j.Resolved,
			Quantity:       b.Quantity,
			Unit:           b.Unit,
			BatchDate:      b.BatchDate,
			RestockDate:    b.RestockDate,
			ExpirationDate: b.ExpirationDate,
			LoggedBy:       b.LoggedBy,
			Notes:          b.Notes,
			Status: string(status.Classify(status.Input{
				Quantity:   b.Quantity,
				Unit:       b.Unit,
				Expiration: b.ExpirationDate.Ptr(),
				Server:     b.Status,
			}, now, policy)),
		})
	}
	return rows
}

// ProductRow is a product joined with its product type.
type ProductRow struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	TypeID       int64           `json:"type_id"`
	TypeName     string          `json:"type_name"`
	TypeResolved bool            `json:"type_resolved"`
	SizeRequired bool            `json:"size_required"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Size         *string         `json:"size"`
	Image        string          `json:"image,omitempty"`
}

func (r ProductRow) RowName() string   { return r.Name }
func (r ProductRow) RowStatus() string { return "" }
func (r ProductRow) RowGroup() string  { return r.TypeName }

func productRows(products []catalog.Product, types []catalog.ProductType) []ProductRow {
	joined, _ := join.Left(products,
		func(p catalog.Product) int64 { return p.ProductTypeID },
		types,
		func(t catalog.ProductType) int64 { return t.ProductTypeID },
		join.KeepUnresolved,
	)
	rows := make([]ProductRow, 0, len(joined))
	for _, j := range joined {
		p := j.Primary
		row := ProductRow{
			ProductID:    p.ProductID,
			Name:         p.ProductName,
			TypeID:       p.ProductTypeID,
			TypeName:     p.ProductTypeName,
			TypeResolved: j.Resolved,
			Category:     p.ProductCategory,
			Description:  p.ProductDescription,
			Price:        p.ProductPrice,
			Size:         p.ProductSize,
			Image:        p.ProductImage,
		}
		if j.Resolved {
			row.TypeName = j.Secondary.ProductTypeName
			row.SizeRequired = bool(j.Secondary.SizeRequired)
		} else if strings.TrimSpace(row.TypeName) == "" {
			row.TypeName = TypeNotFound
		}
		rows = append(rows, row)
	}
	return rows
}

// RecipeLine is an ingredient or material line resolved against its catalog.
type RecipeLine struct {
	LineID   int64   `json:"line_id,omitempty"`
	ItemID   int64   `json:"item_id,omitempty"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Resolved bool    `json:"resolved"`
}

// RecipeRow is a recipe joined with its product and the product's type.
type RecipeRow struct {
	RecipeID        int64        `json:"recipe_id"`
	Name            string       `json:"name"`
	ProductID       int64        `json:"product_id"`
	ProductName     string       `json:"product_name"`
	ProductResolved bool         `json:"product_resolved"`
	Category        string       `json:"category"`
	Description     string       `json:"description"`
	TypeName        string       `json:"type_name"`
	Ingredients     []RecipeLine `json:"ingredients"`
	Materials       []RecipeLine `json:"materials"`
}

func (r RecipeRow) RowName() string   { return r.Name }
func (r RecipeRow) RowStatus() string { return "" }
func (r RecipeRow) RowGroup() string  { return r.TypeName }

func recipeRows(recipes []catalog.Recipe, products []ProductRow, ingredients []catalog.Ingredient, materials []catalog.Material) []Row {
	joined, _ := join.Left(recipes,
		func(r catalog.Recipe) int64 { return r.ProductID },
		products,
		func(p ProductRow) int64 { return p.ProductID },
		join.KeepUnresolved,
	)

	ingredientIndex := newLineIndex()
	for _, in := range ingredients {
		ingredientIndex.add(in.IngredientID, in.IngredientName)
	}
	materialIndex := newLineIndex()
	for _, m := range materials {
		materialIndex.add(m.MaterialID, m.MaterialName)
	}

	rows := make([]Row, 0, len(joined))
	for _, j := range joined {
		r := j.Primary
		row := RecipeRow{
			RecipeID:        r.RecipeID,
			Name:            r.RecipeName,
			ProductID:       r.ProductID,
			ProductResolved: j.Resolved,
			ProductName:     ProductNotFound,
			Category:        ProductNotFound,
			Description:     ProductNotFound,
			TypeName:        TypeNotFound,
			Ingredients:     make([]RecipeLine, 0, len(r.Ingredients)),
			Materials:       make([]RecipeLine, 0, len(r.Materials)),
		}
		if j.Resolved {
			row.ProductName = j.Secondary.Name
			row.Category = j.Secondary.Category
			row.Description = j.Secondary.Description
			row.TypeName = j.Secondary.TypeName
		}
		for _, line := range r.Ingredients {
			id, ok := ingredientIndex.resolve(line.IngredientID, line.IngredientName)
			row.Ingredients = append(row.Ingredients, RecipeLine{
				LineID: line.RecipeIngredientID, ItemID: id, Name: line.IngredientName,
				Amount: line.Amount, Unit: line.Measurement, Resolved: ok,
			})
		}
		for _, line := range r.Materials {
			id, ok := materialIndex.resolve(line.MaterialID, line.MaterialName)
			row.Materials = append(row.Materials, RecipeLine{
				LineID: line.RecipeMaterialID, ItemID: id, Name: line.MaterialName,
				Amount: line.Quantity, Unit: line.Measurement, Resolved: ok,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

// lineIndex resolves recipe lines by catalog id, falling back to a
// case-folded name match since recipe reads only carry names.
type lineIndex struct {
	fold   cases.Caser
	ids    map[int64]struct{}
	byName map[string]int64
}

func newLineIndex() *lineIndex {
	return &lineIndex{fold: cases.Fold(), ids: map[int64]struct{}{}, byName: map[string]int64{}}
}

func (x *lineIndex) add(id int64, name string) {
	x.ids[id] = struct{}{}
	key := x.fold.String(strings.TrimSpace(name))
	if _, exists := x.byName[key]; !exists {
		x.byName[key] = id
	}
}

func (x *lineIndex) resolve(id int64, name string) (int64, bool) {
	if _, ok := x.ids[id]; ok && id != 0 {
		return id, true
	}
	if known, ok := x.byName[x.fold.String(strings.TrimSpace(name))]; ok {
		return known, true
	}
	return id, false
}

// WasteRow is a waste log with its item name and batch label resolved.
type WasteRow struct {
	WasteID       int64            `json:"waste_id"`
	ItemType      catalog.ItemType `json:"item_type"`
	ItemID        int64            `json:"item_id"`
	ItemName      string           `json:"item_name"`
	ItemResolved  bool             `json:"item_resolved"`
	BatchID       *int64           `json:"batch_id"`
	BatchLabel    string           `json:"batch_label"`
	BatchResolved bool             `json:"batch_resolved"`
	Amount        float64          `json:"amount"`
	Unit          string           `json:"unit"`
	Reason        string           `json:"reason"`
	Date          catalog.Date     `json:"date"`
	LoggedBy      string           `json:"logged_by"`
	Notes         *string          `json:"notes"`
}

func (r WasteRow) RowName() string { return r.ItemName }

// RowStatus exposes the item type so the status filter selects a catalog.
func (r WasteRow) RowStatus() string { return string(r.ItemType) }

func wasteRows(logs []catalog.WasteLog, src join.WasteSources) []Row {
	resolvers := join.NewWasteResolvers(src)
	rows := make([]Row, 0, len(logs))
	for _, w := range logs {
		res := resolvers.Resolve(w)
		rows = append(rows, WasteRow{
			WasteID:       w.WasteID,
			ItemType:      w.ItemType.Normalize(),
			ItemID:        w.ItemID,
			ItemName:      res.ItemName,
			ItemResolved:  res.ItemResolved,
			BatchID:       w.BatchID,
			BatchLabel:    res.BatchLabel,
			BatchResolved: res.BatchResolved,
			Amount:        w.Amount,
			Unit:          w.Unit,
			Reason:        w.WasteReason,
			Date:          w.WasteDate,
			LoggedBy:      w.LoggedBy,
			Notes:         w.Notes,
		})
	}
	return rows
}

// Choice is an entry of a form select list.
type Choice struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	SizeRequired *bool  `json:"size_required,omitempty"`
}

func inventoryOptions(items []catalog.InventoryItem) []Choice {
	out := make([]Choice, 0, len(items))
	for _, item := range items {
		out = append(out, Choice{ID: item.ID, Name: item.Name})
	}
	return out
}

func productTypeOptions(types []catalog.ProductType) []Choice {
	out := make([]Choice, 0, len(types))
	for _, t := range types {
		required := bool(t.SizeRequired)
		out = append(out, Choice{ID: t.ProductTypeID, Name: t.ProductTypeName, SizeRequired: &required})
	}
	return out
}

func productOptions(products []catalog.Product) []Choice {
	out := make([]Choice, 0, len(products))
	for _, p := range products {
		out = append(out, Choice{ID: p.ProductID, Name: p.ProductName})
	}
	return out
}
