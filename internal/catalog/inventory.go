package catalog

// InventoryItem is the common shape of ingredients, materials and merchandise.
type InventoryItem struct {
	Kind           Kind    `json:"kind"`
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	Category       string  `json:"category,omitempty"`
	AddedDate      Date    `json:"added_date"`
	BestBeforeDate Date    `json:"best_before_date"`
	ExpirationDate Date    `json:"expiration_date"`
	Status         string  `json:"status"`
}

func FromIngredient(in Ingredient) InventoryItem {
	return InventoryItem{
		Kind:           KindIngredient,
		ID:             in.IngredientID,
		Name:           in.IngredientName,
		Quantity:       in.Amount,
		Unit:           in.Measurement,
		Category:       "Ingredient",
		BestBeforeDate: in.BestBeforeDate,
		ExpirationDate: in.ExpirationDate,
		Status:         in.Status,
	}
}

func FromMaterial(in Material) InventoryItem {
	return InventoryItem{
		Kind:      KindMaterial,
		ID:        in.MaterialID,
		Name:      in.MaterialName,
		Quantity:  in.MaterialQuantity,
		Unit:      in.MaterialMeasurement,
		Category:  "Material",
		AddedDate: in.DateAdded,
		Status:    in.Status,
	}
}

func FromMerchandise(in Merchandise) InventoryItem {
	return InventoryItem{
		Kind:      KindMerchandise,
		ID:        in.MerchandiseID,
		Name:      in.MerchandiseName,
		Quantity:  in.MerchandiseQuantity,
		Unit:      "pcs",
		Category:  "Merchandise",
		AddedDate: in.MerchandiseDateAdded,
		Status:    in.Status,
	}
}
