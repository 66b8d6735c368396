package mutations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
	"github.com/bleu-ims/ims-gateway/pkg/validate"
	"github.com/shopspring/decimal"
)

type IngredientPayload struct {
	IngredientName string  `json:"IngredientName" validate:"required"`
	Amount         float64 `json:"Amount" validate:"gte=0"`
	Measurement    string  `json:"Measurement" validate:"required"`
	BestBeforeDate string  `json:"BestBeforeDate" validate:"required,datetime=2006-01-02"`
	ExpirationDate string  `json:"ExpirationDate" validate:"required,datetime=2006-01-02"`
}

type MaterialPayload struct {
	MaterialName        string  `json:"MaterialName" validate:"required"`
	MaterialQuantity    float64 `json:"MaterialQuantity" validate:"gte=0"`
	MaterialMeasurement string  `json:"MaterialMeasurement" validate:"required"`
	DateAdded           string  `json:"DateAdded" validate:"required,datetime=2006-01-02"`
}

type MerchandisePayload struct {
	MerchandiseName      string `json:"MerchandiseName" validate:"required"`
	MerchandiseQuantity  int64  `json:"MerchandiseQuantity" validate:"gte=0"`
	MerchandiseDateAdded string `json:"MerchandiseDateAdded" validate:"required,datetime=2006-01-02"`
}

type IngredientBatchPayload struct {
	IngredientID   int64   `json:"ingredient_id" validate:"required,gt=0"`
	Quantity       float64 `json:"quantity" validate:"gt=0"`
	Unit           string  `json:"unit" validate:"required"`
	BatchDate      string  `json:"batch_date" validate:"required,datetime=2006-01-02"`
	ExpirationDate string  `json:"expiration_date" validate:"required,datetime=2006-01-02"`
	LoggedBy       string  `json:"logged_by" validate:"required"`
	Notes          string  `json:"notes,omitempty"`
}

type MaterialBatchPayload struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	Unit       string  `json:"unit" validate:"required"`
	BatchDate  string  `json:"batch_date" validate:"required,datetime=2006-01-02"`
	LoggedBy   string  `json:"logged_by" validate:"required"`
	Notes      string  `json:"notes,omitempty"`
}

type MerchandiseBatchPayload struct {
	MerchandiseID int64   `json:"merchandise_id" validate:"required,gt=0"`
	Quantity      float64 `json:"quantity" validate:"gt=0"`
	Unit          string  `json:"unit" validate:"required"`
	BatchDate     string  `json:"batch_date" validate:"required,datetime=2006-01-02"`
	LoggedBy      string  `json:"logged_by" validate:"required"`
	Notes         string  `json:"notes,omitempty"`
}

// ProductPayload is sent to the products service as a multipart form.
type ProductPayload struct {
	ProductName        string          `json:"ProductName" validate:"required"`
	ProductTypeID      int64           `json:"ProductTypeID" validate:"required,gt=0"`
	ProductCategory    string          `json:"ProductCategory" validate:"required"`
	ProductDescription string          `json:"ProductDescription,omitempty"`
	ProductPrice       decimal.Decimal `json:"ProductPrice"`
	ProductSize        *string         `json:"ProductSize,omitempty"`
	ProductImage       string          `json:"ProductImage,omitempty" validate:"omitempty,url"`
}

type ProductTypePayload struct {
	ProductTypeName string `json:"productTypeName" validate:"required"`
	SizeRequired    bool   `json:"SizeRequired"`
}

type RecipeIngredientLine struct {
	IngredientID int64   `json:"IngredientID" validate:"required,gt=0"`
	Amount       float64 `json:"Amount" validate:"gt=0"`
	Measurement  string  `json:"Measurement" validate:"required"`
}

type RecipeMaterialLine struct {
	MaterialID  int64   `json:"MaterialID" validate:"required,gt=0"`
	Quantity    float64 `json:"Quantity" validate:"gt=0"`
	Measurement string  `json:"Measurement" validate:"required"`
}

type RecipePayload struct {
	ProductID   int64                  `json:"ProductID" validate:"required,gt=0"`
	RecipeName  string                 `json:"RecipeName" validate:"required"`
	Ingredients []RecipeIngredientLine `json:"Ingredients" validate:"dive"`
	Materials   []RecipeMaterialLine   `json:"Materials" validate:"dive"`
}

type WastePayload struct {
	ItemType    string  `json:"item_type" validate:"required,oneof=ingredient material merchandise"`
	ItemID      int64   `json:"item_id" validate:"required,gt=0"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Unit        string  `json:"unit" validate:"required"`
	WasteReason string  `json:"waste_reason" validate:"required"`
	LoggedBy    string  `json:"logged_by" validate:"required"`
	Notes       string  `json:"notes,omitempty"`
}

func newPayload(kind catalog.Kind) (any, error) {
	switch kind {
	case catalog.KindIngredient:
		return &IngredientPayload{}, nil
	case catalog.KindMaterial:
		return &MaterialPayload{}, nil
	case catalog.KindMerchandise:
		return &MerchandisePayload{}, nil
	case catalog.KindIngredientBatch:
		return &IngredientBatchPayload{}, nil
	case catalog.KindMaterialBatch:
		return &MaterialBatchPayload{}, nil
	case catalog.KindMerchandiseBatch:
		return &MerchandiseBatchPayload{}, nil
	case catalog.KindProduct:
		return &ProductPayload{}, nil
	case catalog.KindProductType:
		return &ProductTypePayload{}, nil
	case catalog.KindRecipe:
		return &RecipePayload{}, nil
	case catalog.KindWasteLog:
		return &WastePayload{}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown resource kind %q", kind))
}

// Decode parses and validates a create or update body for kind.
// Failures are VALIDATION_ERROR with per-field details and never reach the network.
func Decode(kind catalog.Kind, body []byte) (any, error) {
	payload, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": err.Error()})
	}
	normalize(payload)
	if err := validate.Struct(payload); err != nil {
		return nil, err
	}
	if p, ok := payload.(*ProductPayload); ok && !p.ProductPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"ProductPrice": "must be greater than 0"})
	}
	return payload, nil
}

func normalize(payload any) {
	switch p := payload.(type) {
	case *WastePayload:
		p.ItemType = string(catalog.ItemType(p.ItemType).Normalize())
	case *ProductPayload:
		if p.ProductSize != nil && strings.TrimSpace(*p.ProductSize) == "" {
			p.ProductSize = nil
		}
	}
}
