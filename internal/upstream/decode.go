package upstream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
	pkgerrors "github.com/bleu-ims/ims-gateway/pkg/errors"
)

// Decode converts raw records of kind into T. One undecodable record fails the collection.
func Decode[T any](kind catalog.Kind, records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, raw := range records {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, pkgerrors.Rejected(http.StatusBadGateway, fmt.Sprintf("unexpected %s record at index %d: %v", kind, i, err))
		}
		out = append(out, item)
	}
	return out, nil
}
