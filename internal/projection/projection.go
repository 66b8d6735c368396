package projection

import (
	"sort"
	"strings"

	"github.com/bleu-ims/ims-gateway/pkg/pagination"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// Direction orders rows by name. The zero value keeps upstream order.
type Direction string

const (
	Unsorted   Direction = ""
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection accepts asc/desc in any case; anything else is Unsorted.
func ParseDirection(value string) Direction {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "asc", "ascending":
		return Ascending
	case "desc", "descending":
		return Descending
	}
	return Unsorted
}

// Params are the presentation inputs of a projection.
type Params struct {
	SearchText    string
	StatusFilter  string
	SortDirection Direction
}

// Fields exposes the columns a projection reads from a row.
type Fields[T any] struct {
	Name   func(T) string
	Status func(T) string
}

// Project filters and sorts rows. It never mutates its input and is idempotent:
// projecting an already projected list with the same params returns it unchanged.
func Project[T any](rows []T, fields Fields[T], p Params) []T {
	out := make([]T, 0, len(rows))
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(p.SearchText))
	filter := strings.TrimSpace(p.StatusFilter)
	filterStatus := filter != "" && !strings.EqualFold(filter, StatusAll) && fields.Status != nil

	for _, row := range rows {
		if needle != "" && !strings.Contains(fold.String(fields.Name(row)), needle) {
			continue
		}
		if filterStatus && fields.Status(row) != filter {
			continue
		}
		out = append(out, row)
	}

	if p.SortDirection == Unsorted {
		return out
	}
	collator := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := fields.Name(out[i]), fields.Name(out[j])
		if p.SortDirection == Descending {
			return collator.CompareString(a, b) > 0
		}
		return collator.CompareString(a, b) < 0
	})
	return out
}

// Paginate slices an already projected list.
func Paginate[T any](rows []T, page pagination.Params) ([]T, pagination.Meta) {
	return pagination.Slice(rows, page)
}
