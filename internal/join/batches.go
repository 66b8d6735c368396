package join

import (
	"fmt"
	"sort"

	"github.com/bleu-ims/ims-gateway/internal/catalog"
)

const (
	NoBatchLabel       = "No Batch"
	BatchNotFoundLabel = "Batch Not Found"
)

type batchRef struct {
	itemID int64
	label  string
}

// BatchNumbers labels batches "Batch 1".."Batch N" per item, ordered by
// restock date. Ties keep the input order, so the same input always yields
// the same labels. Back-dated inserts renumber later batches.
type BatchNumbers struct {
	refs map[int64]batchRef
}

func NumberBatches(batches []catalog.Batch) BatchNumbers {
	byItem := map[int64][]catalog.Batch{}
	var items []int64
	for _, batch := range batches {
		if _, seen := byItem[batch.ItemID]; !seen {
			items = append(items, batch.ItemID)
		}
		byItem[batch.ItemID] = append(byItem[batch.ItemID], batch)
	}

	refs := make(map[int64]batchRef, len(batches))
	for _, item := range items {
		group := byItem[item]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].RestockDate.Before(group[j].RestockDate)
		})
		for i, batch := range group {
			if _, exists := refs[batch.BatchID]; exists {
				continue
			}
			refs[batch.BatchID] = batchRef{itemID: item, label: fmt.Sprintf("Batch %d", i+1)}
		}
	}
	return BatchNumbers{refs: refs}
}

// Label returns the batch label of batchID for itemID.
func (n BatchNumbers) Label(itemID int64, batchID *int64) (string, bool) {
	if batchID == nil {
		return NoBatchLabel, true
	}
	ref, ok := n.refs[*batchID]
	if !ok || ref.itemID != itemID {
		return BatchNotFoundLabel, false
	}
	return ref.label, true
}

// Len reports how many batches were numbered.
func (n BatchNumbers) Len() int {
	return len(n.refs)
}
