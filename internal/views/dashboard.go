package views

import (
	"github.com/bleu-ims/ims-gateway/internal/catalog"
	"github.com/bleu-ims/ims-gateway/internal/collections"
)

var stockSources = []catalog.Aggregate{
	catalog.AggIngredientStock,
	catalog.AggMaterialStock,
	catalog.AggMerchandiseStock,
}

var lowStockSources = []catalog.Aggregate{
	catalog.AggIngredientLowStock,
	catalog.AggMaterialLowStock,
	catalog.AggMerchandiseLowStock,
}

var dashboardDeps = func() []collections.Key {
	deps := []collections.Key{}
	for _, agg := range stockSources {
		deps = append(deps, aggregateKey(agg))
	}
	deps = append(deps, aggregateKey(catalog.AggProductCount), aggregateKey(catalog.AggInventoryByCategory))
	for _, agg := range lowStockSources {
		deps = append(deps, aggregateKey(agg))
	}
	return deps
}()

// DashboardAggregate folds the stock counts of the three inventory services.
// Widgets carry one state per source; failed sources are left out of the sums
// instead of being replaced with sample data.
type DashboardAggregate struct {
	TotalItems          int64                   `json:"total_items"`
	Available           int64                   `json:"available"`
	LowStock            int64                   `json:"low_stock"`
	NotAvailable        int64                   `json:"not_available"`
	ProductCount        *int64                  `json:"product_count"`
	InventoryByCategory []catalog.CategoryCount `json:"inventory_by_category"`
	LowStockAlerts      []catalog.LowStockAlert `json:"low_stock_alerts"`
	Widgets             map[string]SourceState  `json:"widgets"`
}

func aggregateDashboard(in buildInput) *DashboardAggregate {
	out := &DashboardAggregate{
		InventoryByCategory: []catalog.CategoryCount{},
		LowStockAlerts:      []catalog.LowStockAlert{},
		Widgets:             map[string]SourceState{},
	}
	loaded := func(key collections.Key) bool {
		state, ok := in.states[key]
		if !ok {
			state = SourceState{State: StateLoading}
		}
		out.Widgets[string(key)] = state
		return state.State == StateLoaded
	}

	var sum catalog.StockStatusCounts
	for _, agg := range stockSources {
		if key := aggregateKey(agg); loaded(key) {
			sum = sum.Add(value[catalog.StockStatusCounts](in, key))
		}
	}
	out.Available = sum.Available
	out.LowStock = sum.LowStock
	out.NotAvailable = sum.NotAvailable
	out.TotalItems = sum.Total()

	if key := aggregateKey(catalog.AggProductCount); loaded(key) {
		count := value[catalog.ProductCount](in, key).Count
		out.ProductCount = &count
	}
	if key := aggregateKey(catalog.AggInventoryByCategory); loaded(key) {
		if categories := value[[]catalog.CategoryCount](in, key); categories != nil {
			out.InventoryByCategory = categories
		}
	}
	for _, agg := range lowStockSources {
		if key := aggregateKey(agg); loaded(key) {
			out.LowStockAlerts = append(out.LowStockAlerts, value[[]catalog.LowStockAlert](in, key)...)
		}
	}
	return out
}
