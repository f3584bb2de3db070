package recipients

import (
	"slices"
	"strings"

	"wbwatch/internal/orders"
)

// Resolver maps a warehouse to the recipients allowed to see its orders.
// It is built from one snapshot of the Access sheet and never changes.
type Resolver struct {
	byWarehouse map[string][]int64
}

// New indexes entries by warehouse. Warehouse names are matched exactly after
// trimming; recipients keep the order of their first appearance and repeats
// are dropped.
func New(entries []orders.AccessEntry) *Resolver {
	r := &Resolver{byWarehouse: make(map[string][]int64)}
	for _, entry := range entries {
		name := strings.TrimSpace(entry.WarehouseName)
		if name == "" || entry.RecipientID == 0 {
			continue
		}
		ids := r.byWarehouse[name]
		if slices.Contains(ids, entry.RecipientID) {
			continue
		}
		r.byWarehouse[name] = append(ids, entry.RecipientID)
	}
	return r
}

// Resolve returns the recipients of warehouse. An unknown warehouse yields an
// empty result, not an error.
func (r *Resolver) Resolve(warehouse string) []int64 {
	if r == nil {
		return nil
	}
	return slices.Clone(r.byWarehouse[strings.TrimSpace(warehouse)])
}

// Warehouses lists the warehouses that have at least one recipient.
func (r *Resolver) Warehouses() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byWarehouse))
	for name := range r.byWarehouse {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
