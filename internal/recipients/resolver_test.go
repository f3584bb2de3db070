package recipients_test

import (
	"slices"
	"testing"

	"wbwatch/internal/orders"
	"wbwatch/internal/recipients"
)

func TestResolve(t *testing.T) {
	r := recipients.New([]orders.AccessEntry{
		{WarehouseName: "W", RecipientID: 3},
		{WarehouseName: "W", RecipientID: 1},
		{WarehouseName: "V", RecipientID: 9},
		{WarehouseName: "W", RecipientID: 3},
		{WarehouseName: " W ", RecipientID: 2},
		{WarehouseName: "", RecipientID: 5},
		{WarehouseName: "W", RecipientID: 0},
	})

	if got := r.Resolve("W"); !slices.Equal(got, []int64{3, 1, 2}) {
		t.Fatalf("unexpected recipients for W: %v", got)
	}
	if got := r.Resolve("V"); !slices.Equal(got, []int64{9}) {
		t.Fatalf("unexpected recipients for V: %v", got)
	}
	if got := r.Resolve("missing"); len(got) != 0 {
		t.Fatalf("expected no recipients, got %v", got)
	}
	if got := r.Warehouses(); !slices.Equal(got, []string{"V", "W"}) {
		t.Fatalf("unexpected warehouses: %v", got)
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	r := recipients.New([]orders.AccessEntry{{WarehouseName: "W", RecipientID: 1}})
	got := r.Resolve("W")
	got[0] = 42
	if again := r.Resolve("W"); again[0] != 1 {
		t.Fatalf("resolver state was mutated: %v", again)
	}
}

func TestNilResolver(t *testing.T) {
	var r *recipients.Resolver
	if got := r.Resolve("W"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
