package services

import "context"

type contextKey string

const (
	cycleIDKey   contextKey = "cycle_id"
	warehouseKey contextKey = "warehouse"
	orderIDKey   contextKey = "order_id"
	stageKey     contextKey = "stage"
)

// WithCycleID annotates context with the poll cycle correlation identifier.
func WithCycleID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleIDFromContext extracts the poll cycle identifier if present.
func CycleIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(cycleIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWarehouse annotates context with the warehouse name.
func WithWarehouse(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, warehouseKey, name)
}

// WarehouseFromContext returns the warehouse name if present.
func WarehouseFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(warehouseKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithOrderID annotates context with the order identifier.
func WithOrderID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, orderIDKey, id)
}

// OrderIDFromContext returns the order identifier if present.
func OrderIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(orderIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the processing stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}
