package logging

import (
	"context"
	"log/slog"

	"wbwatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCycleID is the standardized structured logging key for poll cycle identifiers.
	FieldCycleID = "cycle_id"
	// FieldWarehouse is the standardized structured logging key for warehouse names.
	FieldWarehouse = "warehouse"
	// FieldOrderID is the standardized structured logging key for order identifiers.
	FieldOrderID = "order_id"
	// FieldStage is the standardized structured logging key for processing stage names.
	FieldStage = "stage"
	// FieldRecipient is the standardized structured logging key for notification recipients.
	FieldRecipient = "recipient_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind carries services.Kind for the logged error.
	FieldErrorKind = "error_kind"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.CycleIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCycleID, id))
	}
	if wh, ok := services.WarehouseFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWarehouse, wh))
	}
	if id, ok := services.OrderIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOrderID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// ErrorAttrs returns the error plus its classification.
func ErrorAttrs(err error) []Attr {
	return []Attr{Error(err), String(FieldErrorKind, services.Kind(err))}
}
