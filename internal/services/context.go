package services

import "context"

type contextKey string

const (
	taskIDKey    contextKey = "task_id"
	objectIDKey  contextKey = "object_id"
	requestIDKey contextKey = "request_id"
)

// WithTaskID annotates context with the migration task identifier.
func WithTaskID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext extracts the migration task identifier if present.
func TaskIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(taskIDKey)
	if val, ok := v.(int64); ok {
		return val, true
	}
	return 0, false
}

// WithObjectID annotates context with the data object identifier.
func WithObjectID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, objectIDKey, id)
}

// ObjectIDFromContext extracts the data object identifier if present.
func ObjectIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(objectIDKey)
	if val, ok := v.(int64); ok {
		return val, true
	}
	return 0, false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
