package contextkeys

import "context"

// contextKey is a private type to prevent collisions with keys defined in
// other packages.
type contextKey string

const (
	// AccountIDKey carries the signed-in account identifier.
	AccountIDKey contextKey = "accountID"
	// PlaceKeyKey carries the canonical place key of the place in view.
	PlaceKeyKey contextKey = "placeKey"
	// RequestIDKey carries a correlation id for a single engine operation.
	RequestIDKey contextKey = "requestID"
	// ComponentKey carries the engine component name.
	ComponentKey contextKey = "component"
	// OperationKey carries the operation name.
	OperationKey contextKey = "operation"
)

// WithAccountID returns a context carrying the account identifier.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, AccountIDKey, accountID)
}

// AccountIDFromContext extracts the account identifier, if present.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(AccountIDKey).(string)
	return v, ok && v != ""
}

// WithPlaceKey returns a context carrying the canonical place key.
func WithPlaceKey(ctx context.Context, placeKey string) context.Context {
	return context.WithValue(ctx, PlaceKeyKey, placeKey)
}

// PlaceKeyFromContext extracts the canonical place key, if present.
func PlaceKeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(PlaceKeyKey).(string)
	return v, ok && v != ""
}

// WithRequestID returns a context carrying an operation correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext extracts the correlation id, if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(RequestIDKey).(string)
	return v, ok && v != ""
}
