package wrap

import (
	"context"
)

type (
	// LogCtx holds contextual information for logging
	LogCtx struct {
		Action        string
		UserID        string
		RequestID     string
		RideID        string
		ApplicationID string
	}

	// logCtxKeyStruct is an unexported type for context keys defined in this package.
	logCtxKeyStruct struct{}
)

// LogCtxKey is the key for log context values
var LogCtxKey = &logCtxKeyStruct{}

func fromCtx(ctx context.Context) LogCtx {
	if lc, ok := ctx.Value(LogCtxKey).(LogCtx); ok {
		return lc
	}
	return LogCtx{}
}

// WithLogCtx returns a new context with the provided LogCtx merged over the existing one
func WithLogCtx(ctx context.Context, newLc LogCtx) context.Context {
	lc := fromCtx(ctx)
	if newLc.Action == "" {
		newLc.Action = lc.Action
	}
	if newLc.UserID == "" {
		newLc.UserID = lc.UserID
	}
	if newLc.RequestID == "" {
		newLc.RequestID = lc.RequestID
	}
	if newLc.RideID == "" {
		newLc.RideID = lc.RideID
	}
	if newLc.ApplicationID == "" {
		newLc.ApplicationID = lc.ApplicationID
	}
	return context.WithValue(ctx, LogCtxKey, newLc)
}

// WithUserID adds or updates the UserID in the LogCtx within the context
func WithUserID(ctx context.Context, userID string) context.Context {
	lc := fromCtx(ctx)
	lc.UserID = userID
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithRequestID adds or updates the RequestID in the LogCtx within the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	lc := fromCtx(ctx)
	lc.RequestID = requestID
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithRideID adds or updates the RideID in the LogCtx within the context
func WithRideID(ctx context.Context, rideID string) context.Context {
	lc := fromCtx(ctx)
	lc.RideID = rideID
	return context.WithValue(ctx, LogCtxKey, lc)
}

func WithApplicationID(ctx context.Context, applicationID string) context.Context {
	lc := fromCtx(ctx)
	lc.ApplicationID = applicationID
	return context.WithValue(ctx, LogCtxKey, lc)
}

// WithAction adds or updates the Action in the LogCtx within the context
func WithAction(ctx context.Context, action string) context.Context {
	lc := fromCtx(ctx)
	lc.Action = action
	return context.WithValue(ctx, LogCtxKey, lc)
}

// GetRequestID returns request id stored in context, empty if not set
func GetRequestID(ctx context.Context) string {
	return fromCtx(ctx).RequestID
}
