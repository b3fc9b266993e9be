package wrap

import (
	"context"
)

// Error wraps err with the LogCtx currently stored in ctx.
// Wrapping an already wrapped error adds a new outer layer, so ErrorCtx
// always sees the most recent context while the chain stays acyclic.
func Error(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	c := LogCtx{}
	if x, ok := ctx.Value(LogCtxKey).(LogCtx); ok {
		c = x
	}
	return &errorWithLogCtx{
		err:    err,
		logCtx: c,
	}
}
