package wrap

import (
	"context"
	"errors"
)

// errorWithLogCtx carries the LogCtx of the place where the error was wrapped.
type errorWithLogCtx struct {
	err    error
	logCtx LogCtx
}

func (e *errorWithLogCtx) Error() string {
	return e.err.Error()
}

func (e *errorWithLogCtx) Unwrap() error {
	return e.err
}

// ErrorCtx merges the LogCtx of the outermost wrapped layer of err over the one in ctx.
// Fields the error does not know, usually request_id and user_id, come from ctx.
func ErrorCtx(ctx context.Context, err error) context.Context {
	var e *errorWithLogCtx
	if !errors.As(err, &e) || e == nil {
		return ctx
	}
	return WithLogCtx(ctx, e.logCtx)
}

