package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Temutjin2k/ride-match/pkg/logger"
	wrap "github.com/Temutjin2k/ride-match/pkg/logger/wrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "ride-service", logger.LevelInfo)

	ctx := wrap.WithAction(context.Background(), "accept_ride")
	ctx = wrap.WithRideID(ctx, "r-1")
	ctx = wrap.WithApplicationID(ctx, "a-1")
	l.Info(ctx, "ride booked")

	rec := decode(t, &buf)
	assert.Equal(t, "ride booked", rec["message"])
	assert.Equal(t, "ride-service", rec["service"])
	assert.Equal(t, "accept_ride", rec["action"])
	assert.Equal(t, "r-1", rec["ride_id"])
	assert.Equal(t, "a-1", rec["application_id"])
	assert.Contains(t, rec, "timestamp")
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "svc", logger.LevelWarn)

	l.Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	l.Warn(context.Background(), "shown")
	assert.NotZero(t, buf.Len())
}

func TestLogger_ErrorCarriesWrappedContext(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "svc", logger.LevelDebug)

	inner := wrap.WithAction(context.Background(), "transition")
	base := errors.New("boom")
	err := wrap.Error(inner, fmt.Errorf("failed to update: %w", base))

	l.Error(wrap.ErrorCtx(context.Background(), err), "request failed", err)

	rec := decode(t, &buf)
	assert.Equal(t, "transition", rec["action"])
	errGroup, ok := rec["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "failed to update: boom", errGroup["msg"])
}

func TestLogger_GroupKeysNotRenamed(t *testing.T) {
	var buf bytes.Buffer
	l := logger.New(&buf, "svc", logger.LevelDebug)

	l.Error(context.Background(), "failed", errors.New("boom"))

	rec := decode(t, &buf)
	assert.Equal(t, "failed", rec["message"])
	assert.NotContains(t, rec, "msg")
	errGroup, ok := rec["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", errGroup["msg"])
	assert.NotContains(t, errGroup, "message")
}

func TestErrorCtx_KeepsRequestFields(t *testing.T) {
	reqCtx := wrap.WithRequestID(context.Background(), "req-1")
	reqCtx = wrap.WithUserID(reqCtx, "u-1")

	inner := wrap.WithRideID(wrap.WithAction(context.Background(), "cancel_ride"), "r-9")
	err := wrap.Error(inner, errors.New("stale"))

	lc, ok := wrap.ErrorCtx(reqCtx, err).Value(wrap.LogCtxKey).(wrap.LogCtx)
	require.True(t, ok)
	assert.Equal(t, "cancel_ride", lc.Action)
	assert.Equal(t, "r-9", lc.RideID)
	assert.Equal(t, "req-1", lc.RequestID)
	assert.Equal(t, "u-1", lc.UserID)

	assert.Equal(t, reqCtx, wrap.ErrorCtx(reqCtx, errors.New("plain")))
}

func TestWrapError_RewrapKeepsChain(t *testing.T) {
	sentinel := errors.New("sentinel")
	ctx1 := wrap.WithAction(context.Background(), "first")
	ctx2 := wrap.WithAction(context.Background(), "second")

	err := wrap.Error(ctx1, sentinel)
	err = wrap.Error(ctx2, fmt.Errorf("outer: %w", err))

	assert.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, errors.New("other"))

	lc, ok := wrap.ErrorCtx(context.Background(), err).Value(wrap.LogCtxKey).(wrap.LogCtx)
	require.True(t, ok)
	assert.Equal(t, "second", lc.Action)
}

func TestValidateLogLevel(t *testing.T) {
	assert.True(t, logger.ValidateLogLevel("INFO"))
	assert.False(t, logger.ValidateLogLevel("TRACE"))
}
