package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/metrics"
)

// EffectStatus describes the outcome of a best-effort write.
type EffectStatus int

const (
	// EffectRecorded means the write was persisted.
	EffectRecorded EffectStatus = iota + 1
	// EffectSkipped means there was nothing to write, e.g. no authenticated caller.
	EffectSkipped
	// EffectFailed means the write was attempted and failed. The failure has been logged.
	EffectFailed
)

// Effect is returned by audit and notification writes. These writes never
// fail the caller; inspecting the Effect is optional.
type Effect struct {
	Status EffectStatus
	Err    error
}

// Recorded reports whether the write was persisted.
func (e Effect) Recorded() bool {
	return e.Status == EffectRecorded
}

func recorded() Effect { return Effect{Status: EffectRecorded} }

func skipped() Effect { return Effect{Status: EffectSkipped} }

func failed(ctx context.Context, kind string, err error, fields ...zap.Field) Effect {
	metrics.SideEffectFailures.WithLabelValues(kind).Inc()
	fields = append(fields, zap.String("kind", kind), zap.Error(err))
	logger.FromContext(ctx, "services").Warn("best-effort write failed", fields...)
	return Effect{Status: EffectFailed, Err: err}
}
