package order

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MirrorReporter receives the outcome of every status mirror attempt.
// Implementations must not block the caller for long and never fail it.
type MirrorReporter interface {
	ReportMirror(ctx context.Context, result StatusResult)
}

// LogReporter writes mirror outcomes to the global logger.
type LogReporter struct{}

func (LogReporter) ReportMirror(_ context.Context, result StatusResult) {
	var ev *zerolog.Event
	switch result.Secondary.Outcome {
	case MirrorFailed:
		ev = log.Error().Err(result.Secondary.Err)
	case MirrorNotFound:
		ev = log.Warn()
	default:
		ev = log.Debug()
	}

	ev.Str("order_id", result.OrderID).
		Stringer("status", result.Status).
		Str("outcome", string(result.Secondary.Outcome)).
		Msg("mirror: status mirror finished")
}

// MultiReporter fans a result out to several reporters in order.
type MultiReporter []MirrorReporter

func (m MultiReporter) ReportMirror(ctx context.Context, result StatusResult) {
	for _, r := range m {
		if r != nil {
			r.ReportMirror(ctx, result)
		}
	}
}
