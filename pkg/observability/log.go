package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// LogListener writes every event to a structured logger.
type LogListener struct {
	logger *slog.Logger
	level  slog.Level
}

var _ ports.Listener = (*LogListener)(nil)

// NewLogListener logs events at level.
func NewLogListener(logger *slog.Logger, level slog.Level) *LogListener {
	return &LogListener{logger: logger, level: level}
}

// OnEvent implements ports.Listener.
func (l *LogListener) OnEvent(ctx context.Context, event domain.StateChangeEvent) {
	l.logger.LogAttrs(ctx, l.level, string(event.Type),
		slog.String("machine_id", event.MachineID),
		slog.Uint64("sequence", event.Sequence),
		slog.String("from", event.OldState),
		slog.String("to", event.NewState),
		slog.String("cause", event.Cause),
	)
}
