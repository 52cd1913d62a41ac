package audit

import (
	"context"
	"time"

	"zspgw.org/internal/obs"
)

// Sink receives serialized audit records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Recorder ships lifecycle events to the configured sinks. Delivery is
// best-effort: a sink failure is logged locally and dropped so it can never
// block or fail the access operation it describes.
type Recorder struct {
	sinks []Sink
}

// NewRecorder builds a recorder over one or more sinks.
func NewRecorder(sinks ...Sink) *Recorder {
	return &Recorder{sinks: sinks}
}

// Record stamps and delivers the event. It never returns an error.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.TimeGenerated.IsZero() {
		event.TimeGenerated = time.Now().UTC()
	}
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, event); err != nil {
			obs.Log(map[string]any{
				"level":        "error",
				"msg":          "audit delivery failed",
				"event_type":   event.EventType,
				"principal_id": event.PrincipalID,
				"error":        err.Error(),
			})
		}
	}
}
