package audit

import (
	"context"
	"encoding/json"

	"zspgw.org/internal/obs"
)

// LogSink writes audit records as JSON lines through the shared logger.
// It is the default sink and always available.
type LogSink struct{}

// NewLogSink returns a sink backed by the process logger.
func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Append(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
