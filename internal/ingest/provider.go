package ingest

import (
	"encoding/json"

	"github.com/claude/repcoach/internal/storage"
)

// maxLoggedRejections bounds the rejected lines kept in an import log.
const maxLoggedRejections = 20

// Result holds the outcome of an ingest operation.
type Result struct {
	RecordsReceived  int      `json:"records_received"`
	SessionsInserted int      `json:"sessions_inserted"`
	SessionsSkipped  int      `json:"sessions_skipped"`
	RecordsRejected  int      `json:"records_rejected"`
	RejectedLines    []string `json:"rejected_lines,omitempty"`

	Message string `json:"message,omitempty"`
}

// LogEntry builds the import_logs row for this result.
func (r *Result) LogEntry(uid int, source string, importErr error, durationMs int) storage.ImportLog {
	status := storage.ImportSuccess
	var errMsg *string
	if importErr != nil {
		status = storage.ImportError
		msg := importErr.Error()
		errMsg = &msg
	}

	entry := storage.ImportLog{
		UserID:           uid,
		Source:           source,
		Status:           status,
		RecordsReceived:  r.RecordsReceived,
		SessionsInserted: r.SessionsInserted,
		RecordsSkipped:   r.SessionsSkipped + r.RecordsRejected,
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
	}
	if len(r.RejectedLines) > 0 {
		rejected := r.RejectedLines
		if len(rejected) > maxLoggedRejections {
			rejected = rejected[:maxLoggedRejections]
		}
		if raw, err := json.Marshal(map[string]any{"rejected": rejected}); err == nil {
			meta := json.RawMessage(raw)
			entry.Metadata = &meta
		}
	}
	return entry
}
