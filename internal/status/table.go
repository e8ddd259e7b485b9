package status

import "context"

// DocIndexEntry is one row of the per-user document index (spec.md §6
// "Document index").
type DocIndexEntry struct {
	JobID           string
	Title           string
	Audience        string
	Stage           string
	Message         string
	Artifact        string
	Updated         float64
	CyclesRequested int
	CyclesCompleted int
	HasError        bool
	LastError       string
}

// Table is the durable status table (spec.md §4.3). Record upserts the
// `latest` row and appends one history row; if Event.UserID is set it also
// mirrors a row into the per-user document index.
type Table interface {
	Record(ctx context.Context, ev Event) error
	Latest(ctx context.Context, jobID string) (*Event, bool, error)
	Timeline(ctx context.Context, jobID string) ([]Event, error) // ascending by ts
	ListForUser(ctx context.Context, userID string) ([]DocIndexEntry, error) // descending by updated
}

// HistoryRowKey builds the `<ts_microseconds>_<stage>` row key spec.md §4.3
// requires for history rows.
func HistoryRowKey(tsSeconds float64, stage string) string {
	us := int64(tsSeconds * 1e6)
	return itoa64(us) + "_" + stage
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
