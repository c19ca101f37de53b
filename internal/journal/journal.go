// Package journal remembers submitted async tasks so a restarted runner can
// resume polling instead of resubmitting.
package journal

import (
	"fmt"
	"strings"
	"time"
)

// TaskRecord is one in-flight async calculation.
type TaskRecord struct {
	TaskID      string    `json:"task_id"`
	JobID       string    `json:"job_id"`
	Symbol      string    `json:"symbol"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Journal tracks in-flight task handles.
type Journal interface {
	Close() error
	Track(rec TaskRecord) error
	Pending() ([]TaskRecord, error)
	Done(taskID string) error
}

// Options controls retention characteristics for concrete journal implementations.
type Options struct {
	RecordTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRecordTTL       = 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// New creates the configured journal backend.
func New(typ, path string, opts Options) (Journal, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopJournal{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt journal requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported journal type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = defaultRecordTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopJournal struct{}

func (noopJournal) Close() error                   { return nil }
func (noopJournal) Track(TaskRecord) error         { return nil }
func (noopJournal) Pending() ([]TaskRecord, error) { return nil, nil }
func (noopJournal) Done(string) error              { return nil }
