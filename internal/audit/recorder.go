package audit

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/ledger-core/internal/infrastructure/logging"
)

// DefaultQueueSize is the buffer size for the async audit channel.
// Entries beyond this are dropped to avoid back-pressure on requests.
const DefaultQueueSize = 256

// Publisher mirrors audit entries to an event bus.
type Publisher interface {
	PublishAuthEvent(action string, payload []byte) error
}

// Recorder queues audit entries and writes them serially.
type Recorder struct {
	repo      Repository
	publisher Publisher
	logger    *logging.Logger
	ch        chan *AuditLog
}

// NewRecorder creates a recorder writing to repo. publisher may be nil.
func NewRecorder(repo Repository, publisher Publisher, logger *logging.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "audit"),
		ch:        make(chan *AuditLog, queueSize),
	}
}

// Record enqueues entry without blocking. If the queue is full the entry is
// dropped and a warning is logged.
func (r *Recorder) Record(entry *AuditLog) {
	if r == nil {
		return
	}
	select {
	case r.ch <- entry:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", entry.Action,
			"entity_type", entry.EntityType,
		)
	}
}

// Run writes queued entries until ctx is cancelled, then drains whatever
// is still queued and returns.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case entry := <-r.ch:
			r.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-r.ch:
					r.write(entry)
				default:
					return
				}
			}
		}
	}
}

// Writes outlive the request that produced them, so they use a fresh context.
func (r *Recorder) write(entry *AuditLog) {
	if err := r.repo.Create(context.Background(), entry); err != nil {
		r.logger.Error("audit log write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"error", err,
		)
	}

	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("marshalling audit event", "action", entry.Action, "error", err)
		return
	}
	if err := r.publisher.PublishAuthEvent(entry.Action, payload); err != nil {
		r.logger.Warn("audit event publish failed", "action", entry.Action, "error", err)
	}
}
