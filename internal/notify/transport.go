package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/pkg/queue"
)

// Transport moves a rendered pass from the request path to actual delivery.
// Two implementations exist: QueuedTransport hands the job to Redis for the
// worker pool, DirectTransport sends inline. The choice is made once at
// startup; when Redis is unavailable the service runs in degraded mode on
// the direct path rather than refusing registrations.
type Transport interface {
	// Dispatch hands off one pass for delivery. Returns a job handle on
	// the queued path, empty string on the direct path.
	Dispatch(ctx context.Context, d *models.RegistrationDetail, pdf []byte, force bool, notifierID *int64) (string, error)
	Mode() string
}

// QueuedTransport enqueues pass delivery jobs for the worker pool.
type QueuedTransport struct {
	queue *queue.Queue
}

// NewQueuedTransport creates the queue-backed transport.
func NewQueuedTransport(q *queue.Queue) *QueuedTransport {
	return &QueuedTransport{queue: q}
}

func (t *QueuedTransport) Mode() string { return "queued" }

// Dispatch enqueues the job. The rendered PDF travels inline in the
// payload; the worker reloads registration state fresh before sending, so
// a cancel or a concurrent send between enqueue and processing is honored.
func (t *QueuedTransport) Dispatch(ctx context.Context, d *models.RegistrationDetail, pdf []byte, force bool, notifierID *int64) (string, error) {
	payload := queue.SendPassPayload{
		RegistrationID: d.Registration.ID,
		EventID:        d.Event.ID,
		Phone:          d.Member.Phone,
		DisplayName:    d.Member.FullName,
		PassPDF:        pdf,
		NotifierID:     notifierID,
		ForceResend:    force,
	}
	if d.Registration.PassKey != nil {
		payload.PassKey = *d.Registration.PassKey
	}
	return t.queue.EnqueueSendPass(ctx, payload)
}

// DirectTransport sends the pass inline on the caller's goroutine. Used
// when Redis is down (degraded mode) or in single-process deployments.
type DirectTransport struct {
	sender *Sender
	logger *zap.Logger
}

// NewDirectTransport creates the inline transport.
func NewDirectTransport(sender *Sender, logger *zap.Logger) *DirectTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectTransport{sender: sender, logger: logger}
}

func (t *DirectTransport) Mode() string { return "direct" }

// Dispatch sends immediately. A skipped outcome (already sent, lock held)
// is success for the caller, same as on the queued path.
func (t *DirectTransport) Dispatch(ctx context.Context, d *models.RegistrationDetail, pdf []byte, force bool, notifierID *int64) (string, error) {
	outcome, err := t.sender.Send(ctx, d, pdf, force, notifierID)
	if err != nil {
		return "", err
	}
	if outcome.Skipped {
		t.logger.Debug("direct dispatch skipped",
			zap.Int64("registration_id", d.Registration.ID), zap.String("reason", outcome.Reason))
	}
	return "", nil
}
