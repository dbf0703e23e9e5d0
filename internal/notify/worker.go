package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/pkg/queue"
)

// DetailStore reloads registration state. Workers always reload before
// sending so a cancellation or a completed send between enqueue and
// processing is honored.
type DetailStore interface {
	GetDetail(ctx context.Context, id int64) (*models.RegistrationDetail, error)
}

// PassStore fetches an archived pass PDF by object key.
type PassStore interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
}

// PassProcessor is the worker pool for queued pass delivery. All workers
// share one rate limiter, so the WhatsApp send rate is capped per process
// regardless of pool size.
type PassProcessor struct {
	queue        *queue.Queue
	sender       *Sender
	details      DetailStore
	passes       PassStore // nil when pass archiving is not configured
	passesBucket string
	limiter      *rate.Limiter
	workers      int
	logger       *zap.Logger
}

// NewPassProcessor creates the pass worker pool. workers and ratePerSec
// fall back to safe defaults when non-positive.
func NewPassProcessor(q *queue.Queue, sender *Sender, details DetailStore, passes PassStore, passesBucket string, workers int, ratePerSec float64, logger *zap.Logger) *PassProcessor {
	if workers <= 0 {
		workers = 5
	}
	if ratePerSec <= 0 {
		ratePerSec = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassProcessor{
		queue:        q,
		sender:       sender,
		details:      details,
		passes:       passes,
		passesBucket: passesBucket,
		limiter:      rate.NewLimiter(rate.Limit(ratePerSec), 1),
		workers:      workers,
		logger:       logger,
	}
}

// Process executes one pass delivery job.
func (p *PassProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSendPass {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SendPassPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	// State may have moved since enqueue: reload instead of trusting the
	// payload snapshot.
	detail, err := p.details.GetDetail(ctx, payload.RegistrationID)
	if err != nil {
		return fmt.Errorf("reload registration: %w", err)
	}
	if detail == nil {
		p.logger.Warn("registration gone, dropping job",
			zap.String("job_id", job.ID), zap.Int64("registration_id", payload.RegistrationID))
		return nil
	}
	if detail.Registration.Status == models.StatusCancelled {
		p.logger.Info("registration cancelled, dropping job",
			zap.String("job_id", job.ID), zap.Int64("registration_id", payload.RegistrationID))
		return nil
	}

	pdf := payload.PassPDF
	if len(pdf) == 0 && payload.PassKey != "" && p.passes != nil {
		pdf, err = p.passes.Download(ctx, p.passesBucket, payload.PassKey)
		if err != nil {
			return fmt.Errorf("fetch archived pass %s: %w", payload.PassKey, err)
		}
	}
	if len(pdf) == 0 {
		return fmt.Errorf("job %s carries no pass document", job.ID)
	}

	outcome, err := p.sender.Send(ctx, detail, pdf, payload.ForceResend, payload.NotifierID)
	if err != nil {
		return err
	}
	if outcome.Skipped {
		p.logger.Debug("pass job skipped",
			zap.String("job_id", job.ID), zap.String("reason", outcome.Reason))
	}
	return nil
}

// Run starts the worker pool and blocks until ctx is done and every
// worker has returned.
func (p *PassProcessor) Run(ctx context.Context) {
	p.logger.Info("pass workers starting", zap.Int("count", p.workers))
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runLoop(ctx, id)
		}(i)
	}
	wg.Wait()
	p.logger.Info("pass workers stopped")
}

func (p *PassProcessor) runLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Int("worker", id), zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job",
			zap.Int("worker", id), zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed",
				zap.Int("worker", id), zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr), zap.String("job_id", job.ID))
			}
		}
	}
}
