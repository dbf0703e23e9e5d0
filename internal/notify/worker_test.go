package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/pkg/queue"
)

type fakeDetails struct {
	detail *models.RegistrationDetail
}

func (f *fakeDetails) GetDetail(context.Context, int64) (*models.RegistrationDetail, error) {
	return f.detail, nil
}

type fakePasses struct {
	objects map[string][]byte
}

func (f *fakePasses) Download(_ context.Context, _, key string) ([]byte, error) {
	doc, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return doc, nil
}

func passJob(t *testing.T, payload queue.SendPassPayload) *queue.Job {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return &queue.Job{ID: "job-1", Type: queue.JobTypeSendPass, Payload: raw, CreatedAt: time.Now()}
}

func newTestProcessor(lock Locker, wa DocumentSender, details DetailStore, passes PassStore) *PassProcessor {
	sender := NewSender(lock, wa, nil, nil)
	return NewPassProcessor(nil, sender, details, passes, "passes-bucket", 1, 1000, nil)
}

func TestProcessSendsInlinePass(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true}
	p := newTestProcessor(lock, wa, &fakeDetails{detail: testDetail()}, nil)

	job := passJob(t, queue.SendPassPayload{
		RegistrationID: 91,
		Phone:          "+919800000042",
		PassPDF:        []byte("%PDF-inline"),
	})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if wa.sent() != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", wa.sent())
	}
	if got := lock.currentState(); got != models.SendSent {
		t.Fatalf("state = %s, want sent", got)
	}
}

func TestProcessFetchesArchivedPass(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true}
	passes := &fakePasses{objects: map[string][]byte{"passes/4/91.pdf": []byte("%PDF-archived")}}
	p := newTestProcessor(lock, wa, &fakeDetails{detail: testDetail()}, passes)

	job := passJob(t, queue.SendPassPayload{RegistrationID: 91, PassKey: "passes/4/91.pdf"})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if wa.sent() != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", wa.sent())
	}
	if string(wa.calls[0].doc) != "%PDF-archived" {
		t.Fatalf("sent document %q, want the archived object", wa.calls[0].doc)
	}
}

// A registration cancelled after enqueue is dropped without an API call
// and without consuming a retry.
func TestProcessDropsCancelledRegistration(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true}
	detail := testDetail()
	detail.Registration.Status = models.StatusCancelled
	p := newTestProcessor(lock, wa, &fakeDetails{detail: detail}, nil)

	job := passJob(t, queue.SendPassPayload{RegistrationID: 91, PassPDF: []byte("%PDF")})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if wa.sent() != 0 {
		t.Fatal("cancelled registration reached the API")
	}
	if lock.acquires != 0 {
		t.Fatal("cancelled registration touched the lock")
	}
}

func TestProcessDropsMissingRegistration(t *testing.T) {
	p := newTestProcessor(newFakeLocker(models.SendUnsent), &fakeWA{configured: true}, &fakeDetails{}, nil)
	job := passJob(t, queue.SendPassPayload{RegistrationID: 404, PassPDF: []byte("%PDF")})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestProcessRejectsJobWithoutDocument(t *testing.T) {
	p := newTestProcessor(newFakeLocker(models.SendUnsent), &fakeWA{configured: true}, &fakeDetails{detail: testDetail()}, nil)
	job := passJob(t, queue.SendPassPayload{RegistrationID: 91})
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected error for job with no document")
	}
}

func TestProcessRejectsUnknownJobType(t *testing.T) {
	p := newTestProcessor(newFakeLocker(models.SendUnsent), &fakeWA{configured: true}, &fakeDetails{}, nil)
	job := &queue.Job{ID: "job-x", Type: "reticulate_splines"}
	if err := p.Process(context.Background(), job); err == nil {
		t.Fatal("expected error for unknown job type")
	}
}

// The queued payload carries a force flag; a worker honors it the same
// way a direct send would.
func TestProcessForceResend(t *testing.T) {
	lock := newFakeLocker(models.SendSent)
	wa := &fakeWA{configured: true}
	p := newTestProcessor(lock, wa, &fakeDetails{detail: testDetail()}, nil)

	job := passJob(t, queue.SendPassPayload{RegistrationID: 91, PassPDF: []byte("%PDF"), ForceResend: true})
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if wa.sent() != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", wa.sent())
	}
}
