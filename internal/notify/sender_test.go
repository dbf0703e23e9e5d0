package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sangam-association/backend/internal/models"
)

// fakeLocker mirrors the database lock semantics in memory: a serialized
// state check plus transition on acquire, unconditional release, and a
// conditional finalize.
type fakeLocker struct {
	mu     sync.Mutex
	state  models.PassSendState
	sentAt *time.Time

	acquires  int
	releases  int
	finalizes int
}

func newFakeLocker(state models.PassSendState) *fakeLocker {
	l := &fakeLocker{state: state}
	if state == models.SendSent {
		t := time.Now().Add(-time.Hour)
		l.sentAt = &t
	}
	return l
}

func (l *fakeLocker) Acquire(_ context.Context, _ int64, force bool) (AcquireResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	switch {
	case l.state == models.SendSending:
		return AcquireResult{Reason: ReasonLockHeld}, nil
	case l.state == models.SendSent && !force:
		return AcquireResult{Reason: ReasonAlreadySent, SentAt: l.sentAt}, nil
	}
	l.state = models.SendSending
	return AcquireResult{Acquired: true}, nil
}

func (l *fakeLocker) Release(context.Context, int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	l.state = models.SendUnsent
	l.sentAt = nil
	return nil
}

func (l *fakeLocker) Finalize(context.Context, int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finalizes++
	if l.state != models.SendSending {
		return false, nil
	}
	l.state = models.SendSent
	t := time.Now()
	l.sentAt = &t
	return true, nil
}

func (l *fakeLocker) currentState() models.PassSendState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

type waCall struct {
	phone    string
	filename string
	doc      []byte
}

type fakeWA struct {
	mu         sync.Mutex
	calls      []waCall
	failWith   error
	onSend     func() // runs inside SendDocument, before the outcome
	configured bool
}

func (w *fakeWA) Configured() bool { return w.configured }

func (w *fakeWA) SendDocument(_ context.Context, phone, filename, _ string, doc []byte) error {
	if w.onSend != nil {
		w.onSend()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWith != nil {
		return w.failWith
	}
	w.calls = append(w.calls, waCall{phone: phone, filename: filename, doc: doc})
	return nil
}

func (w *fakeWA) sent() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

type fakeFeed struct {
	mu      sync.Mutex
	entries []models.Notification
}

func (f *fakeFeed) Record(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *n)
	return nil
}

func (f *fakeFeed) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Kind
	}
	return out
}

func testDetail() *models.RegistrationDetail {
	var d models.RegistrationDetail
	d.Registration = models.Registration{
		ID:       91,
		EventID:  4,
		MemberID: 17,
		Status:   models.StatusRegistered,
	}
	d.Member = models.Member{ID: 17, FullName: "Meena Shah", Phone: "+919800000042"}
	d.Event = models.Event{ID: 4, Title: "Diwali Mela"}
	return &d
}

func TestSendDelivers(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true}
	feed := &fakeFeed{}
	notifier := int64(3)
	s := NewSender(lock, wa, feed, nil)

	outcome, err := s.Send(context.Background(), testDetail(), []byte("%PDF-pass"), false, &notifier)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !outcome.Delivered || outcome.Skipped {
		t.Fatalf("outcome = %+v, want delivered", outcome)
	}
	if wa.sent() != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", wa.sent())
	}
	if got := lock.currentState(); got != models.SendSent {
		t.Fatalf("state = %s, want sent", got)
	}
	if kinds := feed.kinds(); len(kinds) != 1 || kinds[0] != models.NotificationKindPassSent {
		t.Fatalf("feed kinds = %v, want one pass_sent", kinds)
	}
}

func TestSendSkipsAlreadySent(t *testing.T) {
	lock := newFakeLocker(models.SendSent)
	wa := &fakeWA{configured: true}
	s := NewSender(lock, wa, nil, nil)

	outcome, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), false, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !outcome.Skipped || outcome.Reason != ReasonAlreadySent {
		t.Fatalf("outcome = %+v, want skip with already_sent", outcome)
	}
	if wa.sent() != 0 {
		t.Fatal("skipped send still hit the API")
	}
	if got := lock.currentState(); got != models.SendSent {
		t.Fatalf("state = %s, want sent untouched", got)
	}
}

func TestSendSkipsWhileLockHeld(t *testing.T) {
	lock := newFakeLocker(models.SendSending)
	wa := &fakeWA{configured: true}
	s := NewSender(lock, wa, nil, nil)

	outcome, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), false, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !outcome.Skipped || outcome.Reason != ReasonLockHeld {
		t.Fatalf("outcome = %+v, want skip with lock_held", outcome)
	}
	if wa.sent() != 0 {
		t.Fatal("held lock did not prevent the send")
	}
}

// force bypasses the already-sent check but never a held lock.
func TestSendForceResend(t *testing.T) {
	lock := newFakeLocker(models.SendSent)
	wa := &fakeWA{configured: true}
	s := NewSender(lock, wa, nil, nil)

	outcome, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), true, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !outcome.Delivered {
		t.Fatalf("outcome = %+v, want delivered", outcome)
	}
	if wa.sent() != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", wa.sent())
	}

	lock.mu.Lock()
	lock.state = models.SendSending
	lock.mu.Unlock()
	outcome, err = s.Send(context.Background(), testDetail(), []byte("%PDF"), true, nil)
	if err != nil {
		t.Fatalf("Send with held lock: %v", err)
	}
	if !outcome.Skipped || outcome.Reason != ReasonLockHeld {
		t.Fatalf("force outcome over held lock = %+v, want skip", outcome)
	}
}

func TestSendReleasesOnFailure(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true, failWith: errors.New("api 500")}
	feed := &fakeFeed{}
	notifier := int64(3)
	s := NewSender(lock, wa, feed, nil)

	_, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), false, &notifier)
	if err == nil {
		t.Fatal("expected send error")
	}
	if got := lock.currentState(); got != models.SendUnsent {
		t.Fatalf("state = %s, want unsent after release", got)
	}
	if lock.releases != 1 {
		t.Fatalf("releases = %d, want 1", lock.releases)
	}
	if kinds := feed.kinds(); len(kinds) != 1 || kinds[0] != models.NotificationKindPassFailed {
		t.Fatalf("feed kinds = %v, want one pass_failed", kinds)
	}
}

// A release that lands between the API call and finalize makes finalize a
// no-op: delivery state stays whatever the releasing actor set.
func TestSendFinalizeNoopAfterRelease(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true}
	wa.onSend = func() { _ = lock.Release(context.Background(), 91) }
	s := NewSender(lock, wa, nil, nil)

	outcome, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), false, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !outcome.Delivered {
		t.Fatalf("outcome = %+v, want delivered", outcome)
	}
	if got := lock.currentState(); got != models.SendUnsent {
		t.Fatalf("state = %s, want unsent (finalize must not override the release)", got)
	}
}

func TestSendRequiresConfiguredMessaging(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	s := NewSender(lock, &fakeWA{configured: false}, nil, nil)

	_, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), false, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if lock.acquires != 0 {
		t.Fatal("unconfigured sender must not touch the lock")
	}
}

// Concurrent sends for one registration: exactly one delivery reaches the
// API, every other attempt skips.
func TestSendConcurrentSingleFlight(t *testing.T) {
	lock := newFakeLocker(models.SendUnsent)
	wa := &fakeWA{configured: true}
	s := NewSender(lock, wa, nil, nil)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered, skipped := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := s.Send(context.Background(), testDetail(), []byte("%PDF"), false, nil)
			if err != nil {
				t.Errorf("Send: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if outcome.Delivered {
				delivered++
			}
			if outcome.Skipped {
				skipped++
			}
		}()
	}
	wg.Wait()

	if delivered != 1 {
		t.Fatalf("delivered = %d, want exactly 1", delivered)
	}
	if skipped != n-1 {
		t.Fatalf("skipped = %d, want %d", skipped, n-1)
	}
	if wa.sent() != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", wa.sent())
	}
}
