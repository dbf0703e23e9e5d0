package checkin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sangam-association/backend/internal/models"
	"github.com/sangam-association/backend/internal/qrtoken"
)

// fakeStore applies the same conditional-update discipline as the SQL
// repository: the attendance transition only fires from the registered state,
// under a mutex so concurrent scans race realistically.
type fakeStore struct {
	mu      sync.Mutex
	details map[int64]*models.RegistrationDetail
}

func newFakeStore(details ...*models.RegistrationDetail) *fakeStore {
	s := &fakeStore{details: make(map[int64]*models.RegistrationDetail)}
	for _, d := range details {
		s.details[d.Registration.ID] = d
	}
	return s
}

func (s *fakeStore) GetDetail(_ context.Context, id int64) (*models.RegistrationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[id]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (s *fakeStore) MarkAttended(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[id]
	if !ok || d.Registration.Status != models.StatusRegistered || d.Registration.AttendedAt != nil {
		return false, nil
	}
	now := time.Now()
	d.Registration.Status = models.StatusAttended
	d.Registration.AttendedAt = &now
	return true, nil
}

func registeredDetail() *models.RegistrationDetail {
	return &models.RegistrationDetail{
		Registration: models.Registration{
			ID:           42,
			EventID:      7,
			MemberID:     1001,
			Status:       models.StatusRegistered,
			RegisteredAt: time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
		},
		Member: models.Member{ID: 1001, FullName: "Ramesh Patel", Phone: "+919800000001"},
		Event:  models.Event{ID: 7, Title: "Annual Trade Fair"},
	}
}

func newService(store Store) (*Service, *qrtoken.Codec) {
	codec := qrtoken.NewCodec("test-secret")
	return NewService(codec, store, nil), codec
}

func TestCheckInSuccess(t *testing.T) {
	detail := registeredDetail()
	store := newFakeStore(detail)
	svc, codec := newService(store)

	token, err := codec.Encode(&detail.Registration)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	result, err := svc.CheckIn(context.Background(), token)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if !result.Success {
		t.Fatalf("CheckIn refused: %s", result.Reason)
	}
	if result.Member.FullName != "Ramesh Patel" {
		t.Errorf("member = %q", result.Member.FullName)
	}
	if result.Registration.Status != models.StatusAttended {
		t.Errorf("status = %s, want attended", result.Registration.Status)
	}
	if result.Registration.AttendedAt == nil {
		t.Error("attended_at not set")
	}
}

func TestCheckInInvalidToken(t *testing.T) {
	svc, _ := newService(newFakeStore(registeredDetail()))

	for _, token := range []string{"", "garbage", "EVT:bm90IGpzb24"} {
		result, err := svc.CheckIn(context.Background(), token)
		if err != nil {
			t.Fatalf("CheckIn(%q): %v", token, err)
		}
		if result.Success || result.Reason != ReasonInvalidToken {
			t.Errorf("CheckIn(%q) = %+v, want invalid_token", token, result)
		}
	}
}

func TestCheckInNotFound(t *testing.T) {
	detail := registeredDetail()
	svc, codec := newService(newFakeStore()) // empty store

	token, _ := codec.Encode(&detail.Registration)
	result, err := svc.CheckIn(context.Background(), token)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if result.Success || result.Reason != ReasonNotFound {
		t.Errorf("result = %+v, want not_found", result)
	}
}

func TestCheckInIDMismatch(t *testing.T) {
	detail := registeredDetail()
	store := newFakeStore(detail)
	svc, codec := newService(store)

	// Token signed for the right registration id but a different event:
	// the stored row wins and the scan reads as an invalid token.
	foreign := detail.Registration
	foreign.EventID = 999
	token, _ := codec.Encode(&foreign)

	result, err := svc.CheckIn(context.Background(), token)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if result.Success || result.Reason != ReasonInvalidToken {
		t.Errorf("result = %+v, want invalid_token", result)
	}
	if got, _ := store.GetDetail(context.Background(), 42); got.Registration.AttendedAt != nil {
		t.Error("attended_at set despite refused scan")
	}
}

func TestCheckInCancelled(t *testing.T) {
	detail := registeredDetail()
	token, _ := qrtoken.NewCodec("test-secret").Encode(&detail.Registration)
	now := time.Now()
	detail.Registration.Status = models.StatusCancelled
	detail.Registration.CancelledAt = &now
	store := newFakeStore(detail)
	svc, _ := newService(store)

	result, err := svc.CheckIn(context.Background(), token)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if result.Success || result.Reason != ReasonCancelled {
		t.Errorf("result = %+v, want cancelled", result)
	}
	if got, _ := store.GetDetail(context.Background(), 42); got.Registration.AttendedAt != nil {
		t.Error("attended_at set for cancelled registration")
	}
}

func TestCheckInTwiceSequential(t *testing.T) {
	detail := registeredDetail()
	store := newFakeStore(detail)
	svc, codec := newService(store)
	token, _ := codec.Encode(&detail.Registration)

	first, err := svc.CheckIn(context.Background(), token)
	if err != nil || !first.Success {
		t.Fatalf("first scan: %+v, %v", first, err)
	}
	second, err := svc.CheckIn(context.Background(), token)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.Success || second.Reason != ReasonAlreadyAttended {
		t.Errorf("second scan = %+v, want already_attended", second)
	}
}

func TestCheckInConcurrentExactlyOnce(t *testing.T) {
	detail := registeredDetail()
	store := newFakeStore(detail)
	svc, codec := newService(store)
	token, _ := codec.Encode(&detail.Registration)

	const scans = 32
	var wg sync.WaitGroup
	results := make([]*Result, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.CheckIn(context.Background(), token)
			if err != nil {
				t.Errorf("scan %d: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	var wins, alreadyAttended int
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Success {
			wins++
		} else if r.Reason == ReasonAlreadyAttended {
			alreadyAttended++
		} else {
			t.Errorf("unexpected reason %s", r.Reason)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if alreadyAttended != scans-1 {
		t.Errorf("already_attended = %d, want %d", alreadyAttended, scans-1)
	}
}
