package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/contest-reminder-bot/internal/model"
	"github.com/example/contest-reminder-bot/internal/repository"
	"github.com/example/contest-reminder-bot/pkg/codeforces"
)

type memStore struct {
	prefs    map[int64][]string
	subs     []int64
	reminded map[int64]bool
	creds    map[int64]*model.Credential
	pending  map[string]int64
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		prefs:    map[int64][]string{},
		reminded: map[int64]bool{},
		creds:    map[int64]*model.Credential{},
		pending:  map[string]int64{},
	}
}

func (m *memStore) Preferences(ctx context.Context, userID int64) ([]string, error) {
	return m.prefs[userID], nil
}

func (m *memStore) SetPreferences(ctx context.Context, userID int64, divisions []string) error {
	m.prefs[userID] = divisions
	return nil
}

func (m *memStore) AddSubscriber(ctx context.Context, userID int64) error {
	for _, id := range m.subs {
		if id == userID {
			return nil
		}
	}
	m.subs = append(m.subs, userID)
	return nil
}

func (m *memStore) Subscribers(ctx context.Context) ([]int64, error) {
	return m.subs, nil
}

func (m *memStore) IsReminded(ctx context.Context, contestID int64) (bool, error) {
	return m.reminded[contestID], nil
}

func (m *memStore) MarkReminded(ctx context.Context, contestID int64) error {
	m.reminded[contestID] = true
	return nil
}

func (m *memStore) SaveCredential(ctx context.Context, userID int64, cred *model.Credential) error {
	m.creds[userID] = cred
	return nil
}

func (m *memStore) Credential(ctx context.Context, userID int64) (*model.Credential, error) {
	if c, ok := m.creds[userID]; ok {
		return c, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) PutPendingAuth(ctx context.Context, token string, userID int64) error {
	m.pending[token] = userID
	return nil
}

func (m *memStore) ClaimPendingAuth(ctx context.Context, token string) (int64, error) {
	userID, ok := m.pending[token]
	if !ok {
		return 0, repository.ErrNotFound
	}
	delete(m.pending, token)
	return userID, nil
}

type stubSource struct {
	contests []codeforces.Contest
	err      error
}

func (s *stubSource) UpcomingContests(ctx context.Context) ([]codeforces.Contest, error) {
	return s.contests, s.err
}

type recordingSender struct {
	sent []sentReminder
	fail bool
}

type sentReminder struct {
	userID    int64
	contestID int64
}

func (r *recordingSender) SendContestReminder(ctx context.Context, userID int64, contest codeforces.Contest) error {
	if r.fail {
		return errors.New("telegram down")
	}
	r.sent = append(r.sent, sentReminder{userID: userID, contestID: contest.ID})
	return nil
}

func contestStartingIn(id int64, name string, in time.Duration, base time.Time) codeforces.Contest {
	return codeforces.Contest{
		ID:               id,
		Name:             name,
		Phase:            "BEFORE",
		StartTimeSeconds: base.Add(in).Unix(),
		DurationSeconds:  7200,
	}
}

func TestMatchesPreferences(t *testing.T) {
	if !MatchesPreferences("Codeforces Round 999 (Div. 2)", nil) {
		t.Fatal("empty preferences must match everything")
	}
	if !MatchesPreferences("Codeforces Round 999 (Div. 2)", []string{"Div. 2"}) {
		t.Fatal("expected substring match")
	}
	if MatchesPreferences("Educational Round 50", []string{"Div. 2"}) {
		t.Fatal("unexpected match for non-matching name")
	}
}

func TestFilterContests_Scenario(t *testing.T) {
	base := time.Now()
	contests := []codeforces.Contest{
		contestStartingIn(1, "Codeforces Round 999 (Div. 2)", time.Hour, base),
		contestStartingIn(2, "Educational Round 50", time.Hour, base),
	}
	got := FilterContests(contests, []string{"Div. 2"})
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected only the Div. 2 round, got %v", got)
	}
	// a filtered view never contains a contest matching none of the divisions
	for _, c := range got {
		if !MatchesPreferences(c.Name, []string{"Div. 2"}) {
			t.Fatalf("leaked non-matching contest %q", c.Name)
		}
	}
}

func TestReminderService_WindowAndFanOut(t *testing.T) {
	base := time.Now()
	store := newMemStore()
	ctx := context.Background()
	store.AddSubscriber(ctx, 1)
	store.AddSubscriber(ctx, 2)
	store.AddSubscriber(ctx, 3)
	store.SetPreferences(ctx, 2, []string{"Div. 2"})
	store.SetPreferences(ctx, 3, []string{"Div. 1"})

	source := &stubSource{contests: []codeforces.Contest{
		contestStartingIn(10, "Codeforces Round 999 (Div. 2)", 20*time.Minute, base),
		contestStartingIn(11, "Codeforces Round 1000 (Div. 3)", 2*time.Hour, base),
		contestStartingIn(12, "Already started", -time.Minute, base),
	}}
	sender := &recordingSender{}
	svc := NewReminderService(store, source, sender)
	svc.now = func() time.Time { return base }

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	// contest 10 only: user 1 (no prefs) and user 2 (Div. 2), not user 3
	want := []sentReminder{{1, 10}, {2, 10}}
	if len(sender.sent) != len(want) {
		t.Fatalf("expected %v, got %v", want, sender.sent)
	}
	for i := range want {
		if sender.sent[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, sender.sent)
		}
	}
	if ok, _ := store.IsReminded(ctx, 11); ok {
		t.Fatal("contest outside window must not be marked")
	}
}

func TestReminderService_AtMostOnce(t *testing.T) {
	base := time.Now()
	store := newMemStore()
	ctx := context.Background()
	store.AddSubscriber(ctx, 1)

	source := &stubSource{contests: []codeforces.Contest{
		contestStartingIn(20, "Codeforces Round 1001 (Div. 2)", 25*time.Minute, base),
	}}
	sender := &recordingSender{}
	svc := NewReminderService(store, source, sender)
	svc.now = func() time.Time { return base }

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one reminder, got %d", len(sender.sent))
	}
}

func TestReminderService_MarksBeforeSending(t *testing.T) {
	base := time.Now()
	store := newMemStore()
	ctx := context.Background()
	store.AddSubscriber(ctx, 1)

	source := &stubSource{contests: []codeforces.Contest{
		contestStartingIn(30, "Codeforces Round 1002 (Div. 2)", 10*time.Minute, base),
	}}
	sender := &recordingSender{fail: true}
	svc := NewReminderService(store, source, sender)
	svc.now = func() time.Time { return base }

	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	// delivery failed for every user, but the contest stays marked so it is
	// never dispatched a second time
	if ok, _ := store.IsReminded(ctx, 30); !ok {
		t.Fatal("contest must be marked even when sends fail")
	}
	sender.fail = false
	if err := svc.Tick(ctx); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("marked contest must not be re-dispatched")
	}
}

func TestReminderService_FetchFailurePropagates(t *testing.T) {
	store := newMemStore()
	source := &stubSource{err: errors.New("codeforces: unexpected status 503")}
	sender := &recordingSender{}
	svc := NewReminderService(store, source, sender)

	if err := svc.Tick(context.Background()); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	if len(sender.sent) != 0 {
		t.Fatal("nothing must be sent when the fetch fails")
	}
}
