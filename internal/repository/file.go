package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/example/contest-reminder-bot/internal/model"
)

const (
	prefsFile       = "user_prefs.json"
	subscribersFile = "subscribed_users.json"
	remindedFile    = "reminded_contests.json"
	tokensFile      = "user_tokens.json"
	pendingFile     = "pending_auth.json"
)

type pendingEntry struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileStore implements Store on JSON files in a directory. It is the default
// backend when neither REDIS_URL nor DATABASE_URL is configured, and what the
// tests run against. Everything is held in memory and the file owning a
// record is rewritten on each mutation.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time

	prefs       map[int64][]string
	subscribers map[int64]bool
	reminded    map[int64]time.Time
	creds       map[int64]*model.Credential
	pending     map[string]pendingEntry
}

// NewFileStore loads existing JSON files from dir, treating missing ones as
// empty collections.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{
		dir:         dir,
		now:         time.Now,
		prefs:       map[int64][]string{},
		subscribers: map[int64]bool{},
		reminded:    map[int64]time.Time{},
		creds:       map[int64]*model.Credential{},
		pending:     map[string]pendingEntry{},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	if err := s.loadFile(prefsFile, &s.prefs); err != nil {
		return err
	}
	var subs []int64
	if err := s.loadFile(subscribersFile, &subs); err != nil {
		return err
	}
	for _, id := range subs {
		s.subscribers[id] = true
	}
	if err := s.loadFile(remindedFile, &s.reminded); err != nil {
		return err
	}
	if err := s.loadFile(tokensFile, &s.creds); err != nil {
		return err
	}
	return s.loadFile(pendingFile, &s.pending)
}

func (s *FileStore) loadFile(name string, v any) error {
	file, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(v)
}

func (s *FileStore) saveFile(name string, v any) error {
	file, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *FileStore) Preferences(ctx context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	divisions, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(divisions))
	copy(out, divisions)
	return out, nil
}

func (s *FileStore) SetPreferences(ctx context.Context, userID int64, divisions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]string, len(divisions))
	copy(stored, divisions)
	s.prefs[userID] = stored
	return s.saveFile(prefsFile, s.prefs)
}

func (s *FileStore) AddSubscriber(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subscribers[userID] {
		return nil
	}
	s.subscribers[userID] = true
	return s.saveFile(subscribersFile, s.subscriberList())
}

func (s *FileStore) Subscribers(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriberList(), nil
}

// subscriberList returns the set sorted so the persisted file stays stable.
func (s *FileStore) subscriberList() []int64 {
	ids := make([]int64, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *FileStore) IsReminded(ctx context.Context, contestID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.reminded[contestID]
	return ok && s.now().Before(expiry), nil
}

func (s *FileStore) MarkReminded(ctx context.Context, contestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, expiry := range s.reminded {
		if !now.Before(expiry) {
			delete(s.reminded, id)
		}
	}
	s.reminded[contestID] = now.Add(RemindedTTL)
	return s.saveFile(remindedFile, s.reminded)
}

func (s *FileStore) SaveCredential(ctx context.Context, userID int64, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *cred
	s.creds[userID] = &stored
	return s.saveFile(tokensFile, s.creds)
}

func (s *FileStore) Credential(ctx context.Context, userID int64) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *cred
	return &out, nil
}

func (s *FileStore) PutPendingAuth(ctx context.Context, token string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[token] = pendingEntry{UserID: userID, ExpiresAt: s.now().Add(PendingAuthTTL)}
	return s.saveFile(pendingFile, s.pending)
}

func (s *FileStore) ClaimPendingAuth(ctx context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pending[token]
	if !ok {
		return 0, ErrNotFound
	}
	delete(s.pending, token)
	if err := s.saveFile(pendingFile, s.pending); err != nil {
		return 0, err
	}
	if !s.now().Before(entry.ExpiresAt) {
		return 0, ErrNotFound
	}
	return entry.UserID, nil
}

var _ Store = (*FileStore)(nil)
