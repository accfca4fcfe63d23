package repository

import (
	"context"
	"errors"
	"time"

	"github.com/example/contest-reminder-bot/internal/model"
)

// ErrNotFound is returned when a looked-up record does not exist or, for
// pending-auth tokens, has expired or was already claimed.
var ErrNotFound = errors.New("repository: not found")

const (
	// PendingAuthTTL bounds how long an in-flight authorization attempt stays
	// claimable.
	PendingAuthTTL = 15 * time.Minute
	// RemindedTTL bounds how long a dispatched reminder is remembered. The
	// reminder window is 30 minutes, so 72 hours comfortably outlives any
	// contest while keeping the set from growing forever.
	RemindedTTL = 72 * time.Hour
)

// PreferenceStore persists each user's ordered division-filter list.
type PreferenceStore interface {
	// Preferences returns the user's division list, nil when none is set.
	Preferences(ctx context.Context, userID int64) ([]string, error)
	// SetPreferences replaces the user's division list wholesale.
	SetPreferences(ctx context.Context, userID int64, divisions []string) error
}

// SubscriberStore persists the set of users who issued /start.
type SubscriberStore interface {
	AddSubscriber(ctx context.Context, userID int64) error
	Subscribers(ctx context.Context) ([]int64, error)
}

// ReminderLog records which contests already had their reminder dispatched.
type ReminderLog interface {
	IsReminded(ctx context.Context, contestID int64) (bool, error)
	MarkReminded(ctx context.Context, contestID int64) error
}

// CredentialStore persists OAuth credential records keyed by user id.
type CredentialStore interface {
	SaveCredential(ctx context.Context, userID int64, cred *model.Credential) error
	// Credential returns ErrNotFound when the user never completed the flow.
	Credential(ctx context.Context, userID int64) (*model.Credential, error)
}

// PendingAuthStore holds the short-lived correlation entries of in-flight
// authorization attempts.
type PendingAuthStore interface {
	// PutPendingAuth stores token -> userID with the PendingAuthTTL expiry.
	PutPendingAuth(ctx context.Context, token string, userID int64) error
	// ClaimPendingAuth atomically reads and deletes the entry. A token can be
	// claimed at most once; expired or unknown tokens yield ErrNotFound.
	ClaimPendingAuth(ctx context.Context, token string) (int64, error)
}

// Store groups every persistence contract. The bot and the auth server each
// use a subset, but both processes are backed by the same shared store.
type Store interface {
	PreferenceStore
	SubscriberStore
	ReminderLog
	CredentialStore
	PendingAuthStore
}
