package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/contest-reminder-bot/internal/repository"
	"github.com/example/contest-reminder-bot/pkg/codeforces"
)

// ReminderWindow is how far before its start a contest triggers reminders.
const ReminderWindow = 30 * time.Minute

// ContestSource abstracts the contest poller.
type ContestSource interface {
	UpcomingContests(ctx context.Context) ([]codeforces.Contest, error)
}

// ReminderSender delivers a single reminder message to one user.
type ReminderSender interface {
	SendContestReminder(ctx context.Context, userID int64, contest codeforces.Contest) error
}

// MatchesPreferences reports whether a contest name passes the user's
// division filter. An empty filter matches everything; otherwise any of the
// divisions must appear in the name as a substring.
func MatchesPreferences(name string, divisions []string) bool {
	if len(divisions) == 0 {
		return true
	}
	for _, div := range divisions {
		if strings.Contains(name, div) {
			return true
		}
	}
	return false
}

// FilterContests returns the contests whose names pass the division filter.
func FilterContests(contests []codeforces.Contest, divisions []string) []codeforces.Contest {
	if len(divisions) == 0 {
		return contests
	}
	out := make([]codeforces.Contest, 0, len(contests))
	for _, c := range contests {
		if MatchesPreferences(c.Name, divisions) {
			out = append(out, c)
		}
	}
	return out
}

// ReminderService dispatches at-most-once reminders for contests about to
// start.
type ReminderService struct {
	prefs    repository.PreferenceStore
	subs     repository.SubscriberStore
	reminded repository.ReminderLog
	source   ContestSource
	sender   ReminderSender
	now      func() time.Time
}

func NewReminderService(store repository.Store, source ContestSource, sender ReminderSender) *ReminderService {
	return &ReminderService{
		prefs:    store,
		subs:     store,
		reminded: store,
		source:   source,
		sender:   sender,
		now:      time.Now,
	}
}

// Tick runs one reminder pass. Contests starting within ReminderWindow that
// have not been reminded yet are marked first and then fanned out to every
// subscriber whose preferences match; marking before sending keeps the
// semantics at-most-once under partial failure. Per-user delivery failures
// are logged and skipped. An error is returned only when the contest list
// itself could not be fetched.
func (s *ReminderService) Tick(ctx context.Context) error {
	contests, err := s.source.UpcomingContests(ctx)
	if err != nil {
		return fmt.Errorf("fetch contests: %w", err)
	}

	subscribers, err := s.subs.Subscribers(ctx)
	if err != nil {
		// degraded mode: no subscriber list means nothing to do this tick
		log.Println("reminder: load subscribers:", err)
		return nil
	}

	now := s.now()
	for _, contest := range contests {
		until := contest.StartTime().Sub(now)
		if until <= 0 || until > ReminderWindow {
			continue
		}

		already, err := s.reminded.IsReminded(ctx, contest.ID)
		if err != nil {
			log.Println("reminder: check reminded:", err)
			continue
		}
		if already {
			continue
		}
		if err := s.reminded.MarkReminded(ctx, contest.ID); err != nil {
			// skip rather than send unmarked; the next tick retries
			log.Println("reminder: mark reminded:", err)
			continue
		}

		for _, userID := range subscribers {
			divisions, err := s.prefs.Preferences(ctx, userID)
			if err != nil {
				log.Println("reminder: load preferences:", err)
				divisions = nil
			}
			if !MatchesPreferences(contest.Name, divisions) {
				continue
			}
			if err := s.sender.SendContestReminder(ctx, userID, contest); err != nil {
				log.Printf("reminder: send to %d: %v", userID, err)
			}
		}
	}
	return nil
}
