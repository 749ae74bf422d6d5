// Package session holds one user's view state and drives the
// optimistic-apply / confirm-or-rollback protocol against the store gateway.
//
// Every mutation follows the same sequence: check eligibility, apply the
// change to local state speculatively, persist through the gateway, then on
// success replace the community statistics wholesale with a full
// authoritative reload. On gateway failure the speculative change is
// reverted exactly and a GatewayError is returned; there is no automatic
// retry. Deltas from other users are never merged — reconciliation happens
// only through the full reload.
package session

import (
	"fmt"

	"github.com/hazyhaar/bucketlist/internal/db"
	"github.com/hazyhaar/bucketlist/internal/stats"
)

// Gateway is the persistence boundary the session depends on. *db.DB
// implements it; tests substitute a scripted fake. Any call may fail for
// reasons opaque to the session (network, constraint, unavailability); all
// failures mean "action did not take effect".
type Gateway interface {
	GetCompletions(userID string) (map[string]bool, error)
	GetRatings(userID string) (map[string]int, error)
	GetDifficultyRatings(userID string) (map[string]int, error)
	SetCompletion(userID, traditionID string, present bool) error
	PutRating(userID, traditionID string, rating int) error
	PutDifficultyRating(userID, traditionID string, difficulty int) error
	ListTraditionsWithStats() ([]db.TraditionWithStats, error)
}

// GatewayError wraps a persistence failure that occurred after the
// speculative local change; by the time the caller sees it the change has
// already been rolled back.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Session is one user's local view of the system. A single logical actor
// drives it sequentially; the speculative window exists only inside a
// mutation call, so no pending state is observable between calls.
type Session struct {
	gw     Gateway
	UserID string

	Completed  map[string]bool
	Ratings    map[string]int
	Difficulty map[string]int
	Stats      []db.TraditionWithStats
}

// New builds a session for userID and loads its initial state. An empty
// userID yields an anonymous session: reads work, mutations fail with
// stats.ErrUnauthenticated before touching local state or the gateway.
func New(gw Gateway, userID string) (*Session, error) {
	s := &Session{
		gw:         gw,
		UserID:     userID,
		Completed:  make(map[string]bool),
		Ratings:    make(map[string]int),
		Difficulty: make(map[string]int),
	}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh replaces the whole view with authoritative state from the gateway.
func (s *Session) Refresh() error {
	all, err := s.gw.ListTraditionsWithStats()
	if err != nil {
		return &GatewayError{Op: "list traditions", Err: err}
	}
	if s.UserID != "" {
		completed, err := s.gw.GetCompletions(s.UserID)
		if err != nil {
			return &GatewayError{Op: "load completions", Err: err}
		}
		ratings, err := s.gw.GetRatings(s.UserID)
		if err != nil {
			return &GatewayError{Op: "load ratings", Err: err}
		}
		difficulty, err := s.gw.GetDifficultyRatings(s.UserID)
		if err != nil {
			return &GatewayError{Op: "load difficulty ratings", Err: err}
		}
		s.Completed = completed
		s.Ratings = ratings
		s.Difficulty = difficulty
	}
	s.Stats = all
	return nil
}

// ToggleCompletion flips the completion state for one tradition. Ratings
// previously submitted for the pair are untouched when completion is removed;
// they remain as historical data and keep counting toward the averages.
func (s *Session) ToggleCompletion(traditionID string) error {
	if err := stats.CheckToggle(s.UserID); err != nil {
		return err
	}

	was := s.Completed[traditionID]
	if was {
		delete(s.Completed, traditionID)
	} else {
		s.Completed[traditionID] = true
	}

	if err := s.gw.SetCompletion(s.UserID, traditionID, !was); err != nil {
		// Roll back the speculative flip.
		if was {
			s.Completed[traditionID] = true
		} else {
			delete(s.Completed, traditionID)
		}
		return &GatewayError{Op: "set completion", Err: err}
	}

	return s.Refresh()
}

// SubmitRating records the user's rating for a tradition, once.
func (s *Session) SubmitRating(traditionID string, value int) error {
	return s.submit(traditionID, value, s.Ratings, s.gw.PutRating, "put rating")
}

// SubmitDifficulty records the user's difficulty rating for a tradition, once.
func (s *Session) SubmitDifficulty(traditionID string, value int) error {
	return s.submit(traditionID, value, s.Difficulty, s.gw.PutDifficultyRating, "put difficulty rating")
}

func (s *Session) submit(traditionID string, value int, local map[string]int, put func(userID, traditionID string, value int) error, op string) error {
	if err := stats.CheckSubmit(s.UserID, s.Completed, local, traditionID, value); err != nil {
		return err
	}

	local[traditionID] = value
	if err := put(s.UserID, traditionID, value); err != nil {
		delete(local, traditionID)
		return &GatewayError{Op: op, Err: err}
	}

	return s.Refresh()
}

// Progress reports how many traditions the user has completed out of the
// total currently known to the view.
func (s *Session) Progress() (completed, total int) {
	return len(s.Completed), len(s.Stats)
}
