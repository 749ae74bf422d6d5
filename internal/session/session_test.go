package session

import (
	"errors"
	"testing"

	"github.com/hazyhaar/bucketlist/internal/db"
	"github.com/hazyhaar/bucketlist/internal/stats"
)

// fakeGateway is an in-memory gateway with scriptable failures.
type fakeGateway struct {
	completions map[string]map[string]bool
	ratings     map[string]map[string]int
	difficulty  map[string]map[string]int
	traditions  []db.Tradition

	failNext error // returned by the next mutating call, then cleared
}

func newFakeGateway(traditionIDs ...string) *fakeGateway {
	g := &fakeGateway{
		completions: make(map[string]map[string]bool),
		ratings:     make(map[string]map[string]int),
		difficulty:  make(map[string]map[string]int),
	}
	for _, id := range traditionIDs {
		g.traditions = append(g.traditions, db.Tradition{ID: id, Name: id})
	}
	return g
}

func (g *fakeGateway) takeFailure() error {
	err := g.failNext
	g.failNext = nil
	return err
}

func (g *fakeGateway) GetCompletions(userID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for id := range g.completions[userID] {
		out[id] = true
	}
	return out, nil
}

func (g *fakeGateway) GetRatings(userID string) (map[string]int, error) {
	return copyInts(g.ratings[userID]), nil
}

func (g *fakeGateway) GetDifficultyRatings(userID string) (map[string]int, error) {
	return copyInts(g.difficulty[userID]), nil
}

func copyInts(m map[string]int) map[string]int {
	out := make(map[string]int)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (g *fakeGateway) SetCompletion(userID, traditionID string, present bool) error {
	if err := g.takeFailure(); err != nil {
		return err
	}
	if g.completions[userID] == nil {
		g.completions[userID] = make(map[string]bool)
	}
	if present {
		g.completions[userID][traditionID] = true
	} else {
		delete(g.completions[userID], traditionID)
	}
	return nil
}

func (g *fakeGateway) PutRating(userID, traditionID string, rating int) error {
	if err := g.takeFailure(); err != nil {
		return err
	}
	if g.ratings[userID] == nil {
		g.ratings[userID] = make(map[string]int)
	}
	g.ratings[userID][traditionID] = rating
	return nil
}

func (g *fakeGateway) PutDifficultyRating(userID, traditionID string, difficulty int) error {
	if err := g.takeFailure(); err != nil {
		return err
	}
	if g.difficulty[userID] == nil {
		g.difficulty[userID] = make(map[string]int)
	}
	g.difficulty[userID][traditionID] = difficulty
	return nil
}

func (g *fakeGateway) ListTraditionsWithStats() ([]db.TraditionWithStats, error) {
	var completions []stats.Completion
	for user, set := range g.completions {
		for id := range set {
			completions = append(completions, stats.Completion{UserID: user, TraditionID: id})
		}
	}
	samples := func(by map[string]map[string]int) []stats.Sample {
		var out []stats.Sample
		for user, m := range by {
			for id, v := range m {
				out = append(out, stats.Sample{UserID: user, TraditionID: id, Value: v})
			}
		}
		return out
	}
	ratings := samples(g.ratings)
	difficulty := samples(g.difficulty)

	out := make([]db.TraditionWithStats, 0, len(g.traditions))
	for _, t := range g.traditions {
		out = append(out, db.TraditionWithStats{
			Tradition: t,
			Stats:     stats.Compute(t.ID, completions, ratings, difficulty),
		})
	}
	return out, nil
}

func statsFor(t *testing.T, s *Session, traditionID string) stats.Statistics {
	t.Helper()
	for _, ts := range s.Stats {
		if ts.ID == traditionID {
			return ts.Stats
		}
	}
	t.Fatalf("tradition %s not in view", traditionID)
	return stats.Statistics{}
}

func TestToggleCompletionRoundTrip(t *testing.T) {
	gw := newFakeGateway("t1")
	s, err := New(gw, "alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if err := s.ToggleCompletion("t1"); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !s.Completed["t1"] {
		t.Fatal("view should show t1 completed")
	}
	if got := statsFor(t, s, "t1").Completions; got != 1 {
		t.Errorf("completions = %d, want 1", got)
	}

	// Self-inverse: a second toggle restores the original relation.
	if err := s.ToggleCompletion("t1"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if s.Completed["t1"] {
		t.Fatal("view should show t1 not completed")
	}
	if got := statsFor(t, s, "t1").Completions; got != 0 {
		t.Errorf("completions = %d, want 0", got)
	}
}

func TestToggleRollbackOnGatewayFailure(t *testing.T) {
	gw := newFakeGateway("t1")
	s, err := New(gw, "alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	gw.failNext = errors.New("backend unavailable")
	err = s.ToggleCompletion("t1")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if s.Completed["t1"] {
		t.Error("speculative completion not rolled back")
	}
	if gw.completions["alice"]["t1"] {
		t.Error("record must not exist after failed toggle")
	}
}

func TestSubmitRatingRollbackOnGatewayFailure(t *testing.T) {
	gw := newFakeGateway("t1")
	s, err := New(gw, "alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.ToggleCompletion("t1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	gw.failNext = errors.New("backend unavailable")
	err = s.SubmitRating("t1", 8)

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if _, ok := s.Ratings["t1"]; ok {
		t.Error("speculative rating not rolled back")
	}

	// The user can retry interactively after a rollback.
	if err := s.SubmitRating("t1", 8); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
	if got := statsFor(t, s, "t1").AverageRating; got != 8.0 {
		t.Errorf("average = %v, want 8.0", got)
	}
}

func TestEligibilityFailuresLeaveStateUntouched(t *testing.T) {
	gw := newFakeGateway("t1")

	// Anonymous session: toggle rejected before any mutation.
	anon, err := New(gw, "")
	if err != nil {
		t.Fatalf("anonymous session: %v", err)
	}
	if err := anon.ToggleCompletion("t1"); err != stats.ErrUnauthenticated {
		t.Fatalf("anonymous toggle: got %v, want ErrUnauthenticated", err)
	}
	if len(anon.Completed) != 0 || len(gw.completions) != 0 {
		t.Error("anonymous toggle mutated state")
	}

	// Difficulty rating without completion.
	bob, err := New(gw, "bob")
	if err != nil {
		t.Fatalf("bob session: %v", err)
	}
	if err := bob.SubmitDifficulty("t1", 7); err != stats.ErrNotCompleted {
		t.Fatalf("difficulty without completion: got %v, want ErrNotCompleted", err)
	}
	st := statsFor(t, bob, "t1")
	if st.TotalDifficultyRatings != 0 || st.AverageDifficulty != 0 {
		t.Errorf("difficulty stats changed: %+v", st)
	}
}

func TestRatingSecondSubmissionRejected(t *testing.T) {
	gw := newFakeGateway("t1")
	s, err := New(gw, "alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.ToggleCompletion("t1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := s.SubmitRating("t1", 8); err != nil {
		t.Fatalf("first rating: %v", err)
	}

	if err := s.SubmitRating("t1", 5); err != stats.ErrAlreadyRated {
		t.Fatalf("second rating: got %v, want ErrAlreadyRated", err)
	}
	if got := statsFor(t, s, "t1").AverageRating; got != 8.0 {
		t.Errorf("average changed to %v after rejected resubmit", got)
	}
}

func TestOrphanedRatingSurvivesUncompletion(t *testing.T) {
	gw := newFakeGateway("t1")
	s, err := New(gw, "alice")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.ToggleCompletion("t1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := s.SubmitRating("t1", 9); err != nil {
		t.Fatalf("rating: %v", err)
	}

	// Removing the completion leaves the rating counting toward the average.
	if err := s.ToggleCompletion("t1"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	st := statsFor(t, s, "t1")
	if st.Completions != 0 {
		t.Errorf("completions = %d, want 0", st.Completions)
	}
	if st.TotalRatings != 1 || st.AverageRating != 9.0 {
		t.Errorf("orphaned rating lost: %+v", st)
	}
}
