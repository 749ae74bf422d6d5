// CLAUDE:SUMMARY Authoritative statistics read path — full record-set reload feeding the aggregation engine
package db

import (
	"fmt"

	"github.com/hazyhaar/bucketlist/internal/stats"
)

// TraditionWithStats pairs a tradition with its community statistics.
type TraditionWithStats struct {
	Tradition
	Stats stats.Statistics `json:"stats"`
}

// ListTraditionsWithStats reloads the full record sets and recomputes every
// tradition's statistics. This is the single authoritative read path: after
// any successful mutation callers replace their view state with its result
// wholesale instead of patching in deltas.
func (db *DB) ListTraditionsWithStats() ([]TraditionWithStats, error) {
	traditions, err := db.ListTraditions()
	if err != nil {
		return nil, fmt.Errorf("listing traditions: %w", err)
	}
	completions, err := db.ListAllCompletions()
	if err != nil {
		return nil, fmt.Errorf("loading completions: %w", err)
	}
	ratings, err := db.ListAllRatings()
	if err != nil {
		return nil, fmt.Errorf("loading ratings: %w", err)
	}
	difficulties, err := db.ListAllDifficultyRatings()
	if err != nil {
		return nil, fmt.Errorf("loading difficulty ratings: %w", err)
	}

	results := make([]TraditionWithStats, 0, len(traditions))
	for _, t := range traditions {
		results = append(results, TraditionWithStats{
			Tradition: *t,
			Stats:     stats.Compute(t.ID, completions, ratings, difficulties),
		})
	}
	return results, nil
}

// InstanceStats summarizes the instance for the status endpoint.
type InstanceStats struct {
	Traditions        int `json:"traditions"`
	Users             int `json:"users"`
	Completions       int `json:"completions"`
	Ratings           int `json:"ratings"`
	DifficultyRatings int `json:"difficulty_ratings"`
}

func (db *DB) GetInstanceStats() (*InstanceStats, error) {
	s := &InstanceStats{}
	err := db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM traditions),
		       (SELECT COUNT(*) FROM users),
		       (SELECT COUNT(*) FROM completions),
		       (SELECT COUNT(*) FROM ratings),
		       (SELECT COUNT(*) FROM difficulty_ratings)`).Scan(
		&s.Traditions, &s.Users, &s.Completions, &s.Ratings, &s.DifficultyRatings)
	if err != nil {
		return nil, err
	}
	return s, nil
}
