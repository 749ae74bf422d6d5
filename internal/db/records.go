// CLAUDE:SUMMARY Per-user record relations — completion toggle, rating/difficulty upserts, full record-set reads for recomputation
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/bucketlist/internal/stats"
)

// GetCompletions returns the set of tradition IDs the user has completed.
func (db *DB) GetCompletions(userID string) (map[string]bool, error) {
	rows, err := db.Query("SELECT tradition_id FROM completions WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		completed[id] = true
	}
	return completed, rows.Err()
}

// SetCompletion flips membership of the (user, tradition) pair in the
// completion relation. present=true inserts, present=false deletes. Both
// directions are idempotent; the completion count is always derived by
// counting rows, never kept as a counter that could drift.
func (db *DB) SetCompletion(userID, traditionID string, present bool) error {
	// Retry loop for SQLITE_BUSY under concurrent load.
	const maxRetries = 5
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = db.setCompletionOnce(userID, traditionID, present)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "SQLITE_BUSY") && !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		time.Sleep(time.Duration(10*(attempt+1)) * time.Millisecond)
	}
	return err
}

func (db *DB) setCompletionOnce(userID, traditionID string, present bool) error {
	if present {
		_, err := db.Exec(`
			INSERT OR IGNORE INTO completions (user_id, tradition_id)
			VALUES (?, ?)`, userID, traditionID)
		if err != nil {
			return fmt.Errorf("adding completion: %w", err)
		}
		return nil
	}
	_, err := db.Exec(`
		DELETE FROM completions WHERE user_id = ? AND tradition_id = ?`,
		userID, traditionID)
	if err != nil {
		return fmt.Errorf("removing completion: %w", err)
	}
	return nil
}

// GetRatings returns the user's ratings keyed by tradition ID.
func (db *DB) GetRatings(userID string) (map[string]int, error) {
	return db.userValues("ratings", "rating", userID)
}

// GetDifficultyRatings returns the user's difficulty ratings keyed by tradition ID.
func (db *DB) GetDifficultyRatings(userID string) (map[string]int, error) {
	return db.userValues("difficulty_ratings", "difficulty", userID)
}

func (db *DB) userValues(table, column, userID string) (map[string]int, error) {
	rows, err := db.Query(
		"SELECT tradition_id, "+column+" FROM "+table+" WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]int)
	for rows.Next() {
		var id string
		var v int
		if err := rows.Scan(&id, &v); err != nil {
			return nil, err
		}
		values[id] = v
	}
	return values, rows.Err()
}

// PutRating stores a rating for the (user, tradition) pair. The storage
// contract is an upsert; the eligibility rules upstream never exercise the
// update path, but a replay of the same insert must not fail.
func (db *DB) PutRating(userID, traditionID string, rating int) error {
	_, err := db.Exec(`
		INSERT INTO ratings (user_id, tradition_id, rating)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, tradition_id) DO UPDATE SET rating = excluded.rating`,
		userID, traditionID, rating)
	if err != nil {
		return fmt.Errorf("storing rating: %w", err)
	}
	return nil
}

// PutDifficultyRating stores a difficulty rating; same contract as PutRating.
func (db *DB) PutDifficultyRating(userID, traditionID string, difficulty int) error {
	_, err := db.Exec(`
		INSERT INTO difficulty_ratings (user_id, tradition_id, difficulty)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, tradition_id) DO UPDATE SET difficulty = excluded.difficulty`,
		userID, traditionID, difficulty)
	if err != nil {
		return fmt.Errorf("storing difficulty rating: %w", err)
	}
	return nil
}

// ListAllCompletions returns the full completion relation.
func (db *DB) ListAllCompletions() ([]stats.Completion, error) {
	rows, err := db.Query("SELECT user_id, tradition_id FROM completions")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []stats.Completion
	for rows.Next() {
		var c stats.Completion
		if err := rows.Scan(&c.UserID, &c.TraditionID); err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	return all, rows.Err()
}

// ListAllRatings returns the full rating relation.
func (db *DB) ListAllRatings() ([]stats.Sample, error) {
	return db.allSamples("ratings", "rating")
}

// ListAllDifficultyRatings returns the full difficulty relation.
func (db *DB) ListAllDifficultyRatings() ([]stats.Sample, error) {
	return db.allSamples("difficulty_ratings", "difficulty")
}

func (db *DB) allSamples(table, column string) ([]stats.Sample, error) {
	rows, err := db.Query("SELECT user_id, tradition_id, " + column + " FROM " + table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []stats.Sample
	for rows.Next() {
		var s stats.Sample
		if err := rows.Scan(&s.UserID, &s.TraditionID, &s.Value); err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	return all, rows.Err()
}
