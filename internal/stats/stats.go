// Package stats is the aggregation engine: eligibility rules for completion
// and rating actions, plus community statistics derived from the full record
// sets. Everything here is pure — callers pass the records in, nothing is
// read from storage or cached between calls.
package stats

import "sort"

// MinValue and MaxValue bound both rating and difficulty submissions.
const (
	MinValue = 1
	MaxValue = 10
)

// Completion is one (user, tradition) completion fact.
type Completion struct {
	UserID      string `json:"user_id"`
	TraditionID string `json:"tradition_id"`
}

// Sample is one (user, tradition) rating or difficulty submission.
type Sample struct {
	UserID      string `json:"user_id"`
	TraditionID string `json:"tradition_id"`
	Value       int    `json:"value"`
}

// Statistics are the derived community aggregates for one tradition.
// They are recomputed from the record sets on every read, never stored.
type Statistics struct {
	Completions            int     `json:"completions"`
	TotalRatings           int     `json:"total_ratings"`
	AverageRating          float64 `json:"average_rating"`
	TotalDifficultyRatings int     `json:"total_difficulty_ratings"`
	AverageDifficulty      float64 `json:"average_difficulty"`
}

// Compute derives the statistics for one tradition from the full record sets.
// Averages are 0 when no samples exist. The result depends only on the
// multiset of records, not their order.
func Compute(traditionID string, completions []Completion, ratings, difficulties []Sample) Statistics {
	var s Statistics
	for _, c := range completions {
		if c.TraditionID == traditionID {
			s.Completions++
		}
	}
	s.TotalRatings, s.AverageRating = mean(traditionID, ratings)
	s.TotalDifficultyRatings, s.AverageDifficulty = mean(traditionID, difficulties)
	return s
}

func mean(traditionID string, samples []Sample) (int, float64) {
	var n, sum int
	for _, r := range samples {
		if r.TraditionID == traditionID {
			n++
			sum += r.Value
		}
	}
	if n == 0 {
		return 0, 0
	}
	return n, float64(sum) / float64(n)
}

// IncrementalMean folds one new sample into a running average. It is only an
// optimization for callers that cannot reload the full record set; the result
// matches a full recomputation over n+1 samples.
func IncrementalMean(avg float64, n int, x int) float64 {
	return (avg*float64(n) + float64(x)) / float64(n+1)
}

// CheckToggle validates a completion toggle. The only precondition is an
// authenticated identity; the toggle itself is valid in either direction.
func CheckToggle(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// CheckSubmit validates a rating or difficulty submission. Checks run in
// order, first failure wins: identity, prior completion, no existing record
// of this kind, value in range. Eligibility failures must be returned before
// any mutation — local or remote — is attempted.
func CheckSubmit(userID string, completed map[string]bool, existing map[string]int, traditionID string, value int) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if !completed[traditionID] {
		return ErrNotCompleted
	}
	if _, ok := existing[traditionID]; ok {
		return ErrAlreadyRated
	}
	if value < MinValue || value > MaxValue {
		return ErrInvalidValue
	}
	return nil
}

// Key selects the ranking dimension for RankTop.
type Key int

const (
	ByRating Key = iota
	ByCompletions
	ByDifficulty
)

// RankTop returns at most n items sorted descending by the chosen dimension.
// The sort is stable: ties keep the input order, which for gateway reads is
// insertion order. ByDifficulty first drops items with no difficulty samples,
// so boards never show a difficulty of 0 for unrated items — even when that
// leaves fewer than n entries.
func RankTop[T any](items []T, stat func(T) Statistics, key Key, n int) []T {
	ranked := make([]T, 0, len(items))
	for _, it := range items {
		if key == ByDifficulty && stat(it).TotalDifficultyRatings == 0 {
			continue
		}
		ranked = append(ranked, it)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return value(stat(ranked[i]), key) > value(stat(ranked[j]), key)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func value(s Statistics, key Key) float64 {
	switch key {
	case ByCompletions:
		return float64(s.Completions)
	case ByDifficulty:
		return s.AverageDifficulty
	default:
		return s.AverageRating
	}
}
