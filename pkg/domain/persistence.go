package domain

import "context"

// LoadResult is the outcome of hydrating records from durable storage.
// Records are validated and in persisted order; Skipped counts entries that
// failed validation and were dropped, and Issues says why.
type LoadResult struct {
	Members []Member
	Skipped int
	Issues  []LoadIssue
}

// LoadIssue describes one dropped entry. Position is the 1-based line or row.
type LoadIssue struct {
	Position int
	Reason   string
}

// Skip records a dropped entry.
func (r *LoadResult) Skip(position int, reason string) {
	r.Skipped++
	r.Issues = append(r.Issues, LoadIssue{Position: position, Reason: reason})
}

// Persister is a durable backend for the full record set. Save replaces the
// previously committed state atomically: on failure the prior state remains
// intact. Load of an absent store returns an empty result and no error.
type Persister interface {
	Load(ctx context.Context) (LoadResult, error)
	Save(ctx context.Context, members []Member) error
	Describe() string
}
