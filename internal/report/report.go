// Package report aggregates per-item outcomes into the final record set and
// writes the run artifacts.
package report

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/samber/lo"
)

// CreatedToken is one created token as reported to the operator. Key stays
// empty when search could not resolve the secret; such records are retained
// here but excluded from the valid-keys export.
type CreatedToken struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	UserID string `json:"user_id"`
}

// AccountTally is the per-account pass/fail summary
type AccountTally struct {
	UserID    string
	Succeeded int
	Failed    int
}

// DeletionCandidate is one token selected for deletion, surfaced to the
// operator before anything is removed. A dry run ends here.
type DeletionCandidate struct {
	ID     int64
	Name   string
	UserID string
}

// Collector accumulates outcomes across accounts. Single-threaded by
// design; no locking.
type Collector struct {
	created    []CreatedToken
	deleted    []int64
	candidates []DeletionCandidate
	tallies    []AccountTally
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

// AddCreated appends created-token records for one account
func (c *Collector) AddCreated(tokens []CreatedToken) {
	c.created = append(c.created, tokens...)
}

// AddDeleted appends successfully deleted token IDs for one account
func (c *Collector) AddDeleted(ids []int64) {
	c.deleted = append(c.deleted, ids...)
}

// AddCandidates appends the deletion candidate set for one account
func (c *Collector) AddCandidates(cands []DeletionCandidate) {
	c.candidates = append(c.candidates, cands...)
}

// AddTally records one account's pass/fail counts
func (c *Collector) AddTally(userID string, succeeded, failed int) {
	c.tallies = append(c.tallies, AccountTally{UserID: userID, Succeeded: succeeded, Failed: failed})
}

// Created returns all accumulated created-token records
func (c *Collector) Created() []CreatedToken {
	return c.created
}

// Deleted returns all accumulated deleted token IDs
func (c *Collector) Deleted() []int64 {
	return c.deleted
}

// Candidates returns all accumulated deletion candidates
func (c *Collector) Candidates() []DeletionCandidate {
	return c.candidates
}

// Tallies returns the per-account summaries
func (c *Collector) Tallies() []AccountTally {
	return c.tallies
}

// ValidKeys returns the non-empty keys of the created records
func (c *Collector) ValidKeys() []string {
	withKey := lo.Filter(c.created, func(t CreatedToken, _ int) bool {
		return t.Key != ""
	})
	return lo.Map(withKey, func(t CreatedToken, _ int) string {
		return t.Key
	})
}

// WriteJSON writes the created records as an indented JSON array
func (c *Collector) WriteJSON(path string) error {
	data, err := json.MarshalIndent(c.created, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteKeys writes the valid-keys export, one secret per line
func (c *Collector) WriteKeys(path string) error {
	return os.WriteFile(path, []byte(strings.Join(c.ValidKeys(), "\n")), 0600)
}
