// Package batch drives the token lifecycle client across many accounts.
// Accounts are processed one at a time; within an account, calls are paced
// by a fixed settling delay. Nothing here raises for per-call failures:
// outcomes are recorded and the batch moves on.
package batch

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"tokenctl/config"
	"tokenctl/internal/source"
	"tokenctl/internal/tokenapi"
	"tokenctl/internal/waf"
)

// singleTokenName is the fixed name used when an account creates exactly
// one token.
const singleTokenName = "default"

const nameSuffixLen = 8
const nameSuffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// Client is the slice of the token API the orchestrator needs
type Client interface {
	Create(cookie, userID string, req tokenapi.CreateRequest) tokenapi.Result
	Search(cookie, userID, keyword string) map[string]string
	List(cookie, userID string, page, size int) []tokenapi.RemoteToken
	Delete(cookie, userID string, tokenID int64) tokenapi.Result
}

// Recorder persists per-item outcomes as they happen. Optional; a nil
// recorder disables ledger writes.
type Recorder interface {
	RecordToken(runID, userID, name, key string) error
	ResolveKey(userID, name, key string) (int64, error)
	RecordDeletion(runID, userID string, tokenID int64, name string) error
}

// Runner orchestrates batch operations across accounts
type Runner struct {
	client   Client
	barrier  waf.CookieSet
	defaults config.BatchConfig
	token    config.TokenConfig
	userID   string // run-wide default, used when a record omits its own
	runID    string
	recorder Recorder
	log      *zap.Logger

	// injectable for tests
	sleep   func(time.Duration)
	newName func(prefix string) string
}

// NewRunner creates a runner. barrier may be empty (degraded mode);
// recorder may be nil.
func NewRunner(client Client, barrier waf.CookieSet, defaults config.BatchConfig, token config.TokenConfig, userID, runID string, recorder Recorder, log *zap.Logger) *Runner {
	return &Runner{
		client:   client,
		barrier:  barrier,
		defaults: defaults,
		token:    token,
		userID:   userID,
		runID:    runID,
		recorder: recorder,
		log:      log,
		sleep:    time.Sleep,
		newName:  randomName,
	}
}

func randomName(prefix string) string {
	suffix := make([]byte, nameSuffixLen)
	for i := range suffix {
		suffix[i] = nameSuffixChars[rand.Intn(len(nameSuffixChars))]
	}
	return prefix + "_" + string(suffix)
}

func (r *Runner) delay() time.Duration {
	return time.Duration(r.defaults.DelaySeconds * float64(time.Second))
}

// resolveAccount merges barrier cookies into the record and fills absent
// fields from run-wide defaults. ok is false when the record cannot be
// processed (empty cookie or unresolved user).
func (r *Runner) resolveAccount(acc source.Account) (source.Account, bool) {
	if acc.Cookie == "" {
		r.log.Warn("skipping account: empty cookie", zap.String("name", acc.Name))
		return acc, false
	}

	acc.Cookie = waf.Merge(acc.Cookie, r.barrier)

	if acc.UserID == "" {
		acc.UserID = r.userID
	}
	if acc.UserID == "" {
		r.log.Warn("skipping account: no user id and no run-wide default", zap.String("name", acc.Name))
		return acc, false
	}

	if acc.Prefix == "" {
		acc.Prefix = r.defaults.Prefix
	}
	if acc.Count == 0 {
		acc.Count = r.defaults.Count
	}

	return acc, true
}
