package batch

import (
	"go.uber.org/zap"

	"tokenctl/internal/report"
	"tokenctl/internal/source"
	"tokenctl/internal/tokenapi"
)

// CreateAll runs the create path for every account, accumulating into the
// collector. Accounts that cannot be resolved are skipped with a warning.
func (r *Runner) CreateAll(accounts []source.Account, collector *report.Collector) {
	for i, acc := range accounts {
		r.log.Info("processing account",
			zap.Int("index", i+1),
			zap.Int("total", len(accounts)),
			zap.String("name", acc.Name))

		resolved, ok := r.resolveAccount(acc)
		if !ok {
			continue
		}
		collector.AddCreated(r.createAccount(resolved, collector))
	}
}

// createAccount creates resolved.Count tokens for one account, then resolves
// their keys with a single search. Created names the search cannot find are
// retained with an empty key: the console may simply not have propagated
// them yet.
func (r *Runner) createAccount(acc source.Account, collector *report.Collector) []report.CreatedToken {
	r.log.Info("creating tokens",
		zap.String("user_id", acc.UserID),
		zap.String("prefix", acc.Prefix),
		zap.Int("count", acc.Count))

	var created []string
	succeeded, failed := 0, 0

	for i := 1; i <= acc.Count; i++ {
		name := singleTokenName
		if acc.Count > 1 {
			name = r.newName(acc.Prefix)
		}

		res := r.client.Create(acc.Cookie, acc.UserID, tokenapi.NewCreateRequest(name, r.token))
		if res.Success {
			r.log.Info("[OK] created", zap.String("token", name))
			created = append(created, name)
			succeeded++
		} else {
			r.log.Warn("[FAIL] create", zap.String("token", name), zap.String("error", res.Message))
			failed++
		}

		if i < acc.Count {
			r.sleep(r.delay())
		}
	}

	var tokens []report.CreatedToken
	if len(created) > 0 {
		keyword := acc.Prefix
		if acc.Count == 1 {
			keyword = singleTokenName
		}

		r.log.Info("resolving token keys", zap.String("keyword", keyword))
		keys := r.client.Search(acc.Cookie, acc.UserID, keyword)

		for _, name := range created {
			key := keys[name]
			if key != "" {
				r.log.Info("[KEY] resolved", zap.String("token", name))
			} else {
				r.log.Warn("[WARN] key not found, retained with empty key", zap.String("token", name))
			}
			tokens = append(tokens, report.CreatedToken{Name: name, Key: key, UserID: acc.UserID})

			if r.recorder != nil {
				if err := r.recorder.RecordToken(r.runID, acc.UserID, name, key); err != nil {
					r.log.Warn("ledger write failed", zap.Error(err))
				}
			}
		}
	}

	collector.AddTally(acc.UserID, succeeded, failed)
	r.log.Info("account done", zap.Int("succeeded", succeeded), zap.Int("failed", failed))

	return tokens
}
