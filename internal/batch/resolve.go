package batch

import (
	"go.uber.org/zap"

	"tokenctl/internal/report"
	"tokenctl/internal/source"
)

// ResolveAll re-runs key resolution for ledger entries whose key is still
// empty, without issuing any create calls. pending maps user IDs to the
// token names awaiting a key. One search per account, keyed the same way
// the create path would have keyed it.
func (r *Runner) ResolveAll(accounts []source.Account, pending map[string][]string, collector *report.Collector) {
	for i, acc := range accounts {
		r.log.Info("processing account",
			zap.Int("index", i+1),
			zap.Int("total", len(accounts)),
			zap.String("name", acc.Name))

		resolved, ok := r.resolveAccount(acc)
		if !ok {
			continue
		}

		names := pending[resolved.UserID]
		if len(names) == 0 {
			r.log.Info("nothing unresolved for account", zap.String("user_id", resolved.UserID))
			continue
		}

		keyword := resolved.Prefix
		if len(names) == 1 && names[0] == singleTokenName {
			keyword = singleTokenName
		}

		keys := r.client.Search(resolved.Cookie, resolved.UserID, keyword)

		succeeded, failed := 0, 0
		for _, name := range names {
			key := keys[name]
			if key == "" {
				r.log.Warn("[WARN] still unresolved", zap.String("token", name))
				failed++
				continue
			}

			r.log.Info("[KEY] resolved", zap.String("token", name))
			collector.AddCreated([]report.CreatedToken{{Name: name, Key: key, UserID: resolved.UserID}})
			succeeded++

			if r.recorder != nil {
				if _, err := r.recorder.ResolveKey(resolved.UserID, name, key); err != nil {
					r.log.Warn("ledger write failed", zap.Error(err))
				}
			}
		}

		collector.AddTally(resolved.UserID, succeeded, failed)
	}
}
