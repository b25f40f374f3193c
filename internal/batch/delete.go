package batch

import (
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"tokenctl/internal/report"
	"tokenctl/internal/source"
	"tokenctl/internal/tokenapi"
)

const listPageSize = 100
const previewLimit = 10

// Selection picks the deletion candidates for one invocation. Exactly one
// mode applies: explicit IDs win over the name filters; with neither filter
// set, every token is selected.
type Selection struct {
	IDs     []int64
	Prefix  string
	Keyword string
	DryRun  bool
}

// Candidate is a token selected for deletion
type Candidate struct {
	ID   int64
	Name string
}

// DeleteAll runs the delete path for every account
func (r *Runner) DeleteAll(accounts []source.Account, sel Selection, collector *report.Collector) {
	for i, acc := range accounts {
		r.log.Info("processing account",
			zap.Int("index", i+1),
			zap.Int("total", len(accounts)),
			zap.String("name", acc.Name))

		resolved, ok := r.resolveAccount(acc)
		if !ok {
			continue
		}
		r.deleteAccount(resolved, sel, collector)
	}
}

// deleteAccount selects, previews, and (unless dry-run) deletes candidates
// for one account, pacing calls with the settling delay.
func (r *Runner) deleteAccount(acc source.Account, sel Selection, collector *report.Collector) {
	candidates := r.selectCandidates(acc, sel)
	if len(candidates) == 0 {
		r.log.Info("no matching tokens", zap.String("user_id", acc.UserID))
		collector.AddTally(acc.UserID, 0, 0)
		return
	}

	r.preview(candidates)
	collector.AddCandidates(lo.Map(candidates, func(c Candidate, _ int) report.DeletionCandidate {
		return report.DeletionCandidate{ID: c.ID, Name: c.Name, UserID: acc.UserID}
	}))

	if sel.DryRun {
		r.log.Info("dry run, nothing deleted", zap.Int("candidates", len(candidates)))
		collector.AddTally(acc.UserID, 0, 0)
		return
	}

	var deleted []int64
	succeeded, failed := 0, 0

	for i, cand := range candidates {
		res := r.client.Delete(acc.Cookie, acc.UserID, cand.ID)
		if res.Success {
			r.log.Info("[OK] deleted", zap.Int64("id", cand.ID), zap.String("token", cand.Name))
			deleted = append(deleted, cand.ID)
			succeeded++

			if r.recorder != nil {
				if err := r.recorder.RecordDeletion(r.runID, acc.UserID, cand.ID, cand.Name); err != nil {
					r.log.Warn("ledger write failed", zap.Error(err))
				}
			}
		} else {
			r.log.Warn("[FAIL] delete", zap.Int64("id", cand.ID), zap.String("error", res.Message))
			failed++
		}

		if i < len(candidates)-1 {
			r.sleep(r.delay())
		}
	}

	collector.AddDeleted(deleted)
	collector.AddTally(acc.UserID, succeeded, failed)
	r.log.Info("account done", zap.Int("succeeded", succeeded), zap.Int("failed", failed))
}

// selectCandidates builds the candidate set. Explicit IDs are used as-is
// (names unknown); otherwise all tokens are paged in and filtered.
func (r *Runner) selectCandidates(acc source.Account, sel Selection) []Candidate {
	if len(sel.IDs) > 0 {
		return lo.Map(sel.IDs, func(id int64, _ int) Candidate {
			return Candidate{ID: id, Name: "(id only)"}
		})
	}

	tokens := r.listAll(acc)

	matched := lo.Filter(tokens, func(t tokenapi.RemoteToken, _ int) bool {
		return matches(t.Name, sel.Prefix, sel.Keyword)
	})
	return lo.Map(matched, func(t tokenapi.RemoteToken, _ int) Candidate {
		return Candidate{ID: t.ID, Name: t.Name}
	})
}

// matches applies the name filters. When both prefix and keyword are given
// the acceptance is inclusive-OR, mirroring the console UI's behavior;
// with neither, everything matches.
func matches(name, prefix, keyword string) bool {
	if prefix == "" && keyword == "" {
		return true
	}
	if prefix != "" && strings.HasPrefix(name, prefix) {
		return true
	}
	return keyword != "" && strings.Contains(name, keyword)
}

// listAll pages through the token list, stopping once a page comes back
// shorter than the page size.
func (r *Runner) listAll(acc source.Account) []tokenapi.RemoteToken {
	var all []tokenapi.RemoteToken
	for page := 0; ; page++ {
		batch := r.client.List(acc.Cookie, acc.UserID, page, listPageSize)
		all = append(all, batch...)
		if len(batch) < listPageSize {
			break
		}
	}
	return all
}

func (r *Runner) preview(candidates []Candidate) {
	r.log.Info("deletion candidates", zap.Int("count", len(candidates)))
	for i, cand := range candidates {
		if i == previewLimit {
			r.log.Info("preview truncated", zap.Int("more", len(candidates)-previewLimit))
			break
		}
		r.log.Info("  candidate", zap.Int64("id", cand.ID), zap.String("token", cand.Name))
	}
}
