package main

import (
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenctl/internal/batch"
	"tokenctl/internal/ledger"
	"tokenctl/internal/report"
)

var flagResolveOutput string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Re-resolve keys for previously created tokens",
	Long: `Runs the read-back half of the create flow on its own: for every
ledger entry whose key is still empty, one search per account recovers the
secret by name. No create calls are issued, so this is safe to re-run any
number of times after a crash or a console propagation delay.

Example:
  tokenctl resolve -f cookies.txt -o recovered.json`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&flagResolveOutput, "output", "o", "", "Write resolved records to this JSON path")
}

func runResolve(cmd *cobra.Command, args []string) error {
	rt, err := setupRun(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	unresolved, err := rt.ledger.Unresolved("")
	if err != nil {
		return err
	}
	if len(unresolved) == 0 {
		logger.Info("ledger has no unresolved tokens")
		return nil
	}
	logger.Info("unresolved tokens found", zap.Int("count", len(unresolved)))

	pending := map[string][]string{}
	for user, entries := range lo.GroupBy(unresolved, func(e ledger.Entry) string { return e.UserID }) {
		pending[user] = lo.Map(entries, func(e ledger.Entry, _ int) string { return e.Name })
	}

	runID, err := rt.ledger.BeginRun("resolve")
	if err != nil {
		return err
	}

	runner := batch.NewRunner(rt.client, rt.barrier, rt.cfg.Batch, rt.cfg.Token, flagUserID, runID, rt.ledger, logger)
	collector := report.NewCollector()
	runner.ResolveAll(rt.accounts, pending, collector)

	succeeded, failed := sumTallies(collector)
	if err := rt.ledger.FinishRun(runID, len(rt.accounts), succeeded, failed); err != nil {
		logger.Warn("ledger write failed", zap.Error(err))
	}

	logger.Info("resolve run finished", zap.Int("resolved", succeeded), zap.Int("still_unresolved", failed))

	if flagResolveOutput != "" && len(collector.Created()) > 0 {
		if err := collector.WriteJSON(flagResolveOutput); err != nil {
			return err
		}
		if err := collector.WriteKeys(keysPathFor(flagResolveOutput)); err != nil {
			return err
		}
		logger.Info("resolved records saved", zap.String("path", flagResolveOutput))
	}

	return nil
}
