package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenctl/internal/batch"
	"tokenctl/internal/report"
)

var (
	flagDelPrefix  string
	flagDelKeyword string
	flagDelIDs     string
	flagDryRun     bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Batch-delete tokens by ID, prefix, keyword, or all",
	Long: `Deletes tokens for every account. Candidates are selected by exactly
one mode: an explicit --ids list wins over the name filters; --prefix and
--keyword accept a token matching either; with no filter at all, every
token on the account is selected. The first candidates are previewed before
anything is deleted; --dry-run stops there.

Examples:
  tokenctl delete -f cookies.txt --prefix mytoken_
  tokenctl delete -f cookies.txt --ids 101,102 --no-waf
  tokenctl delete -f cookies.txt --dry-run`,
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().StringVarP(&flagDelPrefix, "prefix", "p", "", "Delete tokens whose name starts with this prefix")
	deleteCmd.Flags().StringVarP(&flagDelKeyword, "keyword", "k", "", "Delete tokens whose name contains this keyword")
	deleteCmd.Flags().StringVar(&flagDelIDs, "ids", "", "Comma-separated token IDs to delete")
	deleteCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Preview candidates without deleting")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDList(flagDelIDs)
	if err != nil {
		return err
	}

	rt, err := setupRun(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	runID, err := rt.ledger.BeginRun("delete")
	if err != nil {
		return err
	}

	sel := batch.Selection{
		IDs:     ids,
		Prefix:  flagDelPrefix,
		Keyword: flagDelKeyword,
		DryRun:  flagDryRun,
	}

	runner := batch.NewRunner(rt.client, rt.barrier, rt.cfg.Batch, rt.cfg.Token, flagUserID, runID, rt.ledger, logger)
	collector := report.NewCollector()
	runner.DeleteAll(rt.accounts, sel, collector)

	succeeded, failed := sumTallies(collector)
	if err := rt.ledger.FinishRun(runID, len(rt.accounts), succeeded, failed); err != nil {
		logger.Warn("ledger write failed", zap.Error(err))
	}

	logger.Info("delete run finished",
		zap.Int("candidates", len(collector.Candidates())),
		zap.Int("deleted", len(collector.Deleted())),
		zap.Int("failed", failed),
		zap.Bool("dry_run", flagDryRun))

	return nil
}

// parseIDList parses the comma-separated --ids value. A malformed entry is
// a setup error and aborts the run before anything is touched.
func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q in --ids", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
