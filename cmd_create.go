package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenctl/config"
	"tokenctl/internal/batch"
	"tokenctl/internal/report"
)

var (
	flagCount       int
	flagPrefix      string
	flagTokenConfig string
	flagOutput      string
	flagQuota       int64
	flagUnlimited   bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Batch-create tokens and resolve their keys",
	Long: `Creates tokens for every account, then resolves the actual secret
values with one search per account (the create response does not reliably
carry them). Records whose key could not be resolved are kept in the JSON
artifact with an empty key and can be completed later with "tokenctl
resolve".

Examples:
  tokenctl create -f cookies.txt -n 5 -p mytoken
  tokenctl create --api-token xxx -n 5`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().IntVarP(&flagCount, "count", "n", 1, "Tokens to create per account")
	createCmd.Flags().StringVarP(&flagPrefix, "prefix", "p", "token", "Token name prefix")
	createCmd.Flags().StringVarP(&flagTokenConfig, "token-config", "c", "", "Token defaults override as a JSON object")
	createCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output JSON path (default from config)")
	createCmd.Flags().Int64Var(&flagQuota, "quota", 500000, "Token quota")
	createCmd.Flags().BoolVar(&flagUnlimited, "unlimited", true, "Unlimited quota")
}

func runCreate(cmd *cobra.Command, args []string) error {
	// A malformed override is a setup error; abort before the account
	// fetch, the barrier challenge, and the ledger open run for nothing.
	if err := config.ValidateTokenJSON(flagTokenConfig); err != nil {
		return err
	}

	rt, err := setupRun(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if cmd.Flags().Changed("count") {
		rt.cfg.Batch.Count = flagCount
	}
	if cmd.Flags().Changed("prefix") {
		rt.cfg.Batch.Prefix = flagPrefix
	}
	if cmd.Flags().Changed("quota") {
		rt.cfg.Token.RemainQuota = flagQuota
	}
	if cmd.Flags().Changed("unlimited") {
		rt.cfg.Token.UnlimitedQuota = flagUnlimited
	}
	if err := rt.cfg.ApplyTokenJSON(flagTokenConfig); err != nil {
		return err
	}

	runID, err := rt.ledger.BeginRun("create")
	if err != nil {
		return err
	}

	runner := batch.NewRunner(rt.client, rt.barrier, rt.cfg.Batch, rt.cfg.Token, flagUserID, runID, rt.ledger, logger)
	collector := report.NewCollector()
	runner.CreateAll(rt.accounts, collector)

	succeeded, failed := sumTallies(collector)
	if err := rt.ledger.FinishRun(runID, len(rt.accounts), succeeded, failed); err != nil {
		logger.Warn("ledger write failed", zap.Error(err))
	}

	if len(collector.Created()) == 0 {
		logger.Info("no tokens created")
		return nil
	}

	return writeArtifacts(rt, collector)
}

// writeArtifacts persists the JSON record set and the valid-keys export
func writeArtifacts(rt *runtime, collector *report.Collector) error {
	jsonPath := rt.cfg.Output.JSONPath
	keysPath := rt.cfg.Output.KeysPath
	if flagOutput != "" {
		jsonPath = flagOutput
		keysPath = keysPathFor(flagOutput)
	}

	if err := collector.WriteJSON(jsonPath); err != nil {
		return err
	}
	logger.Info("token records saved", zap.String("path", jsonPath), zap.Int("count", len(collector.Created())))

	if err := collector.WriteKeys(keysPath); err != nil {
		return err
	}
	logger.Info("token keys saved", zap.String("path", keysPath), zap.Int("valid", len(collector.ValidKeys())))

	return nil
}

// keysPathFor derives the companion plain-text path from the JSON path
func keysPathFor(jsonPath string) string {
	ext := filepath.Ext(jsonPath)
	return strings.TrimSuffix(jsonPath, ext) + ".txt"
}

func sumTallies(collector *report.Collector) (succeeded, failed int) {
	for _, t := range collector.Tallies() {
		succeeded += t.Succeeded
		failed += t.Failed
	}
	return succeeded, failed
}
