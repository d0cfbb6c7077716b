package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
	"github.com/psantana5/stratum/pkg/update"
)

var (
	updateInstances        []int
	maxPerInstanceFailures int
	maxTotalFailures       int
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Work with job update configuration",
}

// updateSettingsCmd represents the update settings command
var updateSettingsCmd = &cobra.Command{
	Use:   "settings <file>",
	Short: "Convert an updater config to job update settings",
	Long: `Validate a YAML or JSON updater config (batch_size, watch_secs, update_strategy, ...)
and print the job update settings it produces.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdateSettings,
}

// updateGetCmd represents the update get command
var updateGetCmd = &cobra.Command{
	Use:   "get <role/environment/name> <id>",
	Short: "Show a stored job update",
	Args:  cobra.ExactArgs(2),
	RunE:  runUpdateGet,
}

// updateFailuresCmd represents the update failures command
var updateFailuresCmd = &cobra.Command{
	Use:   "failures <instances>...",
	Short: "Evaluate instance failures against the update failure threshold",
	Long: `Each argument is one round of failed instance IDs, e.g. "0,3". An instance that fails
in more rounds than --max-per-instance counts as failed; the update fails once more
than --max-total instances have failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpdateFailures,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.AddCommand(updateSettingsCmd)
	updateCmd.AddCommand(updateGetCmd)
	updateCmd.AddCommand(updateFailuresCmd)
	updateSettingsCmd.Flags().IntSliceVar(&updateInstances, "instances", nil, "restrict the update to these instance IDs")
	updateFailuresCmd.Flags().IntVar(&maxPerInstanceFailures, "max-per-instance", 0, "failures tolerated per instance")
	updateFailuresCmd.Flags().IntVar(&maxTotalFailures, "max-total", 0, "failed instances tolerated per update")
}

func runUpdateSettings(cmd *cobra.Command, args []string) error {
	var raw update.UpdaterConfig
	if err := readDocument(args[0], &raw); err != nil {
		return err
	}
	cfg, err := update.NewUpdaterConfig(raw)
	if err != nil {
		return err
	}
	return printDocument(cmd.OutOrStdout(), cfg.ToSettings(updateInstances))
}

func runUpdateGet(cmd *cobra.Command, args []string) error {
	job, err := parseJobKey(args[0])
	if err != nil {
		return err
	}

	s, err := openStore(metrics.NewCollector())
	if err != nil {
		return err
	}
	defer s.Close()

	u, err := s.GetJobUpdate(models.JobUpdateKey{Job: job, ID: args[1]})
	if err != nil {
		return fmt.Errorf("failed to get update %s of %s: %w", args[1], job, err)
	}
	return printDocument(cmd.OutOrStdout(), u)
}

func runUpdateFailures(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Close()

	threshold := update.NewFailureThreshold(maxPerInstanceFailures, maxTotalFailures, log)
	var exceeded []int
	for _, round := range args {
		ids, err := parseInstances(round)
		if err != nil {
			return err
		}
		exceeded = append(exceeded, threshold.UpdateFailureCounts(ids)...)
	}
	failed := threshold.IsFailedUpdate(true)

	if outputFormat != "table" {
		return printDocument(cmd.OutOrStdout(), map[string]interface{}{
			"failed":   failed,
			"exceeded": update.InstancesToRanges(exceeded),
		})
	}
	if failed {
		fmt.Fprintln(cmd.OutOrStdout(), "Update failed: failure threshold exceeded")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Update within failure threshold")
	}
	return nil
}

func parseInstances(s string) ([]int, error) {
	var ids []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid instance ID %q: %w", field, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
