package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/config"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
)

var backfillSave bool

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Upgrade records to the canonical schema",
	Long:  `Commands that read scheduler records written by older clients and print their canonical form.`,
}

// backfillJobCmd represents the backfill job command
var backfillJobCmd = &cobra.Command{
	Use:   "job <file>",
	Short: "Backfill a job configuration file",
	Long: `Load a JSON or YAML job configuration, fill in both the legacy scalar and the
canonical resource fields of every job, and print the result.`,
	Args: cobra.ExactArgs(1),
	RunE: runBackfillJob,
}

// backfillUpdateCmd represents the backfill update command
var backfillUpdateCmd = &cobra.Command{
	Use:   "update <file>",
	Short: "Backfill a job update",
	Long:  `Load a JSON or YAML job update, derive its update strategy and task resources, and print the result.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runBackfillUpdate,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.AddCommand(backfillJobCmd)
	backfillCmd.AddCommand(backfillUpdateCmd)
	backfillCmd.PersistentFlags().BoolVar(&backfillSave, "save", false, "persist backfilled records to the record store")
}

func runBackfillJob(cmd *cobra.Command, args []string) error {
	bf, err := newBackfiller()
	if err != nil {
		return err
	}

	loader := config.NewLoader()
	var jobs []*models.JobConfiguration
	if isYAMLFile(args[0]) {
		jobs, err = loader.LoadYAML(args[0], false)
	} else {
		jobs, err = loader.LoadJSON(args[0], false)
	}
	if err != nil {
		return err
	}

	out := make([]*models.JobConfiguration, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, bf.BackfillJobConfiguration(job))
	}

	if backfillSave {
		s, err := openStore(metrics.NewCollector())
		if err != nil {
			return err
		}
		defer s.Close()
		for _, job := range out {
			if err := s.SaveJob(job); err != nil {
				return fmt.Errorf("failed to save job %s: %w", job.Key, err)
			}
		}
	}

	return printDocument(cmd.OutOrStdout(), map[string]interface{}{"jobs": out})
}

func runBackfillUpdate(cmd *cobra.Command, args []string) error {
	bf, err := newBackfiller()
	if err != nil {
		return err
	}

	var update models.JobUpdate
	if err := readDocument(args[0], &update); err != nil {
		return err
	}

	out, err := bf.BackfillJobUpdate(&update)
	if err != nil {
		return err
	}

	if backfillSave {
		s, err := openStore(metrics.NewCollector())
		if err != nil {
			return err
		}
		defer s.Close()
		key, err := s.SaveJobUpdate(out)
		if err != nil {
			return fmt.Errorf("failed to save job update: %w", err)
		}
		out.Summary.Key = key
	}

	return printDocument(cmd.OutOrStdout(), out)
}
