package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/backfill"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
)

// quotaCmd represents the quota command
var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Validate and manage role quotas",
	Long:  `Commands for checking quota aggregates against the configured quota resource types.`,
}

// quotaCheckCmd represents the quota check command
var quotaCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a quota aggregate",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuotaCheck,
}

// quotaSetCmd represents the quota set command
var quotaSetCmd = &cobra.Command{
	Use:   "set <role> <file>",
	Short: "Validate and store the quota of a role",
	Args:  cobra.ExactArgs(2),
	RunE:  runQuotaSet,
}

// quotaGetCmd represents the quota get command
var quotaGetCmd = &cobra.Command{
	Use:   "get <role>",
	Short: "Show the stored quota of a role",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuotaGet,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaCheckCmd)
	quotaCmd.AddCommand(quotaSetCmd)
	quotaCmd.AddCommand(quotaGetCmd)
}

func runQuotaCheck(cmd *cobra.Command, args []string) error {
	quota, err := quotaTypes()
	if err != nil {
		return err
	}

	var agg models.ResourceAggregate
	if err := readDocument(args[0], &agg); err != nil {
		return err
	}
	if _, err := backfill.BackfillResourceAggregate(&agg, quota.QuotaResourceTypes()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Quota in %s is valid\n", args[0])
	return nil
}

func runQuotaSet(cmd *cobra.Command, args []string) error {
	role, path := args[0], args[1]

	var agg models.ResourceAggregate
	if err := readDocument(path, &agg); err != nil {
		return err
	}

	s, err := openStore(metrics.NewCollector())
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SaveQuota(role, &agg); err != nil {
		return fmt.Errorf("failed to save quota for %s: %w", role, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Quota for %s saved\n", role)
	return nil
}

func runQuotaGet(cmd *cobra.Command, args []string) error {
	s, err := openStore(metrics.NewCollector())
	if err != nil {
		return err
	}
	defer s.Close()

	agg, err := s.GetQuota(args[0])
	if err != nil {
		return fmt.Errorf("failed to get quota for %s: %w", args[0], err)
	}

	if outputFormat != "table" {
		return printDocument(cmd.OutOrStdout(), agg)
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Resource", "Value")
	for _, r := range agg.Resources {
		table.Append(string(models.ResourceTypeOf(r)), resourceValue(r))
	}
	table.Render()
	return nil
}

func resourceValue(r models.Resource) string {
	switch {
	case r.NumCpus != nil:
		return strconv.FormatFloat(*r.NumCpus, 'f', -1, 64)
	case r.RamMb != nil:
		return strconv.FormatInt(*r.RamMb, 10) + " MiB"
	case r.DiskMb != nil:
		return strconv.FormatInt(*r.DiskMb, 10) + " MiB"
	case r.NamedPort != nil:
		return *r.NamedPort
	case r.NumGpus != nil:
		return strconv.FormatInt(*r.NumGpus, 10)
	}
	return ""
}
