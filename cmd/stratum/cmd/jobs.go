package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
)

// jobsCmd represents the jobs command
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Query job configurations in the record store",
}

// jobsListCmd represents the jobs list command
var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

// jobsGetCmd represents the jobs get command
var jobsGetCmd = &cobra.Command{
	Use:   "get <role/environment/name>",
	Short: "Show a stored job configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsGet,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
}

// parseJobKey parses role/environment/name
func parseJobKey(s string) (models.JobKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return models.JobKey{}, fmt.Errorf("invalid job key %q, want role/environment/name", s)
	}
	return models.JobKey{Role: parts[0], Environment: parts[1], Name: parts[2]}, nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	s, err := openStore(metrics.NewCollector())
	if err != nil {
		return err
	}
	defer s.Close()

	jobs, err := s.ListJobs()
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if outputFormat != "table" {
		return printDocument(cmd.OutOrStdout(), map[string]interface{}{"jobs": jobs, "count": len(jobs)})
	}
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Job", "Instances", "CPUs", "RAM", "Disk")
	for _, j := range jobs {
		var cpus, ram, disk string
		if tc := j.TaskConfig; tc != nil {
			cpus = strconv.FormatFloat(tc.NumCpus, 'f', -1, 64)
			ram = strconv.FormatInt(tc.RamMb, 10) + " MiB"
			disk = strconv.FormatInt(tc.DiskMb, 10) + " MiB"
		}
		table.Append(j.Key.String(), strconv.Itoa(j.InstanceCount), cpus, ram, disk)
	}
	table.Render()
	return nil
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	key, err := parseJobKey(args[0])
	if err != nil {
		return err
	}

	s, err := openStore(metrics.NewCollector())
	if err != nil {
		return err
	}
	defer s.Close()

	job, err := s.GetJob(key)
	if err != nil {
		return fmt.Errorf("failed to get job %s: %w", key, err)
	}
	return printDocument(cmd.OutOrStdout(), job)
}
