package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
)

var taskStatuses []string

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Query tasks in the record store",
}

// tasksListCmd represents the tasks list command
var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tasks",
	Long:  `List tasks from the record store, optionally filtered by schedule status.`,
	RunE:  runTasksList,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksListCmd.Flags().StringSliceVar(&taskStatuses, "status", nil, "only list tasks in these statuses (e.g. FINISHED,FAILED)")
}

func runTasksList(cmd *cobra.Command, args []string) error {
	statuses := make([]models.ScheduleStatus, 0, len(taskStatuses))
	for _, name := range taskStatuses {
		st, err := models.ParseScheduleStatus(name)
		if err != nil {
			return err
		}
		statuses = append(statuses, st)
	}

	s, err := openStore(metrics.NewCollector())
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.GetTasks(statuses...)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if outputFormat != "table" {
		return printDocument(cmd.OutOrStdout(), map[string]interface{}{"tasks": tasks, "count": len(tasks)})
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks found")
		return nil
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("ID", "Job", "Instance", "Status", "Failures")
	for _, t := range tasks {
		var job, instance string
		if t.AssignedTask != nil {
			instance = strconv.Itoa(t.AssignedTask.InstanceID)
			if t.AssignedTask.Task != nil {
				job = t.AssignedTask.Task.Job.String()
			}
		}
		table.Append(t.TaskID(), job, instance, string(t.Status), strconv.Itoa(t.FailureCount))
	}
	table.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal tasks: %d\n", len(tasks))
	return nil
}
