package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/executor"
	"github.com/psantana5/stratum/pkg/logging"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
)

var recoverSave bool

// recoverCmd represents the recover command
var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "List terminated tasks left in the executor root",
	Long: `Scan the executor root and restore every task directory whose recorded status is terminal.
Directories that cannot be restored are listed with the reason.`,
	RunE: runRecover,
}

func init() {
	rootCmd.AddCommand(recoverCmd)
	recoverCmd.Flags().BoolVar(&recoverSave, "save", false, "persist recovered tasks to the record store")
}

type recoveredTask struct {
	ID        string                `json:"id"`
	Job       string                `json:"job"`
	Host      string                `json:"host"`
	Status    models.ScheduleStatus `json:"status"`
	DiskBytes int64                 `json:"disk_bytes"`
}

type recoverFailure struct {
	Dir   string `json:"dir"`
	Error string `json:"error"`
}

type recoverResult struct {
	Root           string           `json:"root"`
	Tasks          []recoveredTask  `json:"tasks"`
	Failures       []recoverFailure `json:"failures"`
	TotalDiskBytes int64            `json:"total_disk_bytes"`
	Filesystem     *disk.UsageStat  `json:"filesystem,omitempty"`
}

func runRecover(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Close()

	m := metrics.NewCollector()
	root := executorRoot()
	recovery, err := executor.NewRecovery(executor.RecoveryConfig{Root: root, Logger: log, Metrics: m})
	if err != nil {
		return err
	}

	report, err := recovery.Recover(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to recover tasks from %s: %w", root, err)
	}

	result := recoverResult{
		Root:           root,
		Tasks:          make([]recoveredTask, 0, len(report.Recovered)),
		Failures:       make([]recoverFailure, 0, len(report.Failures)),
		TotalDiskBytes: recovery.DiskConsumed(),
	}
	for _, t := range report.Recovered {
		assigned := t.AssignedTask()
		rt := recoveredTask{ID: t.ID(), Host: assigned.SlaveHost, Status: t.ScheduleStatus()}
		if assigned.Task != nil {
			rt.Job = assigned.Task.Job.String()
		}
		if n, err := t.DiskConsumed(); err == nil {
			rt.DiskBytes = n
		}
		result.Tasks = append(result.Tasks, rt)
	}
	for _, f := range report.Failures {
		result.Failures = append(result.Failures, recoverFailure{Dir: f.Dir, Error: f.Err.Error()})
	}

	if usage, err := disk.Usage(root); err == nil {
		result.Filesystem = usage
	} else {
		log.Warn("Failed to read filesystem usage", logging.Fields{"root": root, "error": err.Error()})
	}

	if recoverSave {
		if err := saveRecovered(report.Recovered, m); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if IsJSONOutput() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(result.Tasks) == 0 {
		fmt.Fprintln(out, "No terminated tasks found")
	} else {
		table := tablewriter.NewWriter(out)
		table.Header("ID", "Job", "Host", "Status", "Disk")
		for _, t := range result.Tasks {
			table.Append(t.ID, t.Job, t.Host, string(t.Status), formatBytes(uint64(t.DiskBytes)))
		}
		table.Render()
	}

	if len(result.Failures) > 0 {
		fmt.Fprintf(out, "\nFailed to recover %d directories:\n", len(result.Failures))
		table := tablewriter.NewWriter(out)
		table.Header("Directory", "Error")
		for _, f := range result.Failures {
			table.Append(f.Dir, f.Error)
		}
		table.Render()
	}

	fmt.Fprintf(out, "\nTotal task disk usage: %s\n", formatBytes(uint64(result.TotalDiskBytes)))
	if result.Filesystem != nil {
		fmt.Fprintf(out, "Filesystem %s: %s used of %s (%.1f%%)\n", root,
			formatBytes(result.Filesystem.Used), formatBytes(result.Filesystem.Total), result.Filesystem.UsedPercent)
	}
	return nil
}

func saveRecovered(tasks []*executor.DeadTask, m *metrics.Collector) error {
	s, err := openStore(m)
	if err != nil {
		return err
	}
	defer s.Close()

	records := make([]*models.ScheduledTask, 0, len(tasks))
	for _, t := range tasks {
		records = append(records, &models.ScheduledTask{AssignedTask: t.AssignedTask(), Status: t.ScheduleStatus()})
	}
	if err := s.SaveTasks(records); err != nil {
		return fmt.Errorf("failed to save recovered tasks: %w", err)
	}
	return nil
}
