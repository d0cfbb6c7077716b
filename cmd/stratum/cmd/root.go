package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/stratum/pkg/backfill"
	"github.com/psantana5/stratum/pkg/logging"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
	"github.com/psantana5/stratum/pkg/store"
)

var (
	cfgFile      string
	outputFormat string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "stratum",
	Short: "Inspect terminated tasks and backfill scheduler records",
	Long: `stratum recovers terminated tasks left in an executor root after a restart and
upgrades job, task, quota and update records to their canonical schema.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stratum/config)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
	flags.String("root", "", "executor root holding one directory per task")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("store-type", "", "record store: memory, sqlite or postgres")
	flags.String("store-dsn", "", "record store DSN, or the database path for sqlite")

	viper.BindPFlag("executor_root", flags.Lookup("root"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("store.type", flags.Lookup("store-type"))
	viper.BindPFlag("store.dsn", flags.Lookup("store-dsn"))

	viper.SetDefault("executor_root", "/var/lib/stratum/tasks")
	viper.SetDefault("quota.resource_types", []string{"CPUS", "RAM_MB", "DISK_MB"})
	viper.SetDefault("store.type", "sqlite")
	viper.SetDefault("store.dsn", "stratum.db")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("listen", ":8090")
	viper.SetDefault("rate.rps", 20.0)
	viper.SetDefault("rate.burst", 40)
	viper.SetDefault("api.keys", []string{})
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".stratum"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("STRATUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
	}
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

func executorRoot() string {
	return viper.GetString("executor_root")
}

// newLogger logs to stderr so command output stays parseable. With log.dir
// set, entries are also appended to <log.dir>/stratum.log.
func newLogger() *logging.Logger {
	level := logging.ParseLevel(viper.GetString("log.level"))
	if dir := viper.GetString("log.dir"); dir != "" {
		l, err := logging.NewFileLogger(dir, "stratum", level, viper.GetBool("log.json"))
		if err == nil {
			return l
		}
		fmt.Fprintf(os.Stderr, "Error opening log file, logging to stderr only: %v\n", err)
	}
	return logging.NewWriterLogger(os.Stderr, level, viper.GetBool("log.json"))
}

// quotaTypes parses quota.resource_types into the canonical quota set
func quotaTypes() (backfill.StaticQuotaTypes, error) {
	names := viper.GetStringSlice("quota.resource_types")
	types := make([]models.ResourceType, 0, len(names))
	for _, name := range names {
		rt, ok := models.ParseResourceType(name)
		if !ok {
			return nil, fmt.Errorf("unknown quota resource type %q", name)
		}
		types = append(types, rt)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("quota.resource_types must not be empty")
	}
	return backfill.StaticQuotaTypes(models.NewResourceTypeSet(types...)), nil
}

func newBackfiller() (*backfill.Backfiller, error) {
	quota, err := quotaTypes()
	if err != nil {
		return nil, err
	}
	return backfill.New(quota), nil
}

func openStore(m *metrics.Collector) (store.Store, error) {
	quota, err := quotaTypes()
	if err != nil {
		return nil, err
	}
	s, err := store.NewStore(store.Config{
		Type:       viper.GetString("store.type"),
		DSN:        viper.GetString("store.dsn"),
		QuotaTypes: quota,
		Metrics:    m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", viper.GetString("store.type"), err)
	}
	return s, nil
}
