// Package cmd provides the command-line interface of memsym.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sarchlab/memsym/mem/vm/tlb"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// Environment variables that provide the defaults of the flags. They can be
// set in a .env file in the working directory.
const (
	envStrategy    = "MEMSYM_STRATEGY"
	envRecord      = "MEMSYM_RECORD"
	envRecordType  = "MEMSYM_RECORD_TYPE"
	envRecordDSN   = "MEMSYM_RECORD_DSN"
	envMonitorPort = "MEMSYM_MONITOR_PORT"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memsym <FIFO|LRU> <input trace> <output trace>",
	Short: "memsym simulates virtual memory address translation.",
	Long: `memsym runs a trace of memory instructions issued by up to four ` +
		`processes through a TLB and per-process page tables, and writes ` +
		`one line per event to the output trace. The strategy selects the ` +
		`TLB replacement policy. It can be omitted when ` + envStrategy +
		` is set.`,
	Args:          traceArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromCommand(cmd, args)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true

		_, err = run(opts, os.Stderr)

		return err
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.String("record", "",
		"Record the events into the SQLite file <name>.sqlite3")
	flags.String("record-type", "",
		"Record the events into a server, either mysql or clickhouse")
	flags.String("record-dsn", "",
		"Connection string of the server given by --record-type")
	flags.Bool("monitor", false,
		"Serve the state of the simulation over HTTP")
	flags.Int("monitor-port", 0,
		"Port of the monitoring server; 0 picks a free port")
	flags.Bool("open-browser", false,
		"Open the monitoring page in a browser")
	flags.Bool("hold", false,
		"Keep the monitoring server running after the trace ends")
}

// traceArgs accepts the strategy, the input trace and the output trace. The
// strategy can come from the environment instead.
func traceArgs(cmd *cobra.Command, args []string) error {
	_, hasStrategy := os.LookupEnv(envStrategy)

	switch {
	case len(args) == 3:
	case len(args) == 2 && hasStrategy:
	default:
		return fmt.Errorf("expected <strategy> <input trace> <output trace>, "+
			"got %d arguments", len(args))
	}

	strategy := os.Getenv(envStrategy)
	if len(args) == 3 {
		strategy = args[0]
	}

	_, err := tlb.ParsePolicy(strategy)

	return err
}

func optionsFromCommand(cmd *cobra.Command, args []string) (options, error) {
	opts := options{}

	strategy := os.Getenv(envStrategy)
	if len(args) == 3 {
		strategy, args = args[0], args[1:]
	}

	policy, err := tlb.ParsePolicy(strategy)
	if err != nil {
		return opts, err
	}

	opts.policy = policy
	opts.inputPath = args[0]
	opts.outputPath = args[1]

	flags := cmd.Flags()
	opts.record = stringFlag(cmd, "record", envRecord)
	opts.recordType = stringFlag(cmd, "record-type", envRecordType)
	opts.recordDSN = stringFlag(cmd, "record-dsn", envRecordDSN)
	opts.monitor, _ = flags.GetBool("monitor")
	opts.openBrowser, _ = flags.GetBool("open-browser")
	opts.hold, _ = flags.GetBool("hold")

	opts.monitorPort, _ = flags.GetInt("monitor-port")
	if v, ok := os.LookupEnv(envMonitorPort); ok && !flags.Changed("monitor-port") {
		opts.monitorPort, err = strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %w", envMonitorPort, err)
		}
	}

	return opts, nil
}

// stringFlag returns the value of a flag, falling back to the environment
// when the flag is not set.
func stringFlag(cmd *cobra.Command, name, env string) string {
	v, _ := cmd.Flags().GetString(name)
	if cmd.Flags().Changed(name) {
		return v
	}

	if envValue, ok := os.LookupEnv(env); ok {
		return envValue
	}

	return v
}

func loadEnv() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}
}

// Execute adds all child commands to the root command and sets flags
// appropriately. It exits with 1 when the trace fails or the arguments are
// invalid.
func Execute() {
	loadEnv()

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
