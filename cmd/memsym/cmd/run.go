package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/browser"
	"github.com/sarchlab/memsym/datarecording"
	"github.com/sarchlab/memsym/mem/vm/tlb"
	"github.com/sarchlab/memsym/memsym"
	"github.com/sarchlab/memsym/memsym/logging"
	"github.com/sarchlab/memsym/memsym/recording"
	"github.com/sarchlab/memsym/memsym/trace"
	"github.com/sarchlab/memsym/monitoring"
	"github.com/sarchlab/memsym/sim/id"
)

// publishInterval is the number of commands between two snapshots sent to
// the monitor.
const publishInterval = 64

type options struct {
	policy     tlb.Policy
	inputPath  string
	outputPath string

	record     string
	recordType string
	recordDSN  string

	monitor     bool
	monitorPort int
	openBrowser bool
	hold        bool
}

func (o options) recording() bool {
	return o.record != "" || o.recordType != ""
}

func (o options) recorderConfig() datarecording.RecorderConfig {
	if o.recordType == "" || strings.EqualFold(o.recordType, "sqlite") {
		return datarecording.RecorderConfig{Type: "sqlite", Path: o.record}
	}

	return datarecording.RecorderConfig{Type: o.recordType, DSN: o.recordDSN}
}

// A traceFailure is a fatal error of the simulator, already written to the
// output trace.
type traceFailure struct {
	cmd memsym.Command
	err error
}

func (e *traceFailure) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.cmd.Line, e.cmd, e.err)
}

func (e *traceFailure) Unwrap() error {
	return e.err
}

// run simulates the input trace and writes the output trace. Diagnostics go
// to stderr.
//
//nolint:funlen,gocyclo
func run(opts options, stderr io.Writer) (stats memsym.Stats, err error) {
	input, err := os.Open(opts.inputPath)
	if err != nil {
		return stats, fmt.Errorf("failed to open input trace: %w", err)
	}
	defer input.Close()

	commands, err := trace.ReadAll(input)
	if err != nil {
		return stats, fmt.Errorf("failed to read input trace: %w", err)
	}

	outputFile, err := os.Create(opts.outputPath)
	if err != nil {
		return stats, fmt.Errorf("failed to create output trace: %w", err)
	}

	output := bufio.NewWriter(outputFile)
	defer func() {
		flushErr := output.Flush()
		closeErr := outputFile.Close()

		if err == nil && flushErr != nil {
			err = fmt.Errorf("failed to write output trace: %w", flushErr)
		}

		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to write output trace: %w", closeErr)
		}
	}()

	s := memsym.MakeBuilder().WithPolicy(opts.policy).Build()
	s.AcceptHook(logging.NewLogHook(output))

	if opts.recording() {
		finish, err := startRecording(opts, s)
		if err != nil {
			return stats, err
		}
		defer finish()
	}

	var monitor *monitoring.Monitor
	var bar *monitoring.ProgressBar

	if opts.monitor {
		monitor, err = startMonitor(opts, stderr)
		if err != nil {
			return stats, err
		}

		bar = monitor.CreateProgressBar(opts.inputPath, uint64(len(commands)))
		monitor.Publish(s.Snapshot())
	}

	var failure error

	for i, cmd := range commands {
		if err := s.Execute(cmd); err != nil {
			failure = &traceFailure{cmd: cmd, err: err}
			break
		}

		if monitor != nil {
			bar.IncrementFinished(1)

			if (i+1)%publishInterval == 0 {
				monitor.Publish(s.Snapshot())
			}
		}
	}

	if failure == nil {
		fmt.Fprintln(stderr, "Reached end of trace. Exiting...")
	}

	stats = s.Stats()
	fmt.Fprintf(stderr,
		"Commands: %d. TLB hits: %d. TLB misses: %d. Evictions: %d\n",
		stats.Commands, stats.Hits, stats.Misses, stats.Evictions)

	if monitor != nil {
		monitor.Publish(s.Snapshot())
		monitor.CompleteProgressBar(bar)

		if opts.hold {
			waitForInterrupt(stderr)
		}
	}

	return stats, failure
}

func startRecording(opts options, s *memsym.Simulator) (func(), error) {
	backend, err := datarecording.NewWithConfig(opts.recorderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}

	execRecorder := datarecording.NewExecRecorder(backend)
	execRecorder.Start(
		datarecording.ExecInfo{Property: "Policy", Value: opts.policy.Name()},
		datarecording.ExecInfo{Property: "Input Trace", Value: opts.inputPath},
	)

	eventRecorder := recording.NewEventRecorder(backend, id.NewIDGenerator())
	s.AcceptHook(eventRecorder)

	return func() {
		eventRecorder.RecordFinalState(s.Snapshot())
		execRecorder.End()

		err := backend.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close recording: %v\n", err)
		}
	}, nil
}

func startMonitor(opts options, stderr io.Writer) (*monitoring.Monitor, error) {
	monitor := monitoring.NewMonitor().WithPortNumber(opts.monitorPort)

	port, err := monitor.StartServer()
	if err != nil {
		return nil, fmt.Errorf("failed to start monitor: %w", err)
	}

	if opts.openBrowser {
		url := fmt.Sprintf("http://localhost:%d", port)

		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to open %s: %v\n", url, err)
		}
	}

	return monitor, nil
}

func waitForInterrupt(stderr io.Writer) {
	fmt.Fprintln(stderr,
		"Trace finished. Monitor is still running, press Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	<-ctx.Done()
}
