package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sarchlab/memsym/datarecording"
	"github.com/sarchlab/memsym/memsym/recording"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <recording.sqlite3>",
	Short: "Print the events of a recorded run.",
	Long: "`dump` prints the events that --record stored in a SQLite file, " +
		"optionally only those of one kind or one process.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		filter := dumpFilter{pid: -1}
		filter.kind, _ = cmd.Flags().GetString("kind")
		filter.pid, _ = cmd.Flags().GetInt("pid")
		filter.limit, _ = cmd.Flags().GetInt("limit")

		return dump(cmd.Context(), args[0], filter, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().String("kind", "", "Only print events of this kind")
	dumpCmd.Flags().Int("pid", -1, "Only print events of this process")
	dumpCmd.Flags().Int("limit", 0, "Print at most this many events")
}

type dumpFilter struct {
	kind  string
	pid   int
	limit int
}

func (f dumpFilter) params() datarecording.QueryParams {
	params := datarecording.QueryParams{
		OrderBy: "Clock, rowid",
		Limit:   f.limit,
	}

	if f.kind != "" {
		params.Where = "Kind = ?"
		params.Args = append(params.Args, f.kind)
	}

	if f.pid >= 0 {
		if params.Where != "" {
			params.Where += " AND "
		}

		params.Where += "PID = ?"
		params.Args = append(params.Args, f.pid)
	}

	return params
}

func dump(
	ctx context.Context,
	path string,
	filter dumpFilter,
	w io.Writer,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(path); err != nil {
		return err
	}

	reader, err := datarecording.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(recording.EventTableName, recording.EventEntry{})

	results, total, err := reader.Query(ctx, recording.EventTableName,
		filter.params())
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLOCK\tPID\tKIND\tVPN\tPFN\tSLOT\tVADDR\tPADDR\tREG\tVALUE\tDETAIL")

	for _, r := range results {
		e := r.(*recording.EventEntry)
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%d\t%s\n",
			e.Clock, e.PID, e.Kind, e.VPN, e.PFN, e.Slot, e.VAddr, e.PAddr,
			e.Register, e.Value, e.Detail)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d of %d events\n", len(results), total)

	return nil
}
