package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	appLog "shiftsync/internal/log"
	"shiftsync/internal/pipeline"
)

func newParseCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		sync   bool
	)

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a saved schedule page",
		Long: `Parse reads a schedule page saved from the portal (for example by
"shiftsync probe" or a failed run's debug dump) and prints the shifts found.
Use "-" to read from stdin.

With --sync the shifts are also sent to the configured calendar.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			res, err := newParser(cfg).Parse(in)
			if err != nil {
				return err
			}
			for _, skipped := range res.Skipped {
				appLog.Warn("skipped day", "day", skipped.Day, "reason", skipped.Reason)
			}

			if !sync {
				return WriteShifts(cmd.OutOrStdout(), res.Shifts, outFormat)
			}

			sink, err := newSink(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rep := pipeline.Report{Month: res.Month, Shifts: res.Shifts}
			rep.AddResults(pipeline.Sync(cmd.Context(), sink, res.Shifts))
			return WriteReport(cmd.OutOrStdout(), rep, outFormat)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&sync, "sync", false, "Send parsed shifts to the configured calendar")
	return cmd
}
