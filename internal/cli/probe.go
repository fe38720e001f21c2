package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	appLog "shiftsync/internal/log"
	"shiftsync/internal/portal"
)

func newProbeCmd(g *globalOptions) *cobra.Command {
	var (
		url string
		dir string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Open the portal and dump what the browser sees",
		Long: `Probe opens the portal entry page with the configured browser profile,
saves the page HTML and a screenshot, and lists the form controls found.
Use it to check selectors after the portal markup changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if url == "" {
				url = cfg.Portal.URL
			}
			if dir == "" {
				dir = cfg.Browser.DebugDir
			}
			if dir == "" {
				dir = "debug"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := portal.Launch(ctx, browserOptions(cfg))
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Navigate(ctx, url); err != nil {
				return fmt.Errorf("loading %s: %w", url, err)
			}
			if err := b.WaitNetworkIdle(ctx, time.Duration(cfg.Browser.ActionTimeoutSec)*time.Second); err != nil {
				appLog.Warn("page did not settle", "err", err)
			}

			paths, err := portal.DumpDebug(ctx, b, dir, "probe")
			if err != nil {
				return err
			}
			title, _ := b.Title(ctx)
			controls, err := b.Controls(ctx)
			if err != nil {
				return fmt.Errorf("listing controls: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title: %s\n", title)
			fmt.Fprintf(out, "State: %s\n", portal.DetectState(ctx, b, cfg.Portal.Selectors, time.Second))
			for _, p := range paths {
				fmt.Fprintf(out, "Saved: %s\n", p)
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TAG\tTYPE\tID\tNAME\tVALUE/TEXT")
			for _, c := range controls {
				val := c.Value
				if val == "" {
					val = c.Text
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Tag, c.Type, c.ID, c.Name, val)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Page to open (defaults to portal.url)")
	cmd.Flags().StringVar(&dir, "dir", "", "Where to save the dump (defaults to browser.debug_dir, then ./debug)")
	return cmd
}
