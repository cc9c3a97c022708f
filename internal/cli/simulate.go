package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/me/rerender/internal/sim"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	var asJSON, strict bool

	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scenario and print what every renderer rendered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			sc, err := sim.LoadScenario(args[0])
			if err != nil {
				return err
			}

			j, err := openJournal(ctx)
			if err != nil {
				return err
			}
			var rec sim.Recorder
			if j != nil {
				defer j.Close()
				rec = j
			}

			app, err := sim.NewApp(cfg, sc, rec, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Run(ctx)
			if err != nil {
				return err
			}
			logger.Info("scenario complete", "scenario", sc.Name, "steps", len(report.Steps))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			} else {
				printReport(out, report)
			}

			if strict {
				for _, s := range report.Steps {
					if s.Error != "" {
						return fmt.Errorf("step %d failed: %s", s.Index, s.Error)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail if any step fails")
	return cmd
}

func printReport(w io.Writer, r *sim.Report) {
	fmt.Fprintf(w, "Scenario: %s\n", r.Scenario)

	if len(r.Steps) > 0 {
		fmt.Fprintln(w, "Steps:")
		for _, s := range r.Steps {
			status := "ok"
			switch {
			case s.InfiniteInvalidation:
				status = "infinite invalidation: " + s.Error
			case s.Error != "":
				status = "error: " + s.Error
			}
			fmt.Fprintf(w, "  %d  rev %-4d  %s\n", s.Index, s.Revision, status)
		}
	}

	fmt.Fprintln(w, "Renderers:")
	for _, info := range r.Renderers {
		state := "active"
		switch {
		case info.Destroyed:
			state = "destroyed"
		case !info.Registered:
			state = "idle"
		}
		fmt.Fprintf(w, "  %s (%s)  passes %d  sweeps %d  visits %d  faults %d\n",
			info.ID, state, info.Stats.Passes, info.Stats.Sweeps, info.Stats.Visits, info.Stats.Faults)
		for _, root := range info.Roots {
			fmt.Fprintf(w, "    %s [%s] renders %d\n", root.ID, root.Phase, root.Renders)
			for _, line := range root.Output {
				fmt.Fprintf(w, "      | %s\n", line)
			}
			if root.Fault != "" {
				fmt.Fprintf(w, "      ! %s\n", strings.TrimSpace(root.Fault))
			}
		}
	}
}
