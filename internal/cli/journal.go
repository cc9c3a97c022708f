package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/me/rerender/internal/journal"
	"github.com/me/rerender/pkg/model"
	"github.com/spf13/cobra"
)

// openJournal opens and migrates the configured journal. It returns nil
// when journaling is disabled.
func openJournal(ctx context.Context) (*journal.SQLiteJournal, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	j, err := journal.NewSQLiteJournal(cfg.JournalPath, logger)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	logger.Debug("journal ready", "path", cfg.JournalPath)
	return j, nil
}

func newJournalCmd() *cobra.Command {
	var rendererID string
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Read the pass and fault journal",
	}
	cmd.PersistentFlags().StringVar(&rendererID, "renderer", "", "Only show records of this renderer")
	cmd.PersistentFlags().IntVar(&limit, "limit", 20, "Maximum number of records")

	listOpts := func() model.ListOptions {
		return model.ListOptions{Limit: limit, RendererID: rendererID}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "passes",
		Short: "List render passes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := requireJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer j.Close()

			passes, total, err := j.ListPasses(cmd.Context(), listOpts())
			if err != nil {
				return fmt.Errorf("list passes: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(passes) == 0 {
				fmt.Fprintln(out, "No passes found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-16s  %-10s  %-8s  %-10s  %-12s  %s\n", "ID", "RENDERER", "TRIGGER", "REVISION", "SWEEPS", "DURATION", "ERROR")
			for _, p := range passes {
				sweeps := make([]string, len(p.Sweeps))
				for i, s := range p.Sweeps {
					sweeps[i] = fmt.Sprint(len(s))
				}
				fmt.Fprintf(out, "%-6d  %-16s  %-10s  %-8d  %-10s  %-12s  %s\n",
					p.ID, p.RendererID, p.Trigger, p.Revision, strings.Join(sweeps, "/"),
					p.Duration.Round(time.Microsecond), p.Error)
			}
			if len(passes) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(passes), total)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "faults",
		Short: "List render and invalidation-cycle faults, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := requireJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer j.Close()

			faults, total, err := j.ListFaults(cmd.Context(), listOpts())
			if err != nil {
				return fmt.Errorf("list faults: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(faults) == 0 {
				fmt.Fprintln(out, "No faults found.")
				return nil
			}
			fmt.Fprintf(out, "%-6s  %-16s  %-18s  %-10s  %-5s  %s\n", "ID", "RENDERER", "KIND", "ROOT", "LOOPS", "MESSAGE")
			for _, f := range faults {
				fmt.Fprintf(out, "%-6d  %-16s  %-18s  %-10s  %-5d  %s\n",
					f.ID, f.RendererID, f.Kind, f.RootID, f.Loops, f.Message)
			}
			if len(faults) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(faults), total)
			}
			return nil
		},
	})

	return cmd
}

func requireJournal(ctx context.Context) (*journal.SQLiteJournal, error) {
	j, err := openJournal(ctx)
	if err != nil {
		return nil, err
	}
	if j == nil {
		return nil, errors.New("no journal configured; pass --journal or set journal_path")
	}
	return j, nil
}
