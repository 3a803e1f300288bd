package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/lrconv/internal/config"
	"github.com/unkn0wn-root/lrconv/internal/errdef"
	"github.com/unkn0wn-root/lrconv/internal/history"
)

type historyOptions struct {
	limit      int
	projectDir string
}

func newHistoryCmd() *cobra.Command {
	opts := historyOptions{limit: 20}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), func(ctx context.Context, store *history.Store) error {
				return runHistoryList(ctx, store, opts, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of entries (0 for all)")
	cmd.Flags().StringVarP(&opts.projectDir, "project", "p", "", "only show conversions of this project directory")
	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Delete a history entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(cmd.Context(), func(ctx context.Context, store *history.Store) error {
				ok, err := store.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return errdef.New(errdef.CodeHistory, "no history entry %s", args[0])
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return err
			})
		},
	})
	return cmd
}

func withHistory(ctx context.Context, fn func(context.Context, *history.Store) error) error {
	settings, _, err := config.LoadSettings()
	if err != nil {
		return errdef.Wrap(errdef.CodeConfig, err, "load settings")
	}
	store := history.NewStore(settings.HistoryPath(), settings.History.MaxEntries)
	defer func() {
		_ = store.Close()
	}()
	return fn(ctx, store)
}

func runHistoryList(ctx context.Context, store *history.Store, opts historyOptions, out io.Writer) error {
	var (
		entries []history.Entry
		err     error
	)
	if dir := strings.TrimSpace(opts.projectDir); dir != "" {
		abs, absErr := projectDir(dir)
		if absErr != nil {
			return absErr
		}
		entries, err = store.ByProject(ctx, abs)
		if err == nil && opts.limit > 0 && len(entries) > opts.limit {
			entries = entries[:opts.limit]
		}
	} else {
		entries, err = store.Entries(ctx, opts.limit)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "no conversions recorded")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tPROJECT\tSCRIPTS\tPAGES\tREQUESTS\tWARN\tERR\tOUTPUT")
	for _, e := range entries {
		output := e.Output
		if output == "" {
			output = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			e.ID,
			e.ConvertedAt.Local().Format(time.DateTime),
			e.Project,
			len(e.Scripts),
			e.Pages,
			e.Requests,
			e.Warnings,
			e.Errors,
			output,
		)
	}
	return tw.Flush()
}
