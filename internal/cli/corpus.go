package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"apetools/internal/ape"
	"apetools/internal/catalog"
	"apetools/internal/config"
	"apetools/internal/filewalker"
	"apetools/internal/graph"
	"apetools/internal/parser"
	"apetools/internal/textutil"
	"apetools/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func apeEntries(dir string) ([]filewalker.FileEntry, error) {
	w := filewalker.NewWalker(parser.NewAPEParser(textutil.Charset{}))
	entries, err := w.Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return entries, nil
}

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Store window shapes of every APE file under a directory in PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			cs, err := charsetFromFlags(cmd, cfg)
			if err != nil {
				return err
			}
			ctx, cancel := setupContext()
			defer cancel()

			pool, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			cat := catalog.New(pool, cs)
			if err := cat.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := cat.Preload(ctx); err != nil {
				return err
			}

			entries, err := apeEntries(args[0])
			if err != nil {
				return err
			}

			wp := worker.NewPool[filewalker.FileEntry, bool](workersFromFlags(cmd, cfg), func(ctx context.Context, e filewalker.FileEntry) (bool, error) {
				f, _, data, err := readAPE(e.Path)
				if err != nil {
					return false, err
				}
				return cat.IndexFile(ctx, e.Path, data, f)
			})
			results := wp.Execute(ctx, entries)

			indexed := 0
			for _, r := range results {
				switch {
				case r.Err != nil:
					log.Error().Err(r.Err).Str("file", r.Input.Path).Msg("Failed to index file")
				case r.Output:
					indexed++
				}
			}
			failed := worker.Failed(results)
			log.Info().
				Int("files", len(entries)).
				Int("indexed", indexed).
				Int("unchanged", len(entries)-indexed-failed).
				Int("failed", failed).
				Msg("Indexing complete")
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(entries))
			}
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "Files to index at once; defaults to APE_WORKERS")
	addCharsetFlag(cmd)
	return cmd
}

func similarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <file.ape> <window>",
		Short: "List indexed windows shaped most like the given one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := ape.ParseLabel(args[1])
			if err != nil {
				return err
			}
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			limit, _ := cmd.Flags().GetInt("limit")

			cfg := config.Load()
			ctx, cancel := setupContext()
			defer cancel()

			pool, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			matches, err := catalog.New(pool, textutil.Charset{}).Similar(ctx, path, label, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range matches {
				fmt.Fprintf(out, "%.4f\t%s\t%s\t%d commands\t%s\n", m.Distance, m.Path, ape.FormatLabel(m.Label), m.Commands, m.Preview)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Number of windows to list")
	return cmd
}

func graphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <dir>",
		Short: "Load the label cross-references of every APE file under a directory into Neo4j",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx, cancel := setupContext()
			defer cancel()

			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			gb := graph.NewGraphBuilder(driver)
			if err := gb.EnsureSchema(ctx); err != nil {
				return err
			}

			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}
			entries, err := apeEntries(root)
			if err != nil {
				return err
			}

			wp := worker.NewPool[filewalker.FileEntry, struct{}](workersFromFlags(cmd, cfg), func(ctx context.Context, e filewalker.FileEntry) (struct{}, error) {
				f, _, _, err := readAPE(e.Path)
				if err != nil {
					return struct{}{}, err
				}
				return struct{}{}, gb.LoadFile(ctx, filepath.ToSlash(e.Rel), f)
			})
			results := wp.Execute(ctx, entries)
			for _, r := range results {
				if r.Err != nil {
					log.Error().Err(r.Err).Str("file", r.Input.Path).Msg("Failed to load file")
				}
			}

			failed := worker.Failed(results)
			log.Info().Int("files", len(entries)).Int("failed", failed).Msg("Graph load complete")
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(entries))
			}
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "Files to load at once; defaults to APE_WORKERS")
	return cmd
}

func unresolvedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unresolved",
		Short: "List windows and switches referred to but defined by no loaded file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx, cancel := setupContext()
			defer cancel()

			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			unresolved, err := graph.NewGraphQuerier(driver).Unresolved(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, u := range unresolved {
				fmt.Fprintf(out, "%s\t%s\t%s\n", strings.ToLower(u.Kind), ape.FormatLabel(u.Label), strings.Join(u.Files, ","))
			}
			return nil
		},
	}
}

// nodeKind maps a command line kind to its graph node label.
func nodeKind(s string) (string, error) {
	switch strings.ToLower(s) {
	case "window":
		return "Window", nil
	case "switch":
		return "Switch", nil
	}
	return "", fmt.Errorf("kind must be window or switch, got %q", s)
}

func referrersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "referrers <window|switch> <label>",
		Short: "List the windows and switches referring to a label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := nodeKind(args[0])
			if err != nil {
				return err
			}
			label, err := ape.ParseLabel(args[1])
			if err != nil {
				return err
			}

			cfg := config.Load()
			ctx, cancel := setupContext()
			defer cancel()

			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			refs, err := graph.NewGraphQuerier(driver).Referrers(ctx, kind, label)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no referrers")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, r := range refs {
				fmt.Fprintf(out, "%s\t%s %s\t%s\n", r.File, strings.ToLower(r.Kind), ape.FormatLabel(r.Label), r.Via)
			}
			return nil
		},
	}
}
