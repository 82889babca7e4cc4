package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"apetools/internal/config"
	"apetools/internal/filewalker"
	"apetools/internal/parser"
	"apetools/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// translationWalker picks the parsers for extract and apply.
func translationWalker(cmd *cobra.Command, cfg *config.Config) (*filewalker.Walker, error) {
	cs, err := charsetFromFlags(cmd, cfg)
	if err != nil {
		return nil, err
	}
	parsers := []parser.Parser{parser.NewAPEParser(cs)}
	if scripts, _ := cmd.Flags().GetBool("scripts"); scripts {
		parsers = append(parsers, parser.NewScriptParser(cs))
	}
	return filewalker.NewWalker(parsers...), nil
}

// parseAll parses entries on the pool and drops files that fail, logging
// each failure.
func parseAll(ctx context.Context, w *filewalker.Walker, entries []filewalker.FileEntry, workers int) []worker.Result[filewalker.FileEntry, *parser.ParseResult] {
	pool := worker.NewPool[filewalker.FileEntry, *parser.ParseResult](workers, func(ctx context.Context, e filewalker.FileEntry) (*parser.ParseResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return w.ParseFile(e)
	})
	results := pool.Execute(ctx, entries)
	for _, r := range results {
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("file", r.Input.Path).Msg("Failed to parse file")
		}
	}
	return results
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <dir> <out.tsv>",
		Short: "Export player-visible text from every APE file under a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			w, err := translationWalker(cmd, cfg)
			if err != nil {
				return err
			}
			ctx, cancel := setupContext()
			defer cancel()

			root, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve root path: %w", err)
			}
			entries, err := w.Walk(root)
			if err != nil {
				return fmt.Errorf("walk directory: %w", err)
			}

			var parsed []*parser.ParseResult
			for _, r := range parseAll(ctx, w, entries, workersFromFlags(cmd, cfg)) {
				if r.Err == nil {
					parsed = append(parsed, r.Output)
				}
			}

			var buf bytes.Buffer
			n, err := parser.WriteTSV(&buf, parsed, func(p string) string {
				if rel, err := filepath.Rel(root, p); err == nil {
					return filepath.ToSlash(rel)
				}
				return p
			})
			if err != nil {
				return fmt.Errorf("write TSV: %w", err)
			}
			if err := writeFileAtomic(args[1], buf.Bytes()); err != nil {
				return err
			}

			log.Info().
				Int("files", len(parsed)).
				Int("texts", n).
				Str("output", args[1]).
				Msg("Extraction complete")
			return nil
		},
	}
	cmd.Flags().Bool("scripts", false, "Also extract from .txt script sources")
	cmd.Flags().Int("workers", 0, "Files to parse at once; defaults to APE_WORKERS")
	addCharsetFlag(cmd)
	return cmd
}

func applyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <dir> <translations.tsv> <out-dir>",
		Short: "Rebuild every APE file under a directory with translated text",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			w, err := translationWalker(cmd, cfg)
			if err != nil {
				return err
			}

			tsv, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open translations: %w", err)
			}
			translations, err := parser.ReadTranslations(tsv)
			tsv.Close()
			if err != nil {
				return err
			}
			log.Info().Int("translations", len(translations)).Msg("Loaded translations")

			ctx, cancel := setupContext()
			defer cancel()

			entries, err := w.Walk(args[0])
			if err != nil {
				return fmt.Errorf("walk directory: %w", err)
			}

			outDir := args[2]
			failed := 0
			for _, r := range parseAll(ctx, w, entries, workersFromFlags(cmd, cfg)) {
				if r.Err != nil {
					failed++
					continue
				}
				data, err := r.Input.Parser.Reconstruct(r.Output, translations)
				if err != nil {
					log.Error().Err(err).Str("file", r.Input.Path).Msg("Failed to rebuild file")
					failed++
					continue
				}
				if err := writeFileAtomic(filepath.Join(outDir, r.Input.Rel), data); err != nil {
					log.Error().Err(err).Str("file", r.Input.Path).Msg("Failed to write file")
					failed++
				}
			}

			log.Info().
				Int("files", len(entries)).
				Int("failed", failed).
				Str("output", outDir).
				Msg("Apply complete")
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(entries))
			}
			return nil
		},
	}
	cmd.Flags().Bool("scripts", false, "Also rebuild .txt script sources")
	cmd.Flags().Int("workers", 0, "Files to parse at once; defaults to APE_WORKERS")
	addCharsetFlag(cmd)
	return cmd
}
