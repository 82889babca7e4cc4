package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"apetools/internal/ape"
	"apetools/internal/config"
	"apetools/internal/decompile"
	"apetools/internal/disasm"
	"apetools/internal/filewalker"
	"apetools/internal/parser"
	"apetools/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type outputFormat int

const (
	formatListing outputFormat = iota
	formatSource
	formatYAML
)

func (f outputFormat) ext() string {
	switch f {
	case formatSource:
		return ".txt"
	case formatYAML:
		return ".yaml"
	}
	return ".dis"
}

type disasmJob struct {
	format   outputFormat
	validate bool
	opts     disasm.Options
}

// render decodes data and renders it in the job's format.
func (j disasmJob) render(data []byte) ([]byte, error) {
	f, layout, err := ape.DecodeWithLayout(data)
	if err != nil {
		return nil, err
	}
	if j.validate {
		if err := validateEncoding(f, data); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	switch j.format {
	case formatSource:
		err = decompile.Render(&buf, f)
	case formatYAML:
		err = disasm.WriteYAML(&buf, f, layout, j.opts)
	default:
		err = disasm.Render(&buf, f, layout, j.opts)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// validateEncoding checks that re-encoding f reproduces data exactly.
func validateEncoding(f *ape.File, data []byte) error {
	again, err := f.Encode()
	if err != nil {
		return fmt.Errorf("re-encode: %w", err)
	}
	if bytes.Equal(again, data) {
		return nil
	}
	n := min(len(again), len(data))
	i := 0
	for i < n && again[i] == data[i] {
		i++
	}
	return fmt.Errorf("re-encoded file differs from the input at offset %d (%d bytes vs %d)", i, len(again), len(data))
}

func (j disasmJob) file(in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	rendered, err := j.render(data)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := writeFileAtomic(out, rendered); err != nil {
		return err
	}
	log.Debug().Str("input", in).Str("output", out).Msg("Disassembled")
	return nil
}

func (j disasmJob) dir(inDir, outDir string, workers int) error {
	ctx, cancel := setupContext()
	defer cancel()

	w := filewalker.NewWalker(parser.NewAPEParser(j.opts.Charset))
	entries, err := w.Walk(inDir)
	if err != nil {
		return fmt.Errorf("walk input directory: %w", err)
	}

	pool := worker.NewPool[filewalker.FileEntry, string](workers, func(ctx context.Context, e filewalker.FileEntry) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out := filewalker.OutputPath(outDir, e, j.format.ext())
		return out, j.file(e.Path, out)
	})
	results := pool.Execute(ctx, entries)

	failed := worker.Failed(results)
	log.Info().
		Int("files", len(entries)).
		Int("failed", failed).
		Str("output", outDir).
		Msg("Directory disassembly complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(entries))
	}
	return nil
}

func disasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <in> <out>",
		Short: "Disassemble an APE binary, or every binary under a directory with --dir",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			cs, err := charsetFromFlags(cmd, cfg)
			if err != nil {
				return err
			}

			job := disasmJob{opts: disasm.Options{Charset: cs}}
			job.validate, _ = cmd.Flags().GetBool("validate")
			src, _ := cmd.Flags().GetBool("src")
			asYAML, _ := cmd.Flags().GetBool("yaml")
			switch {
			case src && asYAML:
				return fmt.Errorf("--src and --yaml are mutually exclusive")
			case src:
				job.format = formatSource
			case asYAML:
				job.format = formatYAML
			}

			if dir, _ := cmd.Flags().GetBool("dir"); dir {
				return job.dir(args[0], args[1], workersFromFlags(cmd, cfg))
			}
			return job.file(args[0], args[1])
		},
	}
	cmd.Flags().Bool("dir", false, "Treat <in> and <out> as directories")
	cmd.Flags().Bool("validate", false, "Fail unless re-encoding reproduces the input bytes")
	cmd.Flags().Bool("src", false, "Write compilable script source instead of a listing")
	cmd.Flags().Bool("yaml", false, "Write a YAML dump instead of a listing")
	cmd.Flags().Int("workers", 0, "Files to process at once in --dir mode; defaults to APE_WORKERS")
	addCharsetFlag(cmd)
	return cmd
}

func decompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decompile <in.ape> <out.txt>",
		Short: "Decompile an APE binary into script source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			validate, _ := cmd.Flags().GetBool("validate")
			return disasmJob{format: formatSource, validate: validate}.file(args[0], args[1])
		},
	}
	cmd.Flags().Bool("validate", false, "Fail unless re-encoding reproduces the input bytes")
	return cmd
}
