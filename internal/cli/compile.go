package cli

import (
	"context"
	"fmt"
	"os"

	"apetools/internal/compiler"
	"apetools/internal/config"
	"apetools/internal/filewalker"
	"apetools/internal/parser"
	"apetools/internal/textutil"
	"apetools/internal/worker"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// optionFlags maps each boolean compiler toggle to its flag.
var optionFlags = []struct {
	name  string
	usage string
	field func(o *compiler.Options) *bool
}{
	{"legacy-top-level", "Skip text before the first # directive", func(o *compiler.Options) *bool { return &o.LegacyTopLevelDirectives }},
	{"legacy-labeled-commands", "Switch goto takes the raw rest of the line", func(o *compiler.Options) *bool { return &o.LegacyLabeledCommands }},
	{"legacy-comments", "Blank comments before tokenizing, even inside strings", func(o *compiler.Options) *bool { return &o.LegacyComments }},
	{"legacy-macros", "Textual define substitution", func(o *compiler.Options) *bool { return &o.LegacyMacros }},
	{"legacy-cam", "Read the cam name as a raw word", func(o *compiler.Options) *bool { return &o.LegacyCam }},
	{"legacy-precedence", "One precedence tier per operator", func(o *compiler.Options) *bool { return &o.LegacyPrecedence }},
	{"legacy-set-naming", "Set destination is a raw word up to '='", func(o *compiler.Options) *bool { return &o.LegacySetNaming }},
	{"allow-malformed-exprs", "Demote expression type mismatches to warnings", func(o *compiler.Options) *bool { return &o.AllowMalformedExprs }},
	{"allow-exp-floats", "Accept 1e5 style numbers", func(o *compiler.Options) *bool { return &o.AllowExpFloatSyntax }},
	{"allow-expr-escapes", "Decode escapes in expression string literals", func(o *compiler.Options) *bool { return &o.AllowEscapesInExprStrings }},
	{"allow-empty-blocks", "Accept empty condition blocks", func(o *compiler.Options) *bool { return &o.AllowEmptyConditionBlocks }},
	{"optimize", "Fold constants and drop constant conditions", func(o *compiler.Options) *bool { return &o.Optimize }},
	{"werror", "Treat warnings as errors", func(o *compiler.Options) *bool { return &o.WarningsAsErrors }},
}

func addCompilerFlags(cmd *cobra.Command) {
	defaults := compiler.Defaults()
	cmd.Flags().Bool("legacy", false, "Start from the settings that reproduce the older compiler")
	for _, f := range optionFlags {
		cmd.Flags().Bool(f.name, *f.field(&defaults), f.usage)
	}
	cmd.Flags().Int("hash", -1, fmt.Sprintf("Inline switch hash to use instead of hashing the file name (0-%d)", compiler.MaxInlineSwitchHash))
}

// optionsFromFlags starts from the native or legacy settings and applies
// only the toggles given on the command line.
func optionsFromFlags(cmd *cobra.Command) (compiler.Options, error) {
	opts := compiler.Defaults()
	if legacy, _ := cmd.Flags().GetBool("legacy"); legacy {
		opts = compiler.LegacyOptions()
	}
	for _, f := range optionFlags {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetBool(f.name)
		if err != nil {
			return compiler.Options{}, err
		}
		*f.field(&opts) = v
	}

	hash, _ := cmd.Flags().GetInt("hash")
	if hash >= 0 {
		opts.UseInlineSwitchHash = true
		opts.InlineSwitchHash = uint32(hash)
	}
	return opts, opts.Validate()
}

func compileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <in.txt> <out.ape>",
		Short: "Compile a script source into an APE binary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}
			return compileFile(args[0], args[1], opts)
		},
	}
	addCompilerFlags(cmd)
	return cmd
}

func compileFile(in, out string, opts compiler.Options) error {
	src, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}
	opts.InputFileName = in

	f, err := compiler.Compile(src, opts, newLogSink())
	if err != nil {
		return err
	}
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := writeFileAtomic(out, data); err != nil {
		return err
	}

	log.Info().
		Str("input", in).
		Str("output", out).
		Int("windows", len(f.Windows)).
		Int("switches", len(f.Switches)).
		Msg("Compiled")
	return nil
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <in-dir> <out-dir>",
		Short: "Compile every .txt script under a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := optionsFromFlags(cmd)
			if err != nil {
				return err
			}
			cfg := config.Load()
			return runBatch(args[0], args[1], opts, workersFromFlags(cmd, cfg))
		},
	}
	addCompilerFlags(cmd)
	cmd.Flags().Int("workers", 0, "Files to compile at once; defaults to APE_WORKERS")
	return cmd
}

func runBatch(inDir, outDir string, opts compiler.Options, workers int) error {
	ctx, cancel := setupContext()
	defer cancel()

	w := filewalker.NewWalker(parser.NewScriptParser(textutil.Charset{}))
	entries, err := w.Walk(inDir)
	if err != nil {
		return fmt.Errorf("walk input directory: %w", err)
	}

	pool := worker.NewPool[filewalker.FileEntry, string](workers, func(ctx context.Context, e filewalker.FileEntry) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out := filewalker.OutputPath(outDir, e, ".ape")
		return out, compileFile(e.Path, out, opts)
	})
	results := pool.Execute(ctx, entries)

	failed := worker.Failed(results)
	log.Info().
		Int("files", len(entries)).
		Int("failed", failed).
		Str("output", outDir).
		Msg("Batch compile complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed to compile", failed, len(entries))
	}
	return nil
}
