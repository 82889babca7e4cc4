package cli

import (
	"fmt"
	"io"

	"apetools/internal/ape"

	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <in.ape>",
		Short: "Report dangling, duplicate and unused labels in an APE binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, _, _, err := readAPE(args[0])
			if err != nil {
				return err
			}
			report := f.CheckReferences()
			writeReport(cmd.OutOrStdout(), report)

			if n := len(report.MissingSwitches) + len(report.DuplicateWindows) + len(report.DuplicateSwitches); n > 0 {
				return fmt.Errorf("%s: %d reference problems", args[0], n)
			}
			return nil
		},
	}
}

func refSource(ref ape.Reference) string {
	if ref.FromSwitch != 0 {
		return "switch " + ape.FormatLabel(ref.FromSwitch)
	}
	return "window " + ape.FormatLabel(ref.FromWindow)
}

func writeReport(w io.Writer, r ape.RefReport) {
	for _, ref := range r.MissingSwitches {
		fmt.Fprintf(w, "missing switch %s (%s from %s)\n", ape.FormatLabel(ref.Label), ref.Via, refSource(ref))
	}
	for _, l := range r.DuplicateWindows {
		fmt.Fprintf(w, "duplicate window %s\n", ape.FormatLabel(l))
	}
	for _, l := range r.DuplicateSwitches {
		fmt.Fprintf(w, "duplicate switch %s\n", ape.FormatLabel(l))
	}
	for _, ref := range r.ExternalWindows {
		fmt.Fprintf(w, "external window %s (%s from %s)\n", ape.FormatLabel(ref.Label), ref.Via, refSource(ref))
	}
	for _, l := range r.UnusedSwitches {
		fmt.Fprintf(w, "unused switch %s\n", ape.FormatLabel(l))
	}
}
