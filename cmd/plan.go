package cmd

import (
	"fmt"
	"os"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"
	"github.com/tanq16/rfidrop/internal/output"
	"github.com/tanq16/rfidrop/internal/uploaders/multipart"
	"github.com/tanq16/rfidrop/internal/utils"
)

func newPlanCmd() *cobra.Command {
	var showRanges bool

	cmd := &cobra.Command{
		Use:   "plan [FILE | SIZE]",
		Short: "Show how a file or size (like 2GiB) would be split into parts",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			size, err := resolveSize(args[0])
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			plan := multipart.PlanParts(size)
			output.PrintHeader(fmt.Sprintf("%s %s %d parts of %s", utils.FormatBytes(plan.FileSize), output.StyleSymbols["arrow"], plan.PartCount, utils.FormatBytes(plan.PartSize)))
			if showRanges {
				for _, r := range plan.Ranges {
					fmt.Printf("  %s [%d, %d) %s\n", output.FInfo(fmt.Sprintf("part %5d", r.Number)), r.Start, r.End, output.FDebug(utils.FormatBytes(r.Size())))
				}
			}
		},
	}

	cmd.Flags().BoolVar(&showRanges, "ranges", false, "List every part's byte range")
	return cmd
}

// resolveSize reads the size of an existing file, or parses a human size like 12MiB
func resolveSize(arg string) (int64, error) {
	if info, err := os.Stat(arg); err == nil {
		if info.IsDir() {
			return 0, fmt.Errorf("%s is a directory", arg)
		}
		return info.Size(), nil
	}
	size, err := units.RAMInBytes(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is neither a file nor a size: %v", arg, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("size cannot be negative")
	}
	return size, nil
}
