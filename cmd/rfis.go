package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/rfidrop/internal/output"
	"github.com/tanq16/rfidrop/internal/rfi"
)

func newRfisCmd() *cobra.Command {
	var uploadType string

	cmd := &cobra.Command{
		Use:   "rfis [--type TYPE]",
		Short: "List the RFIs an archive can be uploaded against",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			types := rfi.UploadTypes()
			if uploadType != "" {
				normalized := rfi.NormalizeType(uploadType)
				if normalized == "" {
					output.PrintError(fmt.Sprintf("Unknown upload type %q (use one of %v)", uploadType, types))
					os.Exit(1)
				}
				types = []string{normalized}
			}
			for _, t := range types {
				options, _ := rfi.Options(t)
				output.PrintHeader(t)
				for _, option := range options {
					fmt.Printf("  %s %s\n", output.FInfo(fmt.Sprintf("%-9s", option.Value)), output.FDebug(option.Label))
				}
			}
		},
	}

	cmd.Flags().StringVar(&uploadType, "type", "", "Only list RFIs of this upload type")
	return cmd
}
