package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tanq16/rfidrop/internal/output"
	"github.com/tanq16/rfidrop/internal/scheduler"
	"github.com/tanq16/rfidrop/internal/utils"
)

func newUploadCmd() *cobra.Command {
	var uploadType, rfiID, contentType, presignedURL string

	cmd := &cobra.Command{
		Use:   "upload [FILE] [--type TYPE --rfi RFI_ID | --presigned-url URL]",
		Short: "Upload an archive as a multipart transfer, or with one PUT to a presigned URL",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			job := newJob(utils.JobTypeMultipart, args[0])
			job.ContentType = contentType
			if presignedURL != "" {
				job.JobType = utils.JobTypePresigned
				job.PresignedURL = presignedURL
			} else {
				job.UploadType = uploadType
				job.RfiID = rfiID
			}
			runJobs([]utils.DropJob{job}, 1)
		},
	}

	cmd.Flags().StringVar(&uploadType, "type", "", "Upload type (tbml or controlChecks)")
	cmd.Flags().StringVar(&rfiID, "rfi", "", "RFI the archive answers (see 'rfidrop rfis')")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type (detected from the file when empty)")
	cmd.Flags().StringVar(&presignedURL, "presigned-url", "", "Upload with a single PUT to this presigned URL")
	cmd.MarkFlagsMutuallyExclusive("presigned-url", "type")
	cmd.MarkFlagsMutuallyExclusive("presigned-url", "rfi")
	return cmd
}

// runJobs schedules jobs until done or interrupted and exits non-zero on failures
func runJobs(jobs []utils.DropJob, numWorkers int) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := scheduler.Run(ctx, jobs, numWorkers); err != nil {
		output.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
