package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/rfidrop/internal/output"
	"github.com/tanq16/rfidrop/internal/rfi"
	"github.com/tanq16/rfidrop/internal/utils"
	"gopkg.in/yaml.v3"
)

// BatchFile maps an upload type to the archives submitted under it
type BatchFile map[string][]utils.BatchEntry

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE] [OPTIONS]",
		Short: "Upload multiple archives listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			batchFile, err := readBatchFile(args[0])
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			jobs := buildJobsFromBatch(batchFile)
			if len(jobs) == 0 {
				output.PrintError("No valid jobs found in the batch file")
				os.Exit(1)
			}
			runJobs(jobs, cfg.Workers)
		},
	}
	return cmd
}

func readBatchFile(path string) (BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %v", err)
	}
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %v", err)
	}
	return batchFile, nil
}

func buildJobsFromBatch(batchFile BatchFile) []utils.DropJob {
	var jobs []utils.DropJob
	for _, uploadType := range rfi.UploadTypes() {
		for section, entries := range batchFile {
			if rfi.NormalizeType(section) != uploadType {
				continue
			}
			for _, entry := range entries {
				if entry.FilePath == "" {
					output.PrintWarning(fmt.Sprintf("Warning: Empty file found in %s section, skipping...", section))
					continue
				}
				job := newJob(utils.JobTypeMultipart, entry.FilePath)
				job.UploadType = uploadType
				job.RfiID = entry.RfiID
				job.ContentType = entry.ContentType
				jobs = append(jobs, job)
			}
		}
	}
	for section := range batchFile {
		if rfi.NormalizeType(section) == "" {
			output.PrintWarning(fmt.Sprintf("Warning: Unknown upload type '%s', skipping...", section))
		}
	}
	return jobs
}
