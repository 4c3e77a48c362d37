package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/castworks/processor-api/internal/database"
	"github.com/castworks/processor-api/internal/models"
	"github.com/castworks/processor-api/internal/services/jobs"
)

var processUserID uint

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <master-id>",
	Short: "Enqueue a processing job for a master audio",
	Long: `Enqueue an audio processing job for an already registered master.

The job is deduplicated against any active job for the same master, so
running this twice while the first job is still queued or in flight
returns the existing job instead of creating another.

Example:
  processor-api process 42
  processor-api process 42 --user 7`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().UintVar(&processUserID, "user", 0, "account to bill for transcription (0 = unbilled)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	masterID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid master id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	jobService := jobs.NewService(jobs.NewRepository(db.DB), cfg.Processing.RetryDelay)

	payload := models.JobPayload{"audio_id": uint(masterID)}
	if processUserID != 0 {
		payload["user_id"] = processUserID
	}

	job, err := jobService.EnqueueUniqueJob(context.Background(), models.JobTypeAudioProcessing, payload, "audio_id")
	if err != nil {
		return fmt.Errorf("enqueueing job: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d (status %s) for master %d\n", job.ID, job.Status, masterID)
	return nil
}
