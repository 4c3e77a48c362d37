package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/castworks/processor-api/internal/database"
	"github.com/castworks/processor-api/internal/services/audio"
)

// rotateCmd represents the rotate-cookies command
var rotateCmd = &cobra.Command{
	Use:   "rotate-cookies",
	Short: "Run one CDN cookie rotation pass",
	Long: `Mint or refresh signed CDN cookies for every packaged episode once,
then exit. The serve command runs the same pass on an interval; this
command exists for cron-style deployments and for verifying signing
configuration.`,
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)
}

func runRotate(cmd *cobra.Command, args []string) error {
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

	rotator, cookieStore, err := buildRotator(audio.NewRepository(db.DB), cfg.CDN)
	if err != nil {
		return fmt.Errorf("initializing cookie rotator: %w", err)
	}
	if rotator == nil {
		return fmt.Errorf("cdn signing not configured")
	}
	defer cookieStore.Stop()

	if err := rotator.RotateOnce(context.Background()); err != nil {
		return fmt.Errorf("rotation pass failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Cookie rotation pass complete")
	return nil
}
