package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/fetcher"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/service"
	"github.com/voyagen/confsync/internal/store"
)

func importCommand() *cobra.Command {
	var rssURL string

	cmd := &cobra.Command{
		Use:   "import [file.json]",
		Short: "Import one podcast channel from a JSON file or an RSS feed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (rssURL == "") == (len(args) == 0) {
				return errors.New("pass either a JSON file or --rss, not both")
			}

			cfg, closeLog, err := setup(true)
			if err != nil {
				return err
			}
			defer closeLog()
			ctx := cmd.Context()

			var req *models.ImportRequest
			if rssURL != "" {
				req, err = fetcher.New(cfg.Fetcher.UserAgent, cfg.Fetcher.Timeout).FetchFeed(ctx, rssURL)
			} else {
				req, err = readImportFile(args[0])
			}
			if err != nil {
				return err
			}

			if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.Postgres)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer pg.Close()

			res, err := service.NewImporter(pg, clock.System{}).Import(ctx, *req)
			if err != nil {
				return err
			}
			logging.Info().
				Int64("channel_id", res.ChannelID).
				Int("episodes", res.Episodes).
				Msg("import complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&rssURL, "rss", "", "Fetch and import this RSS feed")
	return cmd
}

func readImportFile(path string) (*models.ImportRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req models.ImportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &req, nil
}
