/**************************************************************************************************
** Events command: lists the timeline of a vehicle as stored in the local database.
**************************************************************************************************/

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/majorfi/timeline-intake/pkg/store"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func runEvents(cmd *cobra.Command, args []string) {
	logger := loadEnv()
	if err := listTimeline(cmd.Context(), logger, os.Stdout); err != nil {
		logger.Fatal(err)
	}
}

/**************************************************************************************************
** listTimeline prints the configured vehicle's events by date with their photo counts, then
** marks the primary image.
**************************************************************************************************/
func listTimeline(ctx context.Context, logger *logrus.Logger, out io.Writer) error {
	if vehicleID == "" {
		return fmt.Errorf("VEHICLE_ID is not set")
	}

	db, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListEvents(ctx, vehicleID)
	if err != nil {
		return err
	}
	for _, event := range events {
		fmt.Fprintf(out, "%s %-40s %s %d/%d photo(s)\n",
			event.Date, event.Title, event.EventType,
			event.Metadata.UploadedImageCount, event.Metadata.ImageCount)
	}

	assets, err := db.ListAssets(ctx, vehicleID)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if asset.IsPrimary {
			fmt.Fprintf(out, "%s %s (%s)\n", utils.Success("Primary:"), asset.FileName, asset.URL)
		}
	}
	fmt.Fprintf(out, "%d event(s), %d asset(s)\n", len(events), len(assets))
	return nil
}
