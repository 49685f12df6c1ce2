/**************************************************************************************************
** Duplicates command implementation for the timeline intake CLI.
** Reports what the intake filter would do with a selection, and which accepted files the
** vehicle already has by content hash.
**************************************************************************************************/

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/majorfi/timeline-intake/pkg/intake"
	"github.com/majorfi/timeline-intake/pkg/storage"
	"github.com/majorfi/timeline-intake/pkg/store"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// duplicateReport is the outcome of a duplicates scan.
type duplicateReport struct {
	Counts   intake.Counts
	Uploaded map[string]string // Accepted file name -> URL of the identical stored asset
}

/**************************************************************************************************
** Main execution logic for duplicate detection.
**
** @param cmd - Cobra command instance
** @param args - Files or directories, one selection batch each
**************************************************************************************************/
func runDuplicates(cmd *cobra.Command, args []string) {
	logger := loadEnv()
	if _, err := scanDuplicates(cmd.Context(), logger, args, os.Stdout); err != nil {
		logger.Fatal(err)
	}
}

/**************************************************************************************************
** scanDuplicates filters every path as the import would and prints the full selection log.
** With a vehicle configured and an existing database, each accepted file is also hashed and
** looked up among the vehicle's stored assets.
**
** @param ctx - Context for the database lookups
** @param logger - Logger instance
** @param paths - Files or directories
** @param out - Destination of the report
** @return duplicateReport - Counts and already stored files
** @return error - When a path or the database cannot be read
**************************************************************************************************/
func scanDuplicates(ctx context.Context, logger *logrus.Logger, paths []string, out io.Writer) (duplicateReport, error) {
	report := duplicateReport{Uploaded: map[string]string{}}

	session := intake.Session{}
	for _, path := range paths {
		batch, err := collectBatch(path)
		if err != nil {
			return report, err
		}
		session, _ = intake.Filter(session, batch, allowDuplicates)
	}
	utils.PrintSelectionLog(out, session.Log)
	report.Counts = intake.Summarize(session.Log)
	fmt.Fprintf(out, "%d added, %d duplicate(s), %d dropped\n", report.Counts.Added, report.Counts.Duplicate, report.Counts.Dropped)

	if vehicleID == "" {
		return report, nil
	}
	if _, err := os.Stat(dbPath); err != nil {
		logger.Debugf("No database at %s, skipping stored asset lookup", dbPath)
		return report, nil
	}

	db, err := store.Open(dbPath, logger)
	if err != nil {
		return report, err
	}
	defer db.Close()

	for _, file := range session.Accepted {
		hash, err := storage.HashFile(file)
		if err != nil {
			logger.Warnf("Cannot hash %s: %v", file.Name, err)
			continue
		}
		url, found, err := db.FindAssetByHash(ctx, vehicleID, hash)
		if err != nil {
			return report, err
		}
		if found {
			report.Uploaded[file.Name] = url
			fmt.Fprintf(out, "%s %s -> %s\n", utils.Warning("[STORED]"), file.Name, url)
		}
	}
	return report, nil
}
