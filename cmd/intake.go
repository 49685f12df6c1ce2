/**************************************************************************************************
** Import and plan commands for the timeline intake CLI. Both run intake, metadata extraction and
** clustering; import then materializes the clusters as timeline events.
**************************************************************************************************/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/majorfi/timeline-intake/pkg/cluster"
	"github.com/majorfi/timeline-intake/pkg/geocode"
	"github.com/majorfi/timeline-intake/pkg/intake"
	"github.com/majorfi/timeline-intake/pkg/materialize"
	"github.com/majorfi/timeline-intake/pkg/metadata"
	"github.com/majorfi/timeline-intake/pkg/storage"
	"github.com/majorfi/timeline-intake/pkg/store"
	"github.com/majorfi/timeline-intake/pkg/upload"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

/**************************************************************************************************
** runPlan prints the cluster plan for the given paths without uploading anything.
**
** @param cmd - Cobra command instance
** @param args - Files or directories, one selection batch each
**************************************************************************************************/
func runPlan(cmd *cobra.Command, args []string) {
	logger := loadEnv()

	_, plan, err := buildPlan(cmd.Context(), logger, args, os.Stdout)
	if err != nil {
		logger.Fatal(err)
	}
	utils.PrintClusters(os.Stdout, plan.Clusters)
	if plan.BulkMode() {
		fmt.Fprintln(os.Stdout, utils.Warning(fmt.Sprintf("Bulk mode: %d cluster(s), %d file(s). Import needs --yes or --confirm.", len(plan.Clusters), plan.TotalFiles)))
	}
	if debugDump {
		utils.Pretty(os.Stdout, plan)
	}
}

/**************************************************************************************************
** runImport runs the whole pipeline. SIGINT and SIGTERM cancel the submission between files;
** uploads that finished are still attached to their events.
**
** @param cmd - Cobra command instance
** @param args - Files or directories, one selection batch each
**************************************************************************************************/
func runImport(cmd *cobra.Command, args []string) {
	logger := loadEnv()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := importPaths(ctx, logger, args, os.Stdout)
	if err != nil {
		logger.Fatal(err)
	}
	if summary.Failed > 0 || summary.Cancelled {
		stop()
		os.Exit(1)
	}
}

/**************************************************************************************************
** buildPlan runs intake and clustering over the given paths.
**
** The algorithm:
** 1. Filters each path as one batch against the running session (dedup on name, size and
**    modification time)
** 2. Extracts metadata once per accepted file
** 3. Clusters by calendar day, applies the stage and event type overrides
** 4. Auto-splits every cluster when a gap is configured
** 5. Checks the clusters partition exactly the accepted files
**
** @param ctx - Context for metadata extraction
** @param logger - Logger instance
** @param paths - Files or directories
** @param out - Destination of the selection log in debug mode
** @return intake.Session - Accepted files and the audit log
** @return cluster.Plan - The cluster plan
** @return error - When a path cannot be read or nothing was accepted
**************************************************************************************************/
func buildPlan(ctx context.Context, logger *logrus.Logger, paths []string, out io.Writer) (intake.Session, cluster.Plan, error) {
	session := intake.Session{}
	for _, path := range paths {
		batch, err := collectBatch(path)
		if err != nil {
			return session, cluster.Plan{}, err
		}

		var entries []utils.TSelectionEntry
		session, entries = intake.Filter(session, batch, allowDuplicates)
		counts := intake.Summarize(entries)
		logger.Infof("📥 %s: %d added, %d duplicate(s), %d dropped", path, counts.Added, counts.Duplicate, counts.Dropped)
		if logger.IsLevelEnabled(logrus.DebugLevel) {
			utils.PrintSelectionLog(out, entries)
		}
	}
	if len(session.Accepted) == 0 {
		return session, cluster.Plan{}, fmt.Errorf("no image found in %v", paths)
	}

	zones, err := metadata.NewTimeZoneFinder()
	if err != nil {
		logger.Warnf("Timezone lookup disabled: %v", err)
		zones = nil
	}
	extractor := metadata.NewExifExtractor(logger, zones)
	items := make([]utils.TClusterItem, 0, len(session.Accepted))
	for _, file := range session.Accepted {
		items = append(items, utils.TClusterItem{File: file, Metadata: extractor.Extract(ctx, file)})
	}

	plan := cluster.NewPlan(items)
	plan, err = applyOverrides(plan)
	if err != nil {
		return session, plan, err
	}

	if gapMinutes != "" {
		gap := cluster.NormalizeGap(gapMinutes)
		plan = plan.SplitAll(gap)
		for _, result := range plan.History {
			if result.Split {
				logger.Infof("✂️ Split cluster %s into %d at %d minute gaps", result.ClusterID, result.Buckets, result.GapMinutes)
			}
		}
	}

	if err := cluster.Validate(plan.Clusters, session.Accepted); err != nil {
		return session, plan, err
	}
	logger.Infof("🗂️ %d file(s) in %d cluster(s)", plan.TotalFiles, len(plan.Clusters))
	return session, plan, nil
}

// applyOverrides sets the configured stage and event type on every cluster.
func applyOverrides(plan cluster.Plan) (cluster.Plan, error) {
	var err error
	for i := range plan.Clusters {
		if stage != "" {
			if plan, err = plan.WithStage(i, stage); err != nil {
				return plan, err
			}
		}
		if eventType != "" {
			parsed, ok := utils.ParseEventType(eventType)
			if !ok {
				return plan, fmt.Errorf("invalid event type '%s'", eventType)
			}
			if plan, err = plan.WithEventType(i, parsed); err != nil {
				return plan, err
			}
		}
	}
	return plan, nil
}

/**************************************************************************************************
** importPaths plans the given paths and submits the clusters. Bulk mode (several clusters or a
** large set) needs the --yes confirmation.
**
** @param ctx - Context, cancellation stops the submission between files
** @param logger - Logger instance
** @param paths - Files or directories
** @param out - Destination of the plan and the summary
** @return materialize.Summary - Per-event outcome, empty on dry run
** @return error - Configuration, planning or backend setup failure
**************************************************************************************************/
func importPaths(ctx context.Context, logger *logrus.Logger, paths []string, out io.Writer) (materialize.Summary, error) {
	if err := requireSubmitter(); err != nil {
		return materialize.Summary{}, err
	}

	_, plan, err := buildPlan(ctx, logger, paths, out)
	if err != nil {
		return materialize.Summary{}, err
	}
	utils.PrintClusters(out, plan.Clusters)

	clusters, err := confirmedClusters(plan, assumeYes, utils.SplitAndTrim(confirmClusters))
	if err != nil {
		return materialize.Summary{}, err
	}
	if skipped := len(plan.Clusters) - len(clusters); skipped > 0 {
		logger.Infof("Submitting %d of %d cluster(s), %d not confirmed", len(clusters), len(plan.Clusters), skipped)
	}
	if dryRun {
		logger.Info("Dry run, nothing submitted")
		return materialize.Summary{}, nil
	}

	db, err := store.Open(dbPath, logger)
	if err != nil {
		return materialize.Summary{}, err
	}
	defer db.Close()
	if err := db.EnsureVehicle(ctx, vehicleID); err != nil {
		return materialize.Summary{}, err
	}

	blobs, err := newBlobStore(ctx, logger)
	if err != nil {
		return materialize.Summary{}, err
	}

	orchestrator := upload.NewOrchestrator(storage.NewUploader(blobs, logger), db, logger)
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		orchestrator.OnTask(func(clusterID string, task utils.TUploadTask) {
			utils.PrintTask(out, clusterID, task)
		})
	}

	var geocoder geocode.Geocoder
	if client := geocode.NewClient(geocoderURL, logger); client != nil {
		geocoder = client
	}

	materializer, err := materialize.NewMaterializer(db, newActivityLog(ctx, logger, db), orchestrator, geocoder, titleTemplate, logger)
	if err != nil {
		return materialize.Summary{}, err
	}

	summary := materializer.Submit(ctx, materialize.Submission{
		VehicleID:   vehicleID,
		User:        utils.TUser{ID: userID, Name: userName},
		Clusters:    clusters,
		Description: description,
		Location:    location,
		Category:    category,
	})
	printSummary(out, summary)
	if debugDump {
		utils.Pretty(out, summary)
	}
	return summary, nil
}

/**************************************************************************************************
** confirmedClusters returns the clusters to submit, in plan order. A non-empty selection keeps
** only the clusters it names, by printed index or by date key (a date key names every cluster of
** that day). Without a selection every cluster is submitted, except in bulk mode where each one
** needs confirmation: confirmAll confirms them all at once.
**
** @param plan - The cluster plan
** @param confirmAll - Whether --yes was given
** @param selection - Indexes or date keys from --confirm
** @return []utils.TCluster - The confirmed clusters
** @return error - When the selection names an unknown cluster, or bulk mode has no confirmation
**************************************************************************************************/
func confirmedClusters(plan cluster.Plan, confirmAll bool, selection []string) ([]utils.TCluster, error) {
	if len(selection) == 0 {
		if plan.BulkMode() && !confirmAll {
			return nil, fmt.Errorf("%d cluster(s) and %d file(s) need confirmation, re-run with --yes or --confirm", len(plan.Clusters), plan.TotalFiles)
		}
		return plan.Clusters, nil
	}

	keep := make([]bool, len(plan.Clusters))
	for _, token := range selection {
		matched := false
		if index, err := strconv.Atoi(token); err == nil {
			if index >= 0 && index < len(plan.Clusters) {
				keep[index] = true
				matched = true
			}
		} else {
			for i, c := range plan.Clusters {
				if c.DateKey == token {
					keep[i] = true
					matched = true
				}
			}
		}
		if !matched {
			return nil, fmt.Errorf("no cluster matches '%s'", token)
		}
	}

	clusters := make([]utils.TCluster, 0, len(plan.Clusters))
	for i, c := range plan.Clusters {
		if keep[i] {
			clusters = append(clusters, c)
		}
	}
	return clusters, nil
}

/**************************************************************************************************
** newBlobStore builds the configured storage backend.
**************************************************************************************************/
func newBlobStore(ctx context.Context, logger *logrus.Logger) (storage.Store, error) {
	switch storageBackend {
	case backendS3:
		s3Store, err := storage.NewS3Store(ctx, s3Bucket, awsRegion, s3PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	case backendMinio:
		minioStore, err := storage.NewMinioStore(ctx, minioEndpoint, minioAccessKey, minioSecretKey, minioBucket, minioUseSSL, logger)
		if err != nil {
			return nil, err
		}
		return minioStore, nil
	default:
		localStore, err := storage.NewLocalStore(storageRoot)
		if err != nil {
			return nil, err
		}
		return localStore, nil
	}
}

/**************************************************************************************************
** newActivityLog returns the relational activity log, mirrored to DynamoDB when a table is
** configured. A DynamoDB setup failure keeps the relational log only.
**************************************************************************************************/
func newActivityLog(ctx context.Context, logger *logrus.Logger, db *store.Store) materialize.ActivityLogger {
	if activityTable == "" {
		return db
	}
	dynamo, err := store.NewDynamoActivityLog(ctx, activityTable, awsRegion)
	if err != nil {
		logger.Warnf("DynamoDB activity log disabled: %v", err)
		return db
	}
	return store.MultiActivityLog{db, dynamo}
}

/**************************************************************************************************
** printSummary writes one line per cluster outcome and the totals.
**************************************************************************************************/
func printSummary(w io.Writer, summary materialize.Summary) {
	for _, outcome := range summary.Outcomes {
		switch {
		case outcome.Err != nil:
			fmt.Fprintf(w, "%s %s\n", utils.Failure("✗ "+outcome.DateKey), outcome.Err)
		case outcome.AttachErr != nil:
			fmt.Fprintf(w, "%s event %s, %d/%d uploaded, %s\n", utils.Warning("! "+outcome.DateKey), outcome.EventID, outcome.Uploaded, outcome.Attempted, outcome.AttachErr)
		case outcome.Uploaded < outcome.Attempted:
			fmt.Fprintf(w, "%s event %s, %d/%d uploaded\n", utils.Warning("! "+outcome.DateKey), outcome.EventID, outcome.Uploaded, outcome.Attempted)
		default:
			fmt.Fprintf(w, "%s event %s, %d/%d uploaded\n", utils.Success("✓ "+outcome.DateKey), outcome.EventID, outcome.Uploaded, outcome.Attempted)
		}
	}

	totals := fmt.Sprintf("%d event(s) created, %d failed, %d/%d photo(s) uploaded", summary.Created, summary.Failed, summary.Uploaded, summary.Attempted)
	if summary.Cancelled {
		totals += ", cancelled"
	}
	if summary.Failed > 0 || summary.Cancelled {
		fmt.Fprintln(w, utils.Warning(totals))
	} else {
		fmt.Fprintln(w, utils.Success(totals))
	}
	if summary.PrimaryID != "" {
		fmt.Fprintf(w, "Primary image set: %s\n", summary.PrimaryID)
	}
}
