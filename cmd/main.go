/**************************************************************************************************
** Main entry point for the timeline intake CLI. This tool turns folders of vehicle photos into
** dated timeline events, one event per day of shooting.
**************************************************************************************************/

package main

import (
	"os"

	"github.com/spf13/cobra"
)

/**************************************************************************************************
** Application entry point. Sets up the CLI command structure using Cobra and handles command
** execution and error reporting.
**************************************************************************************************/
func main() {
	if err := CreateRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

/**************************************************************************************************
** CreateRootCommand builds the root command, its subcommands and flags.
**
** @return *cobra.Command - The root command
**************************************************************************************************/
func CreateRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "timeline-intake",
		Short: "Vehicle photo timeline intake",
		Long:  "Groups vehicle photos by capture day and publishes each day as a timeline event with its uploaded images.",
	}

	var importCmd = &cobra.Command{
		Use:   "import <path>...",
		Short: "Upload photos as timeline events",
		Long:  "Filter, cluster by day and upload the photos found under each path, creating one timeline event per cluster.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runImport,
	}
	importCmd.Flags().BoolVar(&assumeYes, "yes", false, "Confirm every cluster in bulk mode")
	importCmd.Flags().StringVar(&confirmClusters, "confirm", "", "Comma-separated clusters to submit, by index or date key (e.g. 0,2024-03-10)")
	importCmd.Flags().StringVar(&description, "description", "", "Description applied to every created event")
	importCmd.Flags().StringVar(&location, "location", "", "Location applied to every created event instead of geocoding")

	var planCmd = &cobra.Command{
		Use:   "plan <path>...",
		Short: "Show the cluster plan",
		Long:  "Filter and cluster the photos found under each path and print the resulting events without uploading.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runPlan,
	}

	var duplicatesCmd = &cobra.Command{
		Use:   "duplicates <path>...",
		Short: "List duplicate files",
		Long:  "Report files the intake would skip as duplicates or non-images, and files the vehicle already has.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDuplicates,
	}

	var eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "List the vehicle timeline",
		Long:  "Print the timeline events stored for the vehicle.",
		Args:  cobra.NoArgs,
		Run:   runEvents,
	}

	bindFlags(rootCmd)
	rootCmd.AddCommand(importCmd, planCmd, duplicatesCmd, eventsCmd)
	return rootCmd
}

/**************************************************************************************************
** bindFlags registers the persistent flags shared by every subcommand. Each one falls back to
** its environment variable when unset.
**************************************************************************************************/
func bindFlags(rootCmd *cobra.Command) {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&vehicleID, "vehicle", "", "Vehicle id (or set VEHICLE_ID env var)")
	flags.StringVar(&userID, "user", "", "Submitting user id (or set USER_ID env var)")
	flags.StringVar(&userName, "user-name", "", "Submitting user name (or set USER_NAME env var)")
	flags.StringVar(&dbPath, "db", "", "SQLite database path (or set DB_PATH env var)")
	flags.StringVar(&storageBackend, "storage", "", "Storage backend: local, s3 or minio (or set STORAGE_BACKEND env var)")
	flags.StringVar(&storageRoot, "storage-root", "", "Root directory of the local backend (or set STORAGE_ROOT env var)")
	flags.StringVar(&s3Bucket, "s3-bucket", "", "S3 bucket (or set S3_BUCKET env var)")
	flags.StringVar(&awsRegion, "aws-region", "", "AWS region (or set AWS_REGION env var)")
	flags.StringVar(&s3PublicBaseURL, "s3-public-url", "", "Public base URL of the bucket (or set S3_PUBLIC_BASE_URL env var)")
	flags.StringVar(&minioEndpoint, "minio-endpoint", "", "MinIO endpoint (or set MINIO_ENDPOINT env var)")
	flags.StringVar(&minioBucket, "minio-bucket", "", "MinIO bucket (or set MINIO_BUCKET env var)")
	flags.BoolVar(&minioUseSSL, "minio-ssl", false, "Use TLS for MinIO (or set MINIO_USE_SSL=true)")
	flags.StringVar(&geocoderURL, "geocoder-url", "", "Reverse geocoding service URL (or set GEOCODER_URL env var)")
	flags.StringVar(&gapMinutes, "split-gap", "", "Split clusters at gaps of this many minutes (or set GAP_MINUTES env var)")
	flags.BoolVar(&allowDuplicates, "allow-duplicates", false, "Keep files already selected (or set ALLOW_DUPLICATES=true)")
	flags.StringVar(&eventType, "event-type", "", "Event type: work or life (or set EVENT_TYPE env var)")
	flags.StringVar(&stage, "stage", "", "Stage label of every cluster (or set STAGE env var)")
	flags.StringVar(&category, "category", "", "Asset category (or set CATEGORY env var)")
	flags.StringVar(&titleTemplate, "title-template", "", "Event title template (or set TITLE_TEMPLATE env var)")
	flags.StringVar(&activityTable, "activity-table", "", "DynamoDB table mirroring the activity log (or set ACTIVITY_DDB_TABLE env var)")
	flags.BoolVar(&dryRun, "dry-run", false, "Plan only, upload nothing (or set DRY_RUN=true)")
	flags.BoolVar(&debugDump, "debug-dump", false, "Dump the plan and summary structures")
	flags.StringVar(&logLevel, "log-level", "", "Log level (or set LOG_LEVEL env var)")
}
