/**************************************************************************************************
** Configuration and environment management for the timeline intake CLI.
** Handles logger configuration, environment variable loading, and global configuration state.
**************************************************************************************************/

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Global configuration variables
var vehicleID string
var userID string
var userName string
var dbPath string
var storageBackend string
var storageRoot string
var s3Bucket string
var awsRegion string
var s3PublicBaseURL string
var minioEndpoint string
var minioAccessKey string
var minioSecretKey string
var minioBucket string
var minioUseSSL bool
var geocoderURL string
var gapMinutes string
var allowDuplicates bool
var eventType string
var stage string
var category string
var description string
var location string
var titleTemplate string
var activityTable string
var dryRun bool
var assumeYes bool
var confirmClusters string
var debugDump bool
var logLevel string

// Storage backends
const (
	backendLocal = "local"
	backendS3    = "s3"
	backendMinio = "minio"
)

/**************************************************************************************************
** Configures the logger based on environment variables. Sets up the log level, format and
** destination according to LOG_LEVEL, LOG_FORMAT and LOG_FILE.
**
** @return *logrus.Logger - Configured logger instance
**************************************************************************************************/
func configureLogger() *logrus.Logger {
	return configureLoggerWithOutput(nil)
}

/**************************************************************************************************
** configureLoggerWithOutput is configureLogger with an explicit destination. A nil output means
** LOG_FILE when set and writable, stdout otherwise.
**
** @param output - Destination override, may be nil
** @return *logrus.Logger - Configured logger instance
**************************************************************************************************/
func configureLoggerWithOutput(output io.Writer) *logrus.Logger {
	logger := logrus.New()
	if output != nil {
		logger.SetOutput(output)
	}

	// Flag takes precedence over LOG_LEVEL
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level != "" {
		if parsedLevel, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsedLevel)
		} else {
			logger.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", level)
			logger.SetLevel(logrus.InfoLevel)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	if format := os.Getenv("LOG_FORMAT"); format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
			FullTimestamp:    false,
			TimestampFormat:  time.RFC3339,
		})
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" && output == nil {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Warnf("Cannot open LOG_FILE '%s', logging to stdout: %v", logFile, err)
		} else {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	}

	return logger
}

func envString(target *string, key string) {
	if *target == "" {
		*target = strings.TrimSpace(os.Getenv(key))
	}
}

func envBool(target *bool, key string) {
	if !*target {
		*target = os.Getenv(key) == "true"
	}
}

/**************************************************************************************************
** Loads environment variables and command-line flags, with flags taking precedence over env
** variables, and validates the result. Errors are returned so callers decide how to fail.
**
** @return *logrus.Logger - Configured logger instance
** @return error - First configuration problem found
**************************************************************************************************/
func loadEnvWithError() (*logrus.Logger, error) {
	_ = godotenv.Load()
	logger := configureLogger()

	envString(&vehicleID, "VEHICLE_ID")
	envString(&userID, "USER_ID")
	envString(&userName, "USER_NAME")
	envString(&dbPath, "DB_PATH")
	if dbPath == "" {
		dbPath = "timeline.db"
	}

	envString(&storageBackend, "STORAGE_BACKEND")
	storageBackend = strings.ToLower(storageBackend)
	if storageBackend == "" {
		storageBackend = backendLocal
	}
	envString(&storageRoot, "STORAGE_ROOT")
	if storageRoot == "" {
		storageRoot = "uploads"
	}
	envString(&s3Bucket, "S3_BUCKET")
	envString(&awsRegion, "AWS_REGION")
	envString(&s3PublicBaseURL, "S3_PUBLIC_BASE_URL")
	envString(&minioEndpoint, "MINIO_ENDPOINT")
	envString(&minioAccessKey, "MINIO_ACCESS_KEY")
	envString(&minioSecretKey, "MINIO_SECRET_KEY")
	envString(&minioBucket, "MINIO_BUCKET")
	envBool(&minioUseSSL, "MINIO_USE_SSL")

	switch storageBackend {
	case backendLocal:
	case backendS3:
		if s3Bucket == "" {
			return logger, fmt.Errorf("S3_BUCKET is required with the s3 storage backend")
		}
	case backendMinio:
		if minioEndpoint == "" || minioBucket == "" {
			return logger, fmt.Errorf("MINIO_ENDPOINT and MINIO_BUCKET are required with the minio storage backend")
		}
	default:
		return logger, fmt.Errorf("invalid STORAGE_BACKEND '%s', expected local, s3 or minio", storageBackend)
	}

	envString(&geocoderURL, "GEOCODER_URL")
	envString(&gapMinutes, "GAP_MINUTES")
	envBool(&allowDuplicates, "ALLOW_DUPLICATES")

	envString(&eventType, "EVENT_TYPE")
	if eventType != "" {
		if _, ok := utils.ParseEventType(eventType); !ok {
			return logger, fmt.Errorf("invalid EVENT_TYPE '%s', expected work or life", eventType)
		}
	}
	envString(&stage, "STAGE")
	envString(&category, "CATEGORY")
	envString(&titleTemplate, "TITLE_TEMPLATE")
	envString(&activityTable, "ACTIVITY_DDB_TABLE")

	envBool(&dryRun, "DRY_RUN")
	if dryRun {
		logger.Info("DRY_RUN is set to true, nothing will be uploaded")
	}
	return logger, nil
}

/**************************************************************************************************
** loadEnv is loadEnvWithError for command entry points: configuration errors are fatal.
**************************************************************************************************/
func loadEnv() *logrus.Logger {
	logger, err := loadEnvWithError()
	if err != nil {
		logger.Fatal(err)
	}
	logStartupSummary(logger)
	return logger
}

// requireSubmitter checks the settings only an import needs.
func requireSubmitter() error {
	if vehicleID == "" {
		return fmt.Errorf("VEHICLE_ID is not set")
	}
	if userID == "" {
		return fmt.Errorf("USER_ID is not set")
	}
	return nil
}

/**************************************************************************************************
** logStartupSummary logs the effective configuration once, as fields in JSON mode and as a
** compact line in text mode.
**************************************************************************************************/
func logStartupSummary(logger *logrus.Logger) {
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); ok {
		logger.WithFields(logrus.Fields{
			"vehicleId":       vehicleID,
			"storageBackend":  storageBackend,
			"dbPath":          dbPath,
			"gapMinutes":      gapMinutes,
			"allowDuplicates": allowDuplicates,
			"geocoder":        geocoderURL != "",
			"activityTable":   activityTable,
			"dryRun":          dryRun,
			"logLevel":        logger.GetLevel().String(),
		}).Info("Configuration loaded")
		return
	}
	logger.Infof("Starting with config: vehicle=%s backend=%s db=%s gap=%s duplicates=%s geocoder=%s dry-run=%s level=%s",
		vehicleID, storageBackend, dbPath, gapMinutes,
		utils.BoolToString(allowDuplicates), utils.BoolToString(geocoderURL != ""),
		utils.BoolToString(dryRun), logger.GetLevel().String())
}
