package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to reset test environment
func resetTestEnv() {
	envVars := []string{
		"VEHICLE_ID", "USER_ID", "USER_NAME", "DB_PATH",
		"STORAGE_BACKEND", "STORAGE_ROOT", "S3_BUCKET", "AWS_REGION", "S3_PUBLIC_BASE_URL",
		"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
		"GEOCODER_URL", "GAP_MINUTES", "ALLOW_DUPLICATES", "EVENT_TYPE", "STAGE", "CATEGORY",
		"TITLE_TEMPLATE", "ACTIVITY_DDB_TABLE", "DRY_RUN",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	}
	for _, env := range envVars {
		os.Unsetenv(env)
	}

	// Reset global variables
	vehicleID = ""
	userID = ""
	userName = ""
	dbPath = ""
	storageBackend = ""
	storageRoot = ""
	s3Bucket = ""
	awsRegion = ""
	s3PublicBaseURL = ""
	minioEndpoint = ""
	minioAccessKey = ""
	minioSecretKey = ""
	minioBucket = ""
	minioUseSSL = false
	geocoderURL = ""
	gapMinutes = ""
	allowDuplicates = false
	eventType = ""
	stage = ""
	category = ""
	description = ""
	location = ""
	titleTemplate = ""
	activityTable = ""
	dryRun = false
	assumeYes = false
	confirmClusters = ""
	debugDump = false
	logLevel = ""
}

func withEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	resetTestEnv()
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	t.Cleanup(resetTestEnv)
}

func TestLoadEnvDefaults(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := loadEnvWithError()
	require.NoError(t, err)
	assert.Equal(t, "timeline.db", dbPath)
	assert.Equal(t, backendLocal, storageBackend)
	assert.Equal(t, "uploads", storageRoot)
	assert.False(t, dryRun)
	assert.False(t, allowDuplicates)
}

func TestLoadEnvValidation(t *testing.T) {
	tests := []struct {
		name          string
		envVars       map[string]string
		errorContains string
	}{
		{
			name:    "local backend",
			envVars: map[string]string{"STORAGE_BACKEND": "LOCAL"},
		},
		{
			name:          "unknown backend",
			envVars:       map[string]string{"STORAGE_BACKEND": "ftp"},
			errorContains: "invalid STORAGE_BACKEND 'ftp'",
		},
		{
			name:          "s3 without bucket",
			envVars:       map[string]string{"STORAGE_BACKEND": "s3"},
			errorContains: "S3_BUCKET is required",
		},
		{
			name:    "s3 with bucket",
			envVars: map[string]string{"STORAGE_BACKEND": "s3", "S3_BUCKET": "photos"},
		},
		{
			name:          "minio without endpoint",
			envVars:       map[string]string{"STORAGE_BACKEND": "minio", "MINIO_BUCKET": "photos"},
			errorContains: "MINIO_ENDPOINT and MINIO_BUCKET are required",
		},
		{
			name:    "minio complete",
			envVars: map[string]string{"STORAGE_BACKEND": "minio", "MINIO_ENDPOINT": "localhost:9000", "MINIO_BUCKET": "photos"},
		},
		{
			name:          "invalid event type",
			envVars:       map[string]string{"EVENT_TYPE": "party"},
			errorContains: "invalid EVENT_TYPE 'party'",
		},
		{
			name:    "life event type",
			envVars: map[string]string{"EVENT_TYPE": "life"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envVars)

			logger, err := loadEnvWithError()
			assert.NotNil(t, logger)
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFlagsTakePrecedenceOverEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"VEHICLE_ID":       "from-env",
		"GAP_MINUTES":      "30",
		"ALLOW_DUPLICATES": "true",
		"DRY_RUN":          "true",
		"USER_ID":          "u-env",
	})

	vehicleID = "from-flag"
	gapMinutes = "90"

	_, err := loadEnvWithError()
	require.NoError(t, err)
	assert.Equal(t, "from-flag", vehicleID)
	assert.Equal(t, "90", gapMinutes)
	assert.Equal(t, "u-env", userID)
	assert.True(t, allowDuplicates)
	assert.True(t, dryRun)
}

func TestRequireSubmitter(t *testing.T) {
	withEnv(t, map[string]string{})

	assert.EqualError(t, requireSubmitter(), "VEHICLE_ID is not set")
	vehicleID = "v1"
	assert.EqualError(t, requireSubmitter(), "USER_ID is not set")
	userID = "u1"
	assert.NoError(t, requireSubmitter())
}

func TestStartupConfigurationSummary(t *testing.T) {
	tests := []struct {
		name      string
		envVars   map[string]string
		wantInLog []string
	}{
		{
			name: "text format",
			envVars: map[string]string{
				"VEHICLE_ID":  "v1",
				"GAP_MINUTES": "45",
				"DRY_RUN":     "true",
			},
			wantInLog: []string{
				"Starting with config:",
				"vehicle=v1",
				"backend=local",
				"gap=45",
				"dry-run=true",
				"level=info",
			},
		},
		{
			name: "json format",
			envVars: map[string]string{
				"VEHICLE_ID":         "v1",
				"LOG_FORMAT":         "json",
				"LOG_LEVEL":          "debug",
				"STORAGE_BACKEND":    "s3",
				"S3_BUCKET":          "photos",
				"GEOCODER_URL":       "https://nominatim.example.org",
				"ACTIVITY_DDB_TABLE": "activity",
			},
			wantInLog: []string{
				"Configuration loaded",
				`"vehicleId":"v1"`,
				`"storageBackend":"s3"`,
				`"geocoder":true`,
				`"activityTable":"activity"`,
				`"logLevel":"debug"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.envVars)

			logger, err := loadEnvWithError()
			require.NoError(t, err)

			var buf bytes.Buffer
			logger.SetOutput(&buf)
			logStartupSummary(logger)

			for _, want := range tt.wantInLog {
				assert.Contains(t, buf.String(), want, "Log should contain: %s", want)
			}
		})
	}
}

func TestLogLevelConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		envLevel    string
		flagLevel   string
		expectLevel logrus.Level
	}{
		{name: "default level", expectLevel: logrus.InfoLevel},
		{name: "env variable set", envLevel: "debug", expectLevel: logrus.DebugLevel},
		{name: "flag overrides env", envLevel: "debug", flagLevel: "warn", expectLevel: logrus.WarnLevel},
		{name: "invalid level defaults to info", envLevel: "invalid", expectLevel: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, map[string]string{})
			if tt.envLevel != "" {
				os.Setenv("LOG_LEVEL", tt.envLevel)
			}
			logLevel = tt.flagLevel

			var buf bytes.Buffer
			logger := configureLoggerWithOutput(&buf)
			assert.Equal(t, tt.expectLevel, logger.GetLevel())
			if tt.envLevel == "invalid" {
				assert.Contains(t, buf.String(), "Invalid LOG_LEVEL 'invalid'")
			}
		})
	}
}

func TestFileLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "intake.log")
	withEnv(t, map[string]string{"LOG_FILE": logFile})

	logger := configureLogger()
	logger.Info("Test message")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err, "Log file should be readable")
	assert.Contains(t, string(content), "Test message")
}

func TestFileLoggingFallback(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "missing-dir", "intake.log")
	withEnv(t, map[string]string{"LOG_FILE": logFile})

	logger := configureLogger()
	require.NotNil(t, logger)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.Info("Test after fallback")
	assert.Contains(t, buf.String(), "Test after fallback")

	_, err := os.Stat(logFile)
	assert.Error(t, err, "Log file should not exist when its directory is missing")
}
