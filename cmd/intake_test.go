package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/majorfi/timeline-intake/pkg/cluster"
	"github.com/majorfi/timeline-intake/pkg/materialize"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Date keys follow the file modification time zone.
	time.Local = time.UTC
	color.NoColor = true
	os.Exit(m.Run())
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writePhoto(t *testing.T, dir, name, content string, modified time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, modified, modified))
	return path
}

func day(d, hour int) time.Time {
	return time.Date(2024, 3, d, hour, 0, 0, 0, time.UTC)
}

// twoDays lays out three photos over two days plus a text file.
func twoDays(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePhoto(t, dir, "IMG_1.jpg", "first", day(9, 10))
	writePhoto(t, dir, "IMG_2.jpg", "second", day(9, 11))
	writePhoto(t, dir, "IMG_3.jpg", "third", day(10, 15))
	writePhoto(t, dir, "notes.txt", "not a photo", day(9, 12))
	return dir
}

func configureLocalImport(t *testing.T) string {
	t.Helper()
	resetTestEnv()
	t.Cleanup(resetTestEnv)

	root := t.TempDir()
	vehicleID = "v1"
	userID = "u1"
	userName = "Sam"
	dbPath = filepath.Join(root, "timeline.db")
	storageBackend = backendLocal
	storageRoot = filepath.Join(root, "blobs")
	return root
}

func TestCollectBatch(t *testing.T) {
	dir := t.TempDir()
	writePhoto(t, dir, "a.jpg", "a", day(1, 10))
	writePhoto(t, dir, "notes.txt", "n", day(1, 10))
	writePhoto(t, dir, ".hidden.jpg", "h", day(1, 10))
	writePhoto(t, dir, ".cache/thumb.jpg", "c", day(1, 10))
	writePhoto(t, dir, "sub/b.png", "b", day(1, 10))

	batch, err := collectBatch(dir)
	require.NoError(t, err)

	var names []string
	for _, file := range batch {
		names = append(names, file.Name)
	}
	assert.Equal(t, []string{"a.jpg", "notes.txt", "b.png"}, names)
	assert.Equal(t, "image/jpeg", batch[0].MediaType)
	assert.True(t, strings.HasPrefix(batch[1].MediaType, "text/plain"))
	assert.Equal(t, "image/png", batch[2].MediaType)
	assert.Equal(t, int64(1), batch[0].Size)
	assert.True(t, batch[0].LastModified.Equal(day(1, 10)))

	single, err := collectBatch(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = collectBatch(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestBuildPlan(t *testing.T) {
	resetTestEnv()
	defer resetTestEnv()

	first := twoDays(t)
	second := t.TempDir()
	// Same name, size and modification time as a file of the first batch
	writePhoto(t, second, "IMG_1.jpg", "FIRST", day(9, 10))
	writePhoto(t, second, "IMG_4.jpg", "fourth", day(10, 16))

	stage = "paint"
	eventType = "life"
	session, plan, err := buildPlan(context.Background(), quietLogger(), []string{first, second}, io.Discard)
	require.NoError(t, err)

	assert.Len(t, session.Accepted, 4)
	assert.Len(t, session.Log, 6)
	require.Len(t, plan.Clusters, 2)
	assert.Equal(t, "2024-03-09", plan.Clusters[0].DateKey)
	assert.Len(t, plan.Clusters[0].Items, 2)
	assert.Equal(t, "2024-03-10", plan.Clusters[1].DateKey)
	assert.Len(t, plan.Clusters[1].Items, 2)
	for _, c := range plan.Clusters {
		assert.Equal(t, "paint", c.Stage)
		assert.Equal(t, utils.EventTypeLife, c.EventType)
	}
	assert.True(t, plan.BulkMode())
}

func TestBuildPlanSplitsAtGap(t *testing.T) {
	resetTestEnv()
	defer resetTestEnv()

	dir := t.TempDir()
	writePhoto(t, dir, "a.jpg", "a", day(9, 9))
	writePhoto(t, dir, "b.jpg", "b", day(9, 9).Add(20*time.Minute))
	writePhoto(t, dir, "c.jpg", "c", day(9, 14))

	_, plan, err := buildPlan(context.Background(), quietLogger(), []string{dir}, io.Discard)
	require.NoError(t, err)
	require.Len(t, plan.Clusters, 1)

	gapMinutes = "60"
	_, plan, err = buildPlan(context.Background(), quietLogger(), []string{dir}, io.Discard)
	require.NoError(t, err)
	require.Len(t, plan.Clusters, 2)
	assert.Len(t, plan.Clusters[0].Items, 2)
	assert.Len(t, plan.Clusters[1].Items, 1)
	require.Len(t, plan.History, 1)
	assert.True(t, plan.History[0].Split)
}

func TestBuildPlanWithoutImages(t *testing.T) {
	resetTestEnv()
	defer resetTestEnv()

	dir := t.TempDir()
	writePhoto(t, dir, "notes.txt", "n", day(9, 9))

	_, _, err := buildPlan(context.Background(), quietLogger(), []string{dir}, io.Discard)
	assert.ErrorContains(t, err, "no image found")
}

func TestImportPathsRequiresSubmitter(t *testing.T) {
	resetTestEnv()
	defer resetTestEnv()

	_, err := importPaths(context.Background(), quietLogger(), []string{t.TempDir()}, io.Discard)
	assert.EqualError(t, err, "VEHICLE_ID is not set")
}

func TestImportPathsBulkModeNeedsConfirmation(t *testing.T) {
	configureLocalImport(t)

	_, err := importPaths(context.Background(), quietLogger(), []string{twoDays(t)}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "re-run with --yes")
	assert.NoFileExists(t, dbPath)
}

func TestConfirmedClusters(t *testing.T) {
	threeClusters := cluster.Plan{
		Clusters: []utils.TCluster{
			{ID: "a", DateKey: "2024-03-09"},
			{ID: "b", DateKey: "2024-03-09"},
			{ID: "c", DateKey: "2024-03-10"},
		},
		TotalFiles: 3,
	}
	single := cluster.Plan{Clusters: []utils.TCluster{{ID: "a", DateKey: "2024-03-09"}}, TotalFiles: 1}

	tests := []struct {
		name          string
		plan          cluster.Plan
		confirmAll    bool
		confirm       string
		expectedIDs   []string
		errorContains string
	}{
		{name: "single cluster needs no confirmation", plan: single, expectedIDs: []string{"a"}},
		{name: "bulk mode without confirmation", plan: threeClusters, errorContains: "re-run with --yes or --confirm"},
		{name: "yes confirms every cluster", plan: threeClusters, confirmAll: true, expectedIDs: []string{"a", "b", "c"}},
		{name: "by index", plan: threeClusters, confirm: "2, 0", expectedIDs: []string{"a", "c"}},
		{name: "date key names every cluster of the day", plan: threeClusters, confirm: "2024-03-09", expectedIDs: []string{"a", "b"}},
		{name: "mixed and repeated", plan: threeClusters, confirm: "1,2024-03-10,,1", expectedIDs: []string{"b", "c"}},
		{name: "selection narrows yes", plan: threeClusters, confirmAll: true, confirm: "0", expectedIDs: []string{"a"}},
		{name: "blank selection falls back to yes", plan: threeClusters, confirmAll: true, confirm: " , ", expectedIDs: []string{"a", "b", "c"}},
		{name: "index out of range", plan: threeClusters, confirm: "3", errorContains: "no cluster matches '3'"},
		{name: "unknown date key", plan: threeClusters, confirm: "0,2024-04-01", errorContains: "no cluster matches '2024-04-01'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters, err := confirmedClusters(tt.plan, tt.confirmAll, utils.SplitAndTrim(tt.confirm))
			if tt.errorContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Empty(t, clusters)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, c := range clusters {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

func TestImportPathsConfirmedClustersOnly(t *testing.T) {
	configureLocalImport(t)
	confirmClusters = "2024-03-10"
	ctx := context.Background()

	summary, err := importPaths(ctx, quietLogger(), []string{twoDays(t)}, io.Discard)
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 1)
	assert.Equal(t, "2024-03-10", summary.Outcomes[0].DateKey)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Uploaded)

	var timeline bytes.Buffer
	require.NoError(t, listTimeline(ctx, quietLogger(), &timeline))
	assert.NotContains(t, timeline.String(), "Photo set from 2024-03-09")
	assert.Contains(t, timeline.String(), "Photo set from 2024-03-10")
}

func TestImportPathsUnknownConfirmation(t *testing.T) {
	configureLocalImport(t)
	confirmClusters = "7"

	_, err := importPaths(context.Background(), quietLogger(), []string{twoDays(t)}, io.Discard)
	assert.EqualError(t, err, "no cluster matches '7'")
	assert.NoFileExists(t, dbPath)
}

func TestImportPathsDryRun(t *testing.T) {
	configureLocalImport(t)
	assumeYes = true
	dryRun = true

	var out bytes.Buffer
	summary, err := importPaths(context.Background(), quietLogger(), []string{twoDays(t)}, &out)
	require.NoError(t, err)
	assert.Empty(t, summary.Outcomes)
	assert.Contains(t, out.String(), "2024-03-09 2 photo(s)")
	assert.NoFileExists(t, dbPath)
}

func TestImportPathsEndToEnd(t *testing.T) {
	configureLocalImport(t)
	assumeYes = true
	location = "Workshop"
	ctx := context.Background()
	photos := twoDays(t)

	var out bytes.Buffer
	summary, err := importPaths(ctx, quietLogger(), []string{photos}, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 3, summary.Uploaded)
	assert.NotEmpty(t, summary.PrimaryID)
	assert.Contains(t, out.String(), "2 event(s) created, 0 failed, 3/3 photo(s) uploaded")
	assert.Contains(t, out.String(), "Primary image set: "+summary.PrimaryID)

	var timeline bytes.Buffer
	require.NoError(t, listTimeline(ctx, quietLogger(), &timeline))
	assert.Contains(t, timeline.String(), "Photo set from 2024-03-09")
	assert.Contains(t, timeline.String(), "2/2 photo(s)")
	assert.Contains(t, timeline.String(), "Primary: IMG_1.jpg")
	assert.Contains(t, timeline.String(), "2 event(s), 3 asset(s)")

	var dupes bytes.Buffer
	report, err := scanDuplicates(ctx, quietLogger(), []string{photos}, &dupes)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Counts.Added)
	assert.Equal(t, 1, report.Counts.Dropped)
	assert.Len(t, report.Uploaded, 3)
	assert.True(t, strings.HasPrefix(report.Uploaded["IMG_3.jpg"], "file://"))
	assert.Contains(t, dupes.String(), "[STORED] IMG_2.jpg -> file://")
}

func TestScanDuplicatesWithoutDatabase(t *testing.T) {
	configureLocalImport(t)

	first := twoDays(t)
	second := t.TempDir()
	writePhoto(t, second, "IMG_1.jpg", "FIRST", day(9, 10))

	var out bytes.Buffer
	report, err := scanDuplicates(context.Background(), quietLogger(), []string{first, second}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Duplicate)
	assert.Empty(t, report.Uploaded)
	assert.Contains(t, out.String(), "[DUPLICATE] IMG_1.jpg (5 bytes)")
	assert.Contains(t, out.String(), "3 added, 1 duplicate(s), 1 dropped")
}

func TestListTimelineRequiresVehicle(t *testing.T) {
	resetTestEnv()
	defer resetTestEnv()
	assert.EqualError(t, listTimeline(context.Background(), quietLogger(), io.Discard), "VEHICLE_ID is not set")
}

func TestPrintSummary(t *testing.T) {
	summary := materialize.Summary{
		Outcomes: []materialize.EventOutcome{
			{DateKey: "2024-03-01", EventID: "e1", Attempted: 2, Uploaded: 2},
			{DateKey: "2024-03-02", EventID: "e2", Attempted: 3, Uploaded: 1},
			{DateKey: "2024-03-03", Err: errors.New("error creating event for 2024-03-03: boom")},
			{DateKey: "2024-03-04", EventID: "e4", Attempted: 1, Uploaded: 1, AttachErr: errors.New("attach failed")},
		},
		Created: 3, Failed: 1, Attempted: 6, Uploaded: 4,
	}

	var buf bytes.Buffer
	printSummary(&buf, summary)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, "✓ 2024-03-01 event e1, 2/2 uploaded", lines[0])
	assert.Equal(t, "! 2024-03-02 event e2, 1/3 uploaded", lines[1])
	assert.Equal(t, "✗ 2024-03-03 error creating event for 2024-03-03: boom", lines[2])
	assert.Equal(t, "! 2024-03-04 event e4, 1/1 uploaded, attach failed", lines[3])
	assert.Equal(t, "3 event(s) created, 1 failed, 4/6 photo(s) uploaded", lines[4])
}
