package cluster

import (
	"testing"
	"time"

	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizes(clusters []utils.TCluster) []int {
	out := make([]int, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, len(c.Items))
	}
	return out
}

func TestAutoSplit(t *testing.T) {
	tests := []struct {
		name            string
		items           []utils.TClusterItem
		gap             int
		expectedBuckets int
		expectedSizes   []int
		description     string
	}{
		{
			name: "morning and afternoon sessions",
			items: []utils.TClusterItem{
				captured("a.jpg", at(9, 9, 0)),
				captured("b.jpg", at(9, 9, 10)),
				captured("c.jpg", at(9, 9, 20)),
				captured("d.jpg", at(9, 14, 0)),
				captured("e.jpg", at(9, 14, 5)),
			},
			gap:             60,
			expectedBuckets: 2,
			expectedSizes:   []int{3, 2},
			description:     "A gap of several hours splits the day in two",
		},
		{
			name: "all within gap",
			items: []utils.TClusterItem{
				captured("a.jpg", at(9, 9, 0)),
				captured("b.jpg", at(9, 9, 45)),
				captured("c.jpg", at(9, 10, 30)),
			},
			gap:             60,
			expectedBuckets: 1,
			expectedSizes:   []int{3},
			description:     "Consecutive gaps under the threshold keep one bucket",
		},
		{
			name: "gap exactly at threshold splits",
			items: []utils.TClusterItem{
				captured("a.jpg", at(9, 9, 0)),
				captured("b.jpg", at(9, 10, 0)),
			},
			gap:             60,
			expectedBuckets: 2,
			expectedSizes:   []int{1, 1},
			description:     "The comparison is inclusive",
		},
		{
			name: "gap one minute under threshold does not split",
			items: []utils.TClusterItem{
				captured("a.jpg", at(9, 9, 0)),
				captured("b.jpg", at(9, 9, 59)),
			},
			gap:             60,
			expectedBuckets: 1,
			expectedSizes:   []int{2},
		},
		{
			name:            "single file",
			items:           []utils.TClusterItem{captured("a.jpg", at(9, 9, 0))},
			gap:             60,
			expectedBuckets: 1,
			expectedSizes:   []int{1},
		},
		{
			name: "unsorted input is sorted before walking",
			items: []utils.TClusterItem{
				captured("d.jpg", at(9, 16, 0)),
				captured("a.jpg", at(9, 8, 0)),
				captured("c.jpg", at(9, 12, 0)),
				captured("b.jpg", at(9, 8, 30)),
			},
			gap:             120,
			expectedBuckets: 3,
			expectedSizes:   []int{2, 1, 1},
		},
		{
			name: "non-positive gap falls back to default",
			items: []utils.TClusterItem{
				captured("a.jpg", at(9, 9, 0)),
				captured("b.jpg", at(9, 9, 30)),
				captured("c.jpg", at(9, 11, 0)),
			},
			gap:             0,
			expectedBuckets: 2,
			expectedSizes:   []int{2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clusters := Build(tt.items)
			require.Len(t, clusters, 1)

			result, split, err := AutoSplit(clusters, 0, tt.gap)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedBuckets, split.Buckets, tt.description)
			assert.Equal(t, tt.expectedBuckets > 1, split.Split)
			assert.Equal(t, tt.expectedSizes, sizes(result))
			assert.Equal(t, clusters[0].ID, split.ClusterID)
		})
	}
}

func TestAutoSplitNoOpReturnsOriginalList(t *testing.T) {
	clusters := Build([]utils.TClusterItem{
		captured("b.jpg", at(9, 9, 30)),
		captured("a.jpg", at(9, 9, 0)),
	})

	first, result, err := AutoSplit(clusters, 0, 60)
	require.NoError(t, err)
	assert.False(t, result.Split)
	assert.Equal(t, clusters, first)

	second, result, err := AutoSplit(first, 0, 60)
	require.NoError(t, err)
	assert.False(t, result.Split)
	assert.Equal(t, first, second)
}

func TestAutoSplitReplacesInPlaceAndInherits(t *testing.T) {
	clusters := Build([]utils.TClusterItem{
		captured("x.jpg", at(1, 12, 0)),
		captured("a.jpg", at(9, 9, 0)),
		captured("b.jpg", at(9, 15, 0)),
		captured("z.jpg", at(20, 12, 0)),
	})
	require.Len(t, clusters, 3)
	clusters[1].Stage = "restoration"
	clusters[1].EventType = utils.EventTypeLife
	before := append([]utils.TCluster(nil), clusters...)

	result, split, err := AutoSplit(clusters, 1, 60)
	require.NoError(t, err)

	require.Len(t, result, 4)
	assert.Equal(t, before, clusters, "input list must not change")
	assert.Equal(t, clusters[0].ID, result[0].ID)
	assert.Equal(t, clusters[2].ID, result[3].ID)
	for _, c := range result[1:3] {
		assert.Equal(t, "restoration", c.Stage)
		assert.Equal(t, utils.EventTypeLife, c.EventType)
		assert.Equal(t, "2024-03-09", c.DateKey)
	}
	assert.Equal(t, []string{result[1].ID, result[2].ID}, split.NewIDs)
}

func TestAutoSplitBucketSpanningMidnightKeepsFirstDate(t *testing.T) {
	// Items grouped under one date key by an earlier step, e.g. a hand-assembled cluster.
	items := []utils.TClusterItem{
		captured("a.jpg", at(9, 10, 0)),
		captured("b.jpg", at(9, 23, 40)),
		captured("c.jpg", at(10, 0, 20)),
	}
	clusters := []utils.TCluster{{ID: "c1", DateKey: "2024-03-09", Items: items, Stage: utils.DefaultStage, EventType: utils.EventTypeWork}}

	result, split, err := AutoSplit(clusters, 0, 60)
	require.NoError(t, err)

	assert.Equal(t, 2, split.Buckets)
	require.Len(t, result, 2)
	assert.Equal(t, "2024-03-09", result[1].DateKey)
	assert.Len(t, result[1].Items, 2)
}

func TestAutoSplitIndexOutOfRange(t *testing.T) {
	clusters := Build([]utils.TClusterItem{captured("a.jpg", at(9, 9, 0))})

	_, _, err := AutoSplit(clusters, 1, 60)
	assert.Error(t, err)
	_, _, err = AutoSplit(clusters, -1, 60)
	assert.Error(t, err)
}

func TestAutoSplitKeepsPartition(t *testing.T) {
	var items []utils.TClusterItem
	start := at(9, 6, 0)
	for i, offset := range []int{0, 5, 70, 80, 200, 400, 401, 402} {
		items = append(items, captured(string(rune('a'+i))+".jpg", start.Add(time.Duration(offset)*time.Minute)))
	}
	clusters := Build(items)

	result, split, err := AutoSplit(clusters, 0, 60)
	require.NoError(t, err)

	assert.Equal(t, 4, split.Buckets)
	var accepted []utils.TFile
	for _, item := range items {
		accepted = append(accepted, item.File)
	}
	assert.NoError(t, Validate(result, accepted))
}
