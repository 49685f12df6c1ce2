package cluster

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/majorfi/timeline-intake/pkg/utils"
)

/**************************************************************************************************
** SplitResult records the outcome of one auto-split attempt for user feedback.
**************************************************************************************************/
type SplitResult struct {
	ClusterID  string   // Cluster the split was attempted on
	GapMinutes int      // Gap threshold actually used
	Buckets    int      // Number of buckets the gap walk produced
	Split      bool     // False when no real gap was found (no-op)
	NewIDs     []string // IDs of the replacement clusters, in order
}

/**************************************************************************************************
** AutoSplit partitions one cluster further by time gap.
**
** The algorithm:
** 1. Sorts the cluster's items by representative timestamp
** 2. Walks the sorted sequence, starting a new bucket whenever the gap to the previous item is
**    greater than or equal to gapMinutes
** 3. With a single bucket, returns the original list untouched (idempotent no-op)
** 4. Otherwise returns a new list where the cluster is replaced, in place, by one cluster per
**    bucket, each inheriting stage and event type
**
** A bucket's date key is the day of its earliest item. Buckets are not split again at midnight.
**
** @param clusters - Current cluster list (not modified)
** @param index - Position of the cluster to split
** @param gapMinutes - Gap threshold; non-positive values fall back to the default
** @return []utils.TCluster - The resulting cluster list
** @return SplitResult - What happened, for feedback
** @return error - When index is out of range
**************************************************************************************************/
func AutoSplit(clusters []utils.TCluster, index int, gapMinutes int) ([]utils.TCluster, SplitResult, error) {
	if index < 0 || index >= len(clusters) {
		return clusters, SplitResult{}, fmt.Errorf("cluster index %d out of range (0..%d)", index, len(clusters)-1)
	}
	if gapMinutes <= 0 {
		gapMinutes = utils.DefaultGapMinutes
	}

	original := clusters[index]
	result := SplitResult{ClusterID: original.ID, GapMinutes: gapMinutes}

	sorted := append([]utils.TClusterItem(nil), original.Items...)
	sortByTime(sorted)

	buckets := splitByGap(sorted, time.Duration(gapMinutes)*time.Minute)
	result.Buckets = len(buckets)
	if len(buckets) <= 1 {
		return clusters, result, nil
	}

	replacement := make([]utils.TCluster, 0, len(buckets))
	for _, bucket := range buckets {
		c := utils.TCluster{
			ID:        uuid.New().String(),
			DateKey:   DateKey(bucket[0].RepresentativeTime()),
			Items:     bucket,
			Stage:     original.Stage,
			EventType: original.EventType,
		}
		replacement = append(replacement, c)
		result.NewIDs = append(result.NewIDs, c.ID)
	}

	next := make([]utils.TCluster, 0, len(clusters)-1+len(replacement))
	next = append(next, clusters[:index]...)
	next = append(next, replacement...)
	next = append(next, clusters[index+1:]...)

	result.Split = true
	return next, result, nil
}

/**************************************************************************************************
** splitByGap groups time-sorted items, starting a new group whenever consecutive items are at
** least gap apart.
**
** @param items - Items sorted by representative time
** @param gap - Minimum gap that starts a new group (inclusive)
** @return [][]utils.TClusterItem - Groups of items
**************************************************************************************************/
func splitByGap(items []utils.TClusterItem, gap time.Duration) [][]utils.TClusterItem {
	if len(items) == 0 {
		return nil
	}

	var groups [][]utils.TClusterItem
	current := []utils.TClusterItem{items[0]}

	for i := 1; i < len(items); i++ {
		diff := items[i].RepresentativeTime().Sub(items[i-1].RepresentativeTime())
		if diff >= gap {
			groups = append(groups, current)
			current = []utils.TClusterItem{items[i]}
		} else {
			current = append(current, items[i])
		}
	}

	groups = append(groups, current)
	return groups
}
