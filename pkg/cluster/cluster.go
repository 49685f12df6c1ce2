package cluster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/maruel/natural"
)

/**************************************************************************************************
** DateKey returns the calendar day of t in t's own location, so a photo keeps the date it was
** taken on where it was taken.
**************************************************************************************************/
func DateKey(t time.Time) string {
	return t.Format(utils.DateKeyFormat)
}

/**************************************************************************************************
** Build partitions the accepted items into date-keyed clusters.
**
** The algorithm:
** 1. Computes each item's representative timestamp (capture time, else modification time)
** 2. Groups items sharing a calendar day into one cluster
** 3. Orders items inside a cluster by time, then natural file name
** 4. Orders clusters by date key ascending
**
** New clusters get the default stage and event type.
**
** @param items - Accepted files with their metadata
** @return []utils.TCluster - Clusters covering exactly the given items
**************************************************************************************************/
func Build(items []utils.TClusterItem) []utils.TCluster {
	byDate := make(map[string][]utils.TClusterItem)
	for _, item := range items {
		key := DateKey(item.RepresentativeTime())
		byDate[key] = append(byDate[key], item)
	}

	keys := make([]string, 0, len(byDate))
	for key := range byDate {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	clusters := make([]utils.TCluster, 0, len(keys))
	for _, key := range keys {
		members := byDate[key]
		sortByTime(members)
		clusters = append(clusters, utils.TCluster{
			ID:        uuid.New().String(),
			DateKey:   key,
			Items:     members,
			Stage:     utils.DefaultStage,
			EventType: utils.DefaultEventType,
		})
	}

	return clusters
}

/**************************************************************************************************
** IsBulkMode reports whether the submission needs per-cluster confirmation rather than a single
** auto-submit.
**
** @param clusters - Current cluster list
** @param totalFiles - Number of accepted files
** @return bool - True when there is more than one cluster or more than 50 files
**************************************************************************************************/
func IsBulkMode(clusters []utils.TCluster, totalFiles int) bool {
	return len(clusters) > 1 || totalFiles > utils.BulkModeThreshold
}

/**************************************************************************************************
** NormalizeGap parses a user-supplied gap in minutes. Anything that is not a positive integer
** falls back to the default of 60.
**************************************************************************************************/
func NormalizeGap(raw string) int {
	gap, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || gap <= 0 {
		return utils.DefaultGapMinutes
	}
	return gap
}

/**************************************************************************************************
** Items flattens a cluster list back into its items, in cluster order.
**************************************************************************************************/
func Items(clusters []utils.TCluster) []utils.TClusterItem {
	var items []utils.TClusterItem
	for _, c := range clusters {
		items = append(items, c.Items...)
	}
	return items
}

/**************************************************************************************************
** Validate checks that the clusters form a disjoint partition covering exactly the accepted
** files, comparing identity keys as multisets.
**
** @param clusters - Cluster list to check
** @param accepted - Files accepted by the intake filter
** @return error - Description of the mismatch, nil when the partition holds
**************************************************************************************************/
func Validate(clusters []utils.TCluster, accepted []utils.TFile) error {
	clustered := make([]string, 0, len(accepted))
	for _, item := range Items(clusters) {
		clustered = append(clustered, item.File.IdentityKey())
	}
	expected := make([]string, 0, len(accepted))
	for _, file := range accepted {
		expected = append(expected, file.IdentityKey())
	}

	if !utils.AreArraysEqual(clustered, expected) {
		return fmt.Errorf("clusters hold %d files but %d were accepted, or the sets differ", len(clustered), len(expected))
	}
	for i, c := range clusters {
		if len(c.Items) == 0 {
			return fmt.Errorf("cluster %d (%s) is empty", i, c.DateKey)
		}
	}
	return nil
}

/**************************************************************************************************
** sortByTime orders items by representative timestamp, breaking ties by natural file name order
** so IMG_2 sorts before IMG_10.
**************************************************************************************************/
func sortByTime(items []utils.TClusterItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].RepresentativeTime(), items[j].RepresentativeTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return natural.Less(items[i].File.Name, items[j].File.Name)
	})
}
