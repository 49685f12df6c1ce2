package cluster

import (
	"fmt"

	"github.com/majorfi/timeline-intake/pkg/utils"
)

/**************************************************************************************************
** Plan is the user-adjustable working state between clustering and submission: the current
** cluster list plus the history of split attempts. Every method returns a new Plan, which keeps
** earlier values usable for undo.
**************************************************************************************************/
type Plan struct {
	Clusters   []utils.TCluster
	History    []SplitResult
	TotalFiles int
}

// NewPlan clusters the accepted items.
func NewPlan(items []utils.TClusterItem) Plan {
	return Plan{
		Clusters:   Build(items),
		TotalFiles: len(items),
	}
}

// BulkMode reports whether the plan needs per-cluster confirmation.
func (p Plan) BulkMode() bool {
	return IsBulkMode(p.Clusters, p.TotalFiles)
}

/**************************************************************************************************
** Split runs AutoSplit on one cluster and records the attempt in the history, including attempts
** that found no gap.
**************************************************************************************************/
func (p Plan) Split(index int, gapMinutes int) (Plan, SplitResult, error) {
	clusters, result, err := AutoSplit(p.Clusters, index, gapMinutes)
	if err != nil {
		return p, result, err
	}
	return Plan{
		Clusters:   clusters,
		History:    append(append([]SplitResult(nil), p.History...), result),
		TotalFiles: p.TotalFiles,
	}, result, nil
}

/**************************************************************************************************
** SplitAll attempts a split on every cluster of the plan, left to right. Clusters produced by a
** split in this pass are not split again.
**************************************************************************************************/
func (p Plan) SplitAll(gapMinutes int) Plan {
	next := p
	for i := 0; i < len(next.Clusters); i++ {
		var result SplitResult
		next, result, _ = next.Split(i, gapMinutes)
		if result.Split {
			i += result.Buckets - 1
		}
	}
	return next
}

/**************************************************************************************************
** Move reorders clusters; submission processes clusters in list order.
**************************************************************************************************/
func (p Plan) Move(from, to int) (Plan, error) {
	if from < 0 || from >= len(p.Clusters) || to < 0 || to >= len(p.Clusters) {
		return p, fmt.Errorf("cannot move cluster %d to %d: out of range (0..%d)", from, to, len(p.Clusters)-1)
	}
	clusters := append([]utils.TCluster(nil), p.Clusters...)
	moved := clusters[from]
	clusters = append(clusters[:from], clusters[from+1:]...)
	clusters = append(clusters[:to], append([]utils.TCluster{moved}, clusters[to:]...)...)
	return p.withClusters(clusters), nil
}

// WithStage replaces one cluster by a copy carrying the given stage.
func (p Plan) WithStage(index int, stage string) (Plan, error) {
	return p.replace(index, func(c utils.TCluster) utils.TCluster {
		c.Stage = stage
		return c
	})
}

// WithEventType replaces one cluster by a copy carrying the given event type.
func (p Plan) WithEventType(index int, eventType utils.TEventType) (Plan, error) {
	return p.replace(index, func(c utils.TCluster) utils.TCluster {
		c.EventType = eventType
		return c
	})
}

func (p Plan) replace(index int, change func(utils.TCluster) utils.TCluster) (Plan, error) {
	if index < 0 || index >= len(p.Clusters) {
		return p, fmt.Errorf("cluster index %d out of range (0..%d)", index, len(p.Clusters)-1)
	}
	clusters := append([]utils.TCluster(nil), p.Clusters...)
	clusters[index] = change(clusters[index])
	return p.withClusters(clusters), nil
}

func (p Plan) withClusters(clusters []utils.TCluster) Plan {
	return Plan{Clusters: clusters, History: p.History, TotalFiles: p.TotalFiles}
}
