package upload

import (
	"context"
	"sync"
	"time"

	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
)

// defaultTick is how often the estimator advances while a store call runs.
const defaultTick = 250 * time.Millisecond

// AssetUploader sends one file to the blob store. It never returns an error: failures are
// reported in the result.
type AssetUploader interface {
	UploadAsset(ctx context.Context, vehicleID string, file utils.TFile, category string, progress func(percent int)) utils.TUploadResult
}

// AssetRecorder persists asset provenance and decides the vehicle's primary image.
type AssetRecorder interface {
	InsertAssetRecord(ctx context.Context, record utils.TAssetRecord) (utils.TAssetRecord, error)
	ClaimPrimary(ctx context.Context, vehicleID, assetID string) (bool, error)
}

/**************************************************************************************************
** PrimaryState spans one submission. The first asset recorded in the submission is offered as
** the vehicle's primary image, once; the store's atomic claim decides whether it wins.
**************************************************************************************************/
type PrimaryState struct {
	offered bool
	AssetID string // Set when this submission made an asset primary
}

// Claimed reports whether this submission set the vehicle's primary image.
func (p *PrimaryState) Claimed() bool {
	return p != nil && p.AssetID != ""
}

func (p *PrimaryState) candidate() bool {
	return p != nil && !p.offered
}

// Request is one cluster to upload against an existing event.
type Request struct {
	VehicleID string
	EventID   string
	Category  string
	Cluster   utils.TCluster
	Primary   *PrimaryState
}

// Result is the outcome of UploadCluster.
type Result struct {
	URLs      []string            // Addresses of uploaded assets, in cluster order
	Tasks     []utils.TUploadTask // Final task states, indexed like the cluster items
	Attempted int                 // Files whose upload was started
	Uploaded  int                 // Files uploaded successfully
	Cancelled bool                // True when ctx stopped the loop before the last file
}

// Failed is the number of started uploads that did not succeed.
func (r Result) Failed() int {
	return r.Attempted - r.Uploaded
}

/**************************************************************************************************
** Orchestrator uploads the files of a cluster one after the other, tracking a task per file.
** A failing file never stops the others.
**************************************************************************************************/
type Orchestrator struct {
	uploader AssetUploader
	recorder AssetRecorder
	logger   *logrus.Logger
	observer func(clusterID string, task utils.TUploadTask)
	tick     time.Duration
}

func NewOrchestrator(uploader AssetUploader, recorder AssetRecorder, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{uploader: uploader, recorder: recorder, logger: logger, tick: defaultTick}
}

// OnTask registers a callback receiving every task change, tagged with the cluster id.
func (o *Orchestrator) OnTask(observer func(clusterID string, task utils.TUploadTask)) {
	o.observer = observer
}

// SetTick changes the estimator interval; zero disables estimated progress.
func (o *Orchestrator) SetTick(tick time.Duration) {
	o.tick = tick
}

/**************************************************************************************************
** UploadCluster uploads every file of the cluster in order.
**
** The algorithm, per file:
** 1. Marks the task uploading
** 2. Calls the uploader, advancing progress from its byte callback and from the estimator
** 3. On failure marks the task error and moves on
** 4. On success marks the task completed, records the asset against the event and, for the
**    first recorded asset of the submission, claims the vehicle's primary image
**
** Cancellation is checked between files: remaining tasks stay pending, finished work is kept.
**
** @param ctx - Context, checked before each file
** @param req - Cluster, target event and submission-wide primary state
** @return Result - URLs of uploaded assets and the final task states
**************************************************************************************************/
func (o *Orchestrator) UploadCluster(ctx context.Context, req Request) Result {
	files := make([]utils.TFile, len(req.Cluster.Items))
	for i, item := range req.Cluster.Items {
		files[i] = item.File
	}

	var observer func(utils.TUploadTask)
	if o.observer != nil {
		clusterID := req.Cluster.ID
		observer = func(task utils.TUploadTask) { o.observer(clusterID, task) }
	}
	tracker := NewTracker(files, observer)

	result := Result{URLs: []string{}}
	for i, item := range req.Cluster.Items {
		if ctx.Err() != nil {
			result.Cancelled = true
			o.logger.Warnf("⏹️ Upload of cluster %s cancelled before %s (%d/%d)", req.Cluster.DateKey, item.File.Name, i, len(files))
			break
		}

		if err := tracker.Start(i); err != nil {
			o.logger.Errorf("Error starting upload of %s: %v", item.File.Name, err)
			continue
		}
		result.Attempted++

		uploaded := o.uploadWithProgress(ctx, req, i, item.File, tracker)
		if !uploaded.Success {
			_ = tracker.Fail(i, uploaded.Error)
			o.logger.WithFields(logrus.Fields{"file": item.File.Name, "error": uploaded.Error}).Warn("❌ Upload failed")
			continue
		}

		_ = tracker.Complete(i)
		result.Uploaded++
		result.URLs = append(result.URLs, uploaded.URL)
		o.logger.Debugf("✅ Uploaded %s", item.File.Name)

		// The upload happened: its record and primary claim survive a cancellation.
		o.record(context.WithoutCancel(ctx), req, item, uploaded)
	}

	result.Tasks = tracker.Snapshot()
	return result
}

// uploadWithProgress runs the store call while a ticker feeds estimated progress to the tracker.
func (o *Orchestrator) uploadWithProgress(ctx context.Context, req Request, i int, file utils.TFile, tracker *Tracker) utils.TUploadResult {
	done := make(chan struct{})
	var wg sync.WaitGroup

	if o.tick > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var estimate Estimator
			ticker := time.NewTicker(o.tick)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return
				case <-ticker.C:
					tracker.Progress(i, estimate.Next())
				}
			}
		}()
	}

	uploaded := o.uploader.UploadAsset(ctx, req.VehicleID, file, req.Category, func(percent int) {
		tracker.Progress(i, percent)
	})

	close(done)
	wg.Wait()
	return uploaded
}

/**************************************************************************************************
** record persists the asset record of a successful upload. A failing insert is logged and does
** not undo the upload: the URL stays in the result.
**************************************************************************************************/
func (o *Orchestrator) record(ctx context.Context, req Request, item utils.TClusterItem, uploaded utils.TUploadResult) {
	stored, err := o.recorder.InsertAssetRecord(ctx, utils.TAssetRecord{
		EventID:     req.EventID,
		VehicleID:   req.VehicleID,
		URL:         uploaded.URL,
		StorageKey:  uploaded.Key,
		FileName:    item.File.Name,
		ContentHash: uploaded.Hash,
		Category:    req.Category,
		Source:      utils.SourceUserUpload,
		Metadata:    item.Metadata,
	})
	if err != nil {
		o.logger.Errorf("Error recording asset %s: %v", item.File.Name, err)
		return
	}

	if !req.Primary.candidate() {
		return
	}
	won, err := o.recorder.ClaimPrimary(ctx, req.VehicleID, stored.ID)
	if err != nil {
		o.logger.Errorf("Error claiming primary image: %v", err)
		return
	}
	req.Primary.offered = true
	if won {
		req.Primary.AssetID = stored.ID
		o.logger.Infof("⭐ %s is now the primary image of vehicle %s", item.File.Name, req.VehicleID)
	}
}
