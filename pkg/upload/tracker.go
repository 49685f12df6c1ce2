package upload

import (
	"errors"
	"fmt"
	"sync"

	"github.com/majorfi/timeline-intake/pkg/utils"
)

// ErrInvalidTransition is returned when a task would leave the pending -> uploading -> done path.
var ErrInvalidTransition = errors.New("invalid upload status transition")

// maxRunningProgress is the highest progress shown before the store call has resolved.
const maxRunningProgress = 99

/**************************************************************************************************
** Tracker owns the upload tasks of one cluster and enforces their state machine:
** pending -> uploading -> completed | error. Progress only moves forward. Every accepted change
** is reported to the observer with a copy of the task, in the order the changes happen.
**************************************************************************************************/
type Tracker struct {
	mu       sync.Mutex
	tasks    []utils.TUploadTask
	observer func(utils.TUploadTask)
}

/**************************************************************************************************
** NewTracker creates one pending task per file; task i belongs to files[i] for the whole upload.
**
** @param files - Files of the cluster, in upload order
** @param observer - Optional callback receiving every task change
** @return *Tracker - Tracker with all tasks pending
**************************************************************************************************/
func NewTracker(files []utils.TFile, observer func(utils.TUploadTask)) *Tracker {
	tasks := make([]utils.TUploadTask, len(files))
	for i, f := range files {
		tasks[i] = utils.TUploadTask{Index: i, FileName: f.Name, Status: utils.UploadPending}
	}
	return &Tracker{tasks: tasks, observer: observer}
}

// Start moves task i from pending to uploading with progress 0.
func (t *Tracker) Start(i int) error {
	return t.transition(i, utils.UploadPending, func(task *utils.TUploadTask) {
		task.Status = utils.UploadUploading
		task.Progress = 0
	})
}

// Complete moves task i from uploading to completed with progress 100.
func (t *Tracker) Complete(i int) error {
	return t.transition(i, utils.UploadUploading, func(task *utils.TUploadTask) {
		task.Status = utils.UploadCompleted
		task.Progress = 100
	})
}

// Fail moves task i from uploading to error. Progress stays where it was.
func (t *Tracker) Fail(i int, message string) error {
	return t.transition(i, utils.UploadUploading, func(task *utils.TUploadTask) {
		task.Status = utils.UploadError
		task.Error = message
	})
}

/**************************************************************************************************
** Progress raises the progress of an uploading task. Values lower than the current one, and any
** call once the task has left uploading, are ignored. The value is capped at 99: only Complete
** reaches 100.
**
** @param i - Task index
** @param percent - Proposed progress
** @return bool - True when the progress changed
**************************************************************************************************/
func (t *Tracker) Progress(i int, percent int) bool {
	if percent > maxRunningProgress {
		percent = maxRunningProgress
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.tasks) {
		return false
	}
	task := &t.tasks[i]
	if task.Status != utils.UploadUploading || percent <= task.Progress {
		return false
	}
	task.Progress = percent
	t.notify(*task)
	return true
}

// Snapshot returns a copy of all tasks.
func (t *Tracker) Snapshot() []utils.TUploadTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]utils.TUploadTask(nil), t.tasks...)
}

func (t *Tracker) transition(i int, from utils.TUploadStatus, apply func(*utils.TUploadTask)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.tasks) {
		return fmt.Errorf("task %d out of range: %w", i, ErrInvalidTransition)
	}
	task := &t.tasks[i]
	if task.Status != from {
		return fmt.Errorf("task %d is %s, expected %s: %w", i, task.Status, from, ErrInvalidTransition)
	}
	apply(task)
	t.notify(*task)
	return nil
}

// notify runs under the lock, so observers see changes one at a time and in order.
func (t *Tracker) notify(task utils.TUploadTask) {
	if t.observer != nil {
		t.observer(task)
	}
}
