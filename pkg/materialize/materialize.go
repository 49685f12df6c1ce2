package materialize

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/majorfi/timeline-intake/pkg/geocode"
	"github.com/majorfi/timeline-intake/pkg/upload"
	"github.com/majorfi/timeline-intake/pkg/utils"
	"github.com/sirupsen/logrus"
)

// EventStore persists timeline events.
type EventStore interface {
	CreateEvent(ctx context.Context, event utils.TTimelineEvent) (utils.TTimelineEvent, error)
	UpdateEvent(ctx context.Context, id string, patch utils.TEventPatch) error
}

// ActivityLogger is the best-effort provenance sink.
type ActivityLogger interface {
	LogActivity(ctx context.Context, entry utils.TActivityEntry) error
}

// ClusterUploader uploads the files of one cluster against an event.
type ClusterUploader interface {
	UploadCluster(ctx context.Context, req upload.Request) upload.Result
}

// Submission is one confirmed set of clusters for a vehicle.
type Submission struct {
	VehicleID   string
	User        utils.TUser
	Clusters    []utils.TCluster
	Description string // Optional, applied to every event
	Location    string // Optional, wins over geocoding
	Category    string // Asset category, DefaultCategory when empty
}

// EventOutcome is what happened to one cluster.
type EventOutcome struct {
	ClusterID string
	DateKey   string
	EventID   string // Empty when the event could not be created
	Attempted int
	Uploaded  int
	Err       error // Event creation failure; nothing else was done for the cluster
	AttachErr error // The event exists but the URL update failed
	Tasks     []utils.TUploadTask
}

// Summary aggregates a submission.
type Summary struct {
	Outcomes  []EventOutcome
	Created   int
	Failed    int
	Attempted int
	Uploaded  int
	Cancelled bool
	PrimaryID string
}

// titleData is what title templates can reference.
type titleData struct {
	Date      string
	Time      time.Time
	Stage     string
	EventType string
	Count     int
	Vehicle   string
	User      string
}

/**************************************************************************************************
** Materializer turns confirmed clusters into persisted timeline events, one per cluster, with
** their uploaded assets and provenance.
**************************************************************************************************/
type Materializer struct {
	events   EventStore
	activity ActivityLogger
	uploader ClusterUploader
	geocoder geocode.Geocoder
	logger   *logrus.Logger
	title    *template.Template
}

/**************************************************************************************************
** NewMaterializer wires the collaborators and parses the title template. Templates get the sprig
** function set, e.g. `{{ .Time | date "Jan 2, 2006" }} · {{ .Count }} photos`.
**
** @param events - Event persistence
** @param activity - Activity sink, may be nil
** @param uploader - Cluster upload orchestrator
** @param geocoder - Reverse geocoder, may be nil
** @param titleTemplate - Title template, empty for the default
** @param logger - Logger instance for output
** @return *Materializer - Ready materializer
** @return error - When the title template does not parse
**************************************************************************************************/
func NewMaterializer(events EventStore, activity ActivityLogger, uploader ClusterUploader, geocoder geocode.Geocoder, titleTemplate string, logger *logrus.Logger) (*Materializer, error) {
	if strings.TrimSpace(titleTemplate) == "" {
		titleTemplate = utils.DefaultTitleTemplate
	}
	title, err := template.New("title").Funcs(sprig.TxtFuncMap()).Parse(titleTemplate)
	if err != nil {
		return nil, fmt.Errorf("error parsing title template: %w", err)
	}
	if geocoder == nil {
		geocoder = geocode.Noop{}
	}

	return &Materializer{
		events:   events,
		activity: activity,
		uploader: uploader,
		geocoder: geocoder,
		logger:   logger,
		title:    title,
	}, nil
}

/**************************************************************************************************
** Submit materializes every cluster of the submission, in list order.
**
** For each cluster:
** 1. Builds and persists the event, which yields the id asset records point to
** 2. Uploads the cluster's files against that event
** 3. Updates the event with the uploaded URLs and the uploaded count
** 4. Logs a "created event" activity, plus "contributed photography" when anything uploaded
**
** A cluster whose event cannot be created is reported and skipped; the others go on. The primary
** image offer spans the whole submission. Cancellation stops before the next cluster.
**
** @param ctx - Context for all collaborators
** @param sub - The submission
** @return Summary - Per-cluster outcomes and totals
**************************************************************************************************/
func (m *Materializer) Submit(ctx context.Context, sub Submission) Summary {
	summary := Summary{}
	primary := &upload.PrimaryState{}

	for _, c := range sub.Clusters {
		if ctx.Err() != nil {
			summary.Cancelled = true
			m.logger.Warnf("⏹️ Submission cancelled, %d cluster(s) left unprocessed", len(sub.Clusters)-len(summary.Outcomes))
			break
		}

		outcome, cancelled := m.materialize(ctx, sub, c, primary)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Attempted += outcome.Attempted
		summary.Uploaded += outcome.Uploaded
		if outcome.Err != nil {
			summary.Failed++
		} else {
			summary.Created++
		}
		if cancelled {
			summary.Cancelled = true
		}
	}

	summary.PrimaryID = primary.AssetID
	return summary
}

func (m *Materializer) materialize(ctx context.Context, sub Submission, c utils.TCluster, primary *upload.PrimaryState) (EventOutcome, bool) {
	outcome := EventOutcome{ClusterID: c.ID, DateKey: c.DateKey}

	event := m.buildEvent(ctx, sub, c)
	created, err := m.events.CreateEvent(ctx, event)
	if err != nil {
		outcome.Err = fmt.Errorf("error creating event for %s: %w", c.DateKey, err)
		m.logger.Errorf("❌ %v", outcome.Err)
		return outcome, false
	}
	outcome.EventID = created.ID
	m.logger.WithFields(logrus.Fields{"event": created.ID, "date": c.DateKey, "files": len(c.Items)}).Info("📅 Created timeline event")

	result := m.uploader.UploadCluster(ctx, upload.Request{
		VehicleID: sub.VehicleID,
		EventID:   created.ID,
		Category:  categoryOf(sub),
		Cluster:   c,
		Primary:   primary,
	})
	outcome.Attempted = result.Attempted
	outcome.Uploaded = result.Uploaded
	outcome.Tasks = result.Tasks

	// Detached from ctx: uploads that finished are attached even when the caller cancelled.
	attachCtx := context.WithoutCancel(ctx)
	if err := m.events.UpdateEvent(attachCtx, created.ID, utils.TEventPatch{
		AssetURLs:               result.URLs,
		UploadedImageCountDelta: result.Uploaded,
	}); err != nil {
		outcome.AttachErr = fmt.Errorf("error attaching assets to event %s: %w", created.ID, err)
		m.logger.Errorf("%v", outcome.AttachErr)
	}

	m.logActivity(attachCtx, utils.TActivityEntry{
		UserID:    sub.User.ID,
		VehicleID: sub.VehicleID,
		EventID:   created.ID,
		Action:    utils.ActivityCreatedEvent,
	})
	if result.Uploaded > 0 {
		m.logActivity(attachCtx, utils.TActivityEntry{
			UserID:    sub.User.ID,
			VehicleID: sub.VehicleID,
			EventID:   created.ID,
			Action:    utils.ActivityContributedPhotography,
			Count:     result.Uploaded,
		})
	}

	if failed := result.Failed(); failed > 0 {
		m.logger.Warnf("⚠️ %s: %d of %d upload(s) failed", c.DateKey, failed, result.Attempted)
	}
	return outcome, result.Cancelled
}

/**************************************************************************************************
** buildEvent derives the event payload of a cluster.
**************************************************************************************************/
func (m *Materializer) buildEvent(ctx context.Context, sub Submission, c utils.TCluster) utils.TTimelineEvent {
	eventType := c.EventType
	if eventType == "" {
		eventType = utils.DefaultEventType
	}
	stage := c.Stage
	if stage == "" {
		stage = utils.DefaultStage
	}

	return utils.TTimelineEvent{
		VehicleID:    sub.VehicleID,
		EventType:    eventType,
		Date:         c.DateKey,
		Title:        m.renderTitle(sub, c, stage, eventType),
		Description:  sub.Description,
		LocationText: m.locationFor(ctx, sub, c),
		AssetURLs:    []string{},
		Metadata: utils.TEventMetadata{
			ImageCount: len(c.Items),
			Stage:      stage,
			Category:   categoryOf(sub),
			Contributors: []utils.TContributor{
				{UserID: sub.User.ID, Role: utils.RolePhotographer, Weight: 1},
			},
			CreatorInfo: utils.TCreatorInfo{
				UserID: sub.User.ID,
				Name:   sub.User.Name,
				Source: utils.CreatorSourceBulk,
			},
		},
		CreatedBy: sub.User.ID,
	}
}

func (m *Materializer) renderTitle(sub Submission, c utils.TCluster, stage string, eventType utils.TEventType) string {
	data := titleData{
		Date:      c.DateKey,
		Stage:     stage,
		EventType: string(eventType),
		Count:     len(c.Items),
		Vehicle:   sub.VehicleID,
		User:      sub.User.Name,
	}
	if t, err := time.Parse(utils.DateKeyFormat, c.DateKey); err == nil {
		data.Time = t
	}

	var buf bytes.Buffer
	if err := m.title.Execute(&buf, data); err != nil || strings.TrimSpace(buf.String()) == "" {
		m.logger.Debugf("title template failed for %s: %v", c.DateKey, err)
		return "Photo set from " + c.DateKey
	}
	return strings.TrimSpace(buf.String())
}

/**************************************************************************************************
** locationFor returns the form location when given, otherwise the reverse-geocoded position of the
** cluster's first GPS-tagged item that geocodes. When every attempt fails the location stays empty.
**************************************************************************************************/
func (m *Materializer) locationFor(ctx context.Context, sub Submission, c utils.TCluster) string {
	if sub.Location != "" {
		return sub.Location
	}
	for _, item := range c.Items {
		if item.Metadata.GPS == nil {
			continue
		}
		location, err := m.geocoder.ReverseGeocode(ctx, item.Metadata.GPS.Latitude, item.Metadata.GPS.Longitude)
		if err != nil {
			m.logger.Debugf("geocoding failed for %s: %v", item.File.Name, err)
			continue
		}
		return location
	}
	return ""
}

// logActivity writes an activity entry; failures are logged at debug level and dropped.
func (m *Materializer) logActivity(ctx context.Context, entry utils.TActivityEntry) {
	if m.activity == nil {
		return
	}
	if err := m.activity.LogActivity(ctx, entry); err != nil {
		m.logger.Debugf("activity %s not recorded: %v", entry.Action, err)
	}
}

func categoryOf(sub Submission) string {
	if sub.Category == "" {
		return utils.DefaultCategory
	}
	return sub.Category
}
