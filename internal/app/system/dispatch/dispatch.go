// internal/app/system/dispatch/dispatch.go

// Package dispatch hands accepted upload data to the records platform for
// asynchronous processing. It re-filters rows defensively (validation and
// submission can be invoked at different times against a session that has
// since changed), builds the uploader context, and records the accepted job.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"github.com/vespahq/uploadhub/internal/app/records"
	jobstore "github.com/vespahq/uploadhub/internal/app/store/jobs"
	"github.com/vespahq/uploadhub/internal/app/system/uploadtypes"
	"github.com/vespahq/uploadhub/internal/domain/models"
	"go.uber.org/zap"
)

// ErrNoValidRows means the defensive filter removed every row; the backend
// is never contacted in that case.
var ErrNoValidRows = errors.New("no rows with the minimal identifying fields to submit")

// ErrNoIdentity means the acting identity could not be resolved, so
// submission features are disabled.
var ErrNoIdentity = errors.New("acting identity unavailable")

// Dispatcher posts jobs to the records platform and audits them.
type Dispatcher struct {
	client *records.Client
	jobs   *jobstore.Store
	log    *zap.Logger
}

// New creates a Dispatcher.
func New(client *records.Client, jobs *jobstore.Store, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{client: client, jobs: jobs, log: logger}
}

// FilterRows drops rows lacking the minimal identifying fields for their
// type. This runs even on previously validated data.
func FilterRows(rows []models.ParsedRow, rule uploadtypes.MinimalFieldRule) []models.ParsedRow {
	out := make([]models.ParsedRow, 0, len(rows))

rows:
	for _, row := range rows {
		for _, field := range rule.Always {
			if strings.TrimSpace(row[field]) == "" {
				continue rows
			}
		}
		if len(rule.AnyOf) > 0 {
			any := false
			for _, field := range rule.AnyOf {
				if strings.TrimSpace(row[field]) != "" {
					any = true
					break
				}
			}
			if !any {
				continue rows
			}
		}
		out = append(out, row)
	}
	return out
}

// BuildContext assembles the uploader context for a submission. Exactly one
// of the acting organization and the direct organization id is populated:
// a super identity with a selection acts on the chosen organization's
// behalf, everyone else writes to their own.
func BuildContext(ident *models.Identity, acting *models.ActingOrganization) models.UploaderContext {
	uctx := models.UploaderContext{
		UserID:    ident.ID,
		UserEmail: ident.Email,
	}
	if ident.IsSuper() && acting != nil {
		uctx.IsActingForOther = true
		uctx.ActingOrganization = acting
	} else {
		uctx.DirectOrganizationID = ident.OrganizationID
	}
	return uctx
}

// Submit filters rows, posts the job, and records the receipt. It returns
// records.ErrRejected when the platform refuses the job and records.ErrNetwork
// when the round trip fails; both leave no job behind.
func (d *Dispatcher) Submit(ctx context.Context, spec uploadtypes.Spec, rows []models.ParsedRow, opts models.SubmitOptions, ident *models.Identity, acting *models.ActingOrganization) (*models.SubmissionJob, error) {
	if ident == nil {
		return nil, ErrNoIdentity
	}

	filtered := FilterRows(rows, spec.MinimalFields)
	if len(filtered) == 0 {
		return nil, ErrNoValidRows
	}
	if dropped := len(rows) - len(filtered); dropped > 0 {
		d.log.Info("dropped rows at dispatch filter",
			zap.String("upload_type", string(spec.Type)),
			zap.Int("dropped", dropped))
	}

	uctx := BuildContext(ident, acting)

	job, err := d.client.Process(ctx, spec.Endpoint, filtered, opts, uctx)
	if err != nil {
		return nil, err
	}

	rec := jobstore.Record{
		JobID:          job.JobID,
		Status:         job.Status,
		UploadType:     spec.Type,
		UserID:         ident.ID,
		UserEmail:      ident.Email,
		OrganizationID: ident.OrganizationID,
		ActingForOther: uctx.IsActingForOther,
		TotalRows:      job.TotalRows,
		NotifyEmail:    opts.NotificationEmail,
		CreatedAt:      job.CreatedAt,
	}
	if uctx.ActingOrganization != nil {
		rec.OrganizationID = uctx.ActingOrganization.OrganizationID
	}
	if d.jobs != nil {
		if err := d.jobs.Insert(ctx, rec, opts.UniversalPassword); err != nil {
			// The platform accepted the job; a failed audit write must
			// not undo that. Log and return the job anyway.
			d.log.Error("failed to record dispatched job",
				zap.String("job_id", job.JobID),
				zap.Error(err))
		}
	}

	d.log.Info("submission dispatched",
		zap.String("job_id", job.JobID),
		zap.String("upload_type", string(spec.Type)),
		zap.Int("total_rows", job.TotalRows),
		zap.Bool("acting_for_other", uctx.IsActingForOther))

	return job, nil
}
