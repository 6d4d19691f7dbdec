package worker

import (
	"context"

	"github.com/foliobooks/folio/pkg/changes"
	"github.com/foliobooks/folio/pkg/joblogs"
	"github.com/foliobooks/folio/pkg/jobs"
	"github.com/foliobooks/folio/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

func (w *Worker) ProcessApplyChangesJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	jlog := w.jobLogService.NewJobLogger(ctx, job.ID, log)
	jlog.Info("processing apply changes job", nil)

	var changeIDs []int
	if data, ok := job.DataParsed.(*models.JobApplyChangesData); ok {
		changeIDs = data.ChangeIDs
	}

	reporter := &jobReporter{
		ctx:        ctx,
		job:        job,
		jobService: w.jobService,
		jlog:       jlog,
	}

	summary, err := w.applier.Apply(ctx, changeIDs, reporter)
	if err != nil {
		return errors.WithStack(err)
	}

	jlog.Info("finished apply changes job", logger.Data{
		"total":     summary.Total,
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	})
	return nil
}

// jobReporter feeds applier progress into the job row and the job's log so
// pollers can follow the run.
type jobReporter struct {
	ctx        context.Context
	job        *models.Job
	jobService *jobs.Service
	jlog       *joblogs.JobLogger
}

func (r *jobReporter) Started(total int) {
	r.jlog.Info("applying changes", logger.Data{"total": total})
}

func (r *jobReporter) Item(p changes.ItemProgress) {
	data := logger.Data{
		"change_id": p.ChangeID,
		"file_id":   p.FileID,
		"current":   p.Current,
		"total":     p.Total,
	}
	switch p.Status {
	case changes.ProgressStatusError:
		r.jlog.Error("change failed", errors.New(p.Message), data)
	default:
		data["status"] = p.Status
		r.jlog.Info(p.Message, data)
	}

	// The processing event only announces the item. The job's progress moves
	// when the item reaches a terminal status.
	if p.Status == changes.ProgressStatusProcessing {
		return
	}

	if p.Total > 0 {
		r.job.Progress = p.Current * 100 / p.Total
		err := r.jobService.UpdateJob(r.ctx, r.job, jobs.UpdateJobOptions{
			Columns: []string{"progress"},
		})
		if err != nil {
			r.jlog.Warn("progress update failed", logger.Data{"err": err.Error()})
		}
	}
}

func (r *jobReporter) Completed(s changes.Summary) {
	r.job.Progress = 100
	err := r.jobService.UpdateJob(r.ctx, r.job, jobs.UpdateJobOptions{
		Columns: []string{"progress"},
	})
	if err != nil {
		r.jlog.Warn("progress update failed", logger.Data{"err": err.Error()})
	}
}
