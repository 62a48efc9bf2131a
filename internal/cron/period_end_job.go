package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/adamzielonka/coursepath-backend/internal/grants"
	"github.com/adamzielonka/coursepath-backend/pkg/db/models"
	"github.com/adamzielonka/coursepath-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	// periodEndGrace gives late renewal webhooks a window before the sweep
	// expires a lapsed grant.
	periodEndGrace     = 6 * time.Hour
	periodEndBatchSize = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lapsedGrantLister interface {
	ListPeriodLapsed(ctx context.Context, cutoff time.Time, limit int) ([]models.AccessGrant, error)
}

type grantTriggerApplier interface {
	ApplyToGrant(ctx context.Context, grant *models.AccessGrant, trigger grants.Trigger, input grants.ApplyInput) (*grants.ApplyResult, error)
}

type PeriodEndJobParams struct {
	Logger    *logger.Logger
	Grants    lapsedGrantLister
	Applier   grantTriggerApplier
	Grace     time.Duration
	BatchSize int
}

// NewPeriodEndJob builds the sweep that expires recurring grants whose paid
// period lapsed without a renewal.
func NewPeriodEndJob(params PeriodEndJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Grants == nil {
		return nil, fmt.Errorf("grant lister required")
	}
	if params.Applier == nil {
		return nil, fmt.Errorf("trigger applier required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = periodEndGrace
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = periodEndBatchSize
	}
	return &periodEndJob{
		logg:      params.Logger,
		grants:    params.Grants,
		applier:   params.Applier,
		grace:     grace,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type periodEndJob struct {
	logg      *logger.Logger
	grants    lapsedGrantLister
	applier   grantTriggerApplier
	grace     time.Duration
	batchSize int
	now       func() time.Time
}

func (j *periodEndJob) Name() string { return "grant-period-end" }

func (j *periodEndJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)

	lapsed, err := j.grants.ListPeriodLapsed(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("list lapsed grants: %w", err)
	}

	var expired, skipped, failed int
	var errs error
	for i := range lapsed {
		grant := lapsed[i]
		result, err := j.applier.ApplyToGrant(ctx, &grant, grants.TriggerPeriodEnded, grants.ApplyInput{})
		if err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("grant %s: %w", grant.ID, err))
			continue
		}
		if result.Applied {
			expired++
		} else {
			// A renewal webhook beat the sweep to this row.
			skipped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"matched": len(lapsed),
		"expired": expired,
		"skipped": skipped,
		"failed":  failed,
	})
	j.logg.Info(logCtx, "grant period end sweep complete")

	if errs != nil {
		return fmt.Errorf("period end sweep: %d of %d grants failed: %w", failed, len(lapsed), errs)
	}
	return nil
}
