package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

const (
	defaultWarningWindow = 14 * 24 * time.Hour
	expiryBatchSize      = 200
	warningMarkScope     = "license-expiry-warning"
)

// expiryRepository is the license storage surface the sweep needs.
type expiryRepository interface {
	ListCompletedExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.CourseLicense, error)
	ListCompletedExpiringBetween(ctx context.Context, from, to time.Time) ([]models.CourseLicense, error)
	UpdateIfStatus(ctx context.Context, id uuid.UUID, status enums.LicenseStatus, updates map[string]any) (int64, error)
}

type expiryNotifier interface {
	LicenseExpired(ctx context.Context, license *models.CourseLicense)
	LicenseExpiring(ctx context.Context, license *models.CourseLicense)
}

// warningMarks deduplicates expiry warnings across sweep cycles.
type warningMarks interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// LicenseExpiryJobParams configures the expiry sweep.
type LicenseExpiryJobParams struct {
	Logger        *logger.Logger
	Repo          expiryRepository
	Notifier      expiryNotifier
	Marks         warningMarks
	WarningWindow time.Duration
}

// NewLicenseExpiryJob constructs the job that flips lapsed licenses to
// expired and warns tenants ahead of the lapse.
func NewLicenseExpiryJob(params LicenseExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Marks == nil {
		return nil, fmt.Errorf("warning mark store required")
	}
	window := params.WarningWindow
	if window <= 0 {
		window = defaultWarningWindow
	}
	return &licenseExpiryJob{
		logg:     params.Logger,
		repo:     params.Repo,
		notifier: params.Notifier,
		marks:    params.Marks,
		window:   window,
		now:      time.Now,
	}, nil
}

type licenseExpiryJob struct {
	logg     *logger.Logger
	repo     expiryRepository
	notifier expiryNotifier
	marks    warningMarks
	window   time.Duration
	now      func() time.Time
}

func (j *licenseExpiryJob) Name() string { return "license-expiry" }

func (j *licenseExpiryJob) Run(ctx context.Context) error {
	return multierr.Combine(
		j.expireLapsed(ctx),
		j.warnExpiring(ctx),
	)
}

// expireLapsed flips completed licenses whose term has ended. The guarded
// update loses to a concurrent renewal, in which case the row is left alone.
func (j *licenseExpiryJob) expireLapsed(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.repo.ListCompletedExpiredBefore(ctx, now, expiryBatchSize)
	if err != nil {
		return fmt.Errorf("query lapsed licenses: %w", err)
	}
	expired := 0
	for i := range rows {
		lic := rows[i]
		affected, err := j.repo.UpdateIfStatus(ctx, lic.ID, enums.LicenseStatusCompleted, map[string]any{
			"status": enums.LicenseStatusExpired,
		})
		if err != nil {
			return fmt.Errorf("expire license %s: %w", lic.ID, err)
		}
		if affected == 0 {
			// Renewed or refunded between the query and the update.
			continue
		}
		lic.Status = enums.LicenseStatusExpired
		j.notifier.LicenseExpired(ctx, &lic)
		expired++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"candidates": len(rows), "expired": expired})
	j.logg.Info(logCtx, "license expiry sweep complete")
	return nil
}

// warnExpiring notifies tenants whose licenses lapse within the warning
// window. A Redis mark per license keeps hourly sweeps from re-warning.
func (j *licenseExpiryJob) warnExpiring(ctx context.Context) error {
	now := j.now().UTC()
	rows, err := j.repo.ListCompletedExpiringBetween(ctx, now, now.Add(j.window))
	if err != nil {
		return fmt.Errorf("query expiring licenses: %w", err)
	}
	warned := 0
	for i := range rows {
		lic := rows[i]
		if lic.ExpiresAt == nil {
			continue
		}
		// Keyed on license id plus term end, so a renewed license warns
		// again for its next term. TTL outlives the window.
		key := j.marks.IdempotencyKey(warningMarkScope,
			fmt.Sprintf("%s:%d", lic.ID, lic.ExpiresAt.Unix()))
		set, err := j.marks.SetNX(ctx, key, "1", j.window+24*time.Hour)
		if err != nil {
			return fmt.Errorf("mark expiry warning for %s: %w", lic.ID, err)
		}
		if !set {
			continue
		}
		j.notifier.LicenseExpiring(ctx, &lic)
		warned++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"candidates": len(rows), "warned": warned})
	j.logg.Info(logCtx, "license expiry warning sweep complete")
	return nil
}
