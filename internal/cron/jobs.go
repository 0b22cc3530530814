package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront/pkg/logger"
)

type sweeper interface {
	Sweep(ctx context.Context) int
}

type expiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionSweepJob evicts idle buyers from the in-process registry.
type SessionSweepJob struct {
	registry sweeper
}

func NewSessionSweepJob(registry sweeper) (*SessionSweepJob, error) {
	if registry == nil {
		return nil, fmt.Errorf("session registry required")
	}
	return &SessionSweepJob{registry: registry}, nil
}

func (j *SessionSweepJob) Name() string { return "session-sweep" }

func (j *SessionSweepJob) Run(ctx context.Context) error {
	j.registry.Sweep(ctx)
	return nil
}

// SnapshotPurgeJob deletes expired cart snapshots from SQL storage. Redis expires
// its keys on its own and needs no job.
type SnapshotPurgeJob struct {
	repo expiredPurger
	logg *logger.Logger
	now  func() time.Time
}

func NewSnapshotPurgeJob(repo expiredPurger, logg *logger.Logger) (*SnapshotPurgeJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("snapshot repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &SnapshotPurgeJob{repo: repo, logg: logg, now: time.Now}, nil
}

func (j *SnapshotPurgeJob) Name() string { return "snapshot-purge" }

func (j *SnapshotPurgeJob) Run(ctx context.Context) error {
	deleted, err := j.repo.PurgeExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("purge expired snapshots: %w", err)
	}
	if deleted > 0 {
		j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "expired cart snapshots purged")
	}
	return nil
}
