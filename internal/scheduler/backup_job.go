package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/reliability"
)

// DefaultBackupTimeout bounds one snapshot, upload and rotation cycle
const DefaultBackupTimeout = 30 * time.Minute

// BackupService creates and rotates database backups
type BackupService interface {
	CreateAndUpload(ctx context.Context) (string, error)
	RotateOldBackups(ctx context.Context, retentionDays int) (int, error)
}

var _ BackupService = (*reliability.BackupService)(nil)

// BackupJob uploads a snapshot of every database and then prunes archives
// past the retention window
type BackupJob struct {
	log           zerolog.Logger
	service       BackupService
	retentionDays int
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(service BackupService, retentionDays int) *BackupJob {
	return &BackupJob{
		log:           zerolog.Nop(),
		service:       service,
		retentionDays: retentionDays,
	}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup_databases"
}

// Run executes the backup. A failed rotation is logged but does not fail
// the job once the new archive is stored.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultBackupTimeout)
	defer cancel()

	key, err := j.service.CreateAndUpload(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Backup failed")
		return fmt.Errorf("backup failed: %w", err)
	}

	deleted, err := j.service.RotateOldBackups(ctx, j.retentionDays)
	if err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().Str("key", key).Int("rotated", deleted).Msg("Backup job completed")
	return nil
}
