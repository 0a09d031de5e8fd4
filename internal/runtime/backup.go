package runtime

import (
	"context"
	"time"

	"github.com/aretw0/umlsync/pkg/domain"
)

// DefaultBackupInterval is used when StartAutoBackup gets a non-positive interval.
const DefaultBackupInterval = time.Minute

// BackupSink persists an export.
type BackupSink func(ctx context.Context, data *domain.Export) error

type backupLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartAutoBackup saves Export() to sink every interval until ctx is done,
// StopAutoBackup is called or the engine is destroyed. A running loop is replaced.
func (e *Engine) StartAutoBackup(ctx context.Context, sink BackupSink, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultBackupInterval
	}
	e.StopAutoBackup()

	ctx, cancel := context.WithCancel(ctx)
	loop := &backupLoop{cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.backup = loop
	e.mu.Unlock()

	go func() {
		defer close(loop.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sink(ctx, e.Export()); err != nil {
					e.logger.Error("auto-backup failed", "error", err)
					e.telemetry.CaptureError(err, "op", "backup")
					continue
				}
				e.logger.Debug("auto-backup saved")
			}
		}
	}()
}

// StopAutoBackup stops the backup loop and waits for it to exit.
func (e *Engine) StopAutoBackup() {
	e.mu.Lock()
	loop := e.backup
	e.backup = nil
	e.mu.Unlock()

	if loop == nil {
		return
	}
	loop.cancel()
	<-loop.done
}
