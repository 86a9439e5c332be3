package media

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// deleteTimeout bounds a single background deletion.
const deleteTimeout = 30 * time.Second

// Deleter removes assets off the request path.
// Failures are logged and never reach the caller of Enqueue.
type Deleter struct {
	host   Host
	logger *slog.Logger
	queue  chan string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDeleter starts a worker draining a queue of the given size.
func NewDeleter(host Host, size int, logger *slog.Logger) *Deleter {
	if size < 1 {
		size = 1
	}
	d := &Deleter{
		host:   host,
		logger: logger,
		queue:  make(chan string, size),
	}

	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Deleter) run() {
	defer d.wg.Done()
	for assetID := range d.queue {
		d.deleteDetached(assetID)
	}
}

func (d *Deleter) deleteDetached(assetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	d.DeleteNow(ctx, assetID)
}

// Enqueue schedules a deletion and returns immediately.
// A full queue spills into a detached goroutine.
func (d *Deleter) Enqueue(assetID string) {
	if assetID == "" {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("media deleter closed, dropping deletion", "asset_id", assetID)
		return
	}

	select {
	case d.queue <- assetID:
	default:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deleteDetached(assetID)
		}()
	}
}

// DeleteNow deletes synchronously and reports whether it succeeded.
// An empty asset id is reported as not deleted.
func (d *Deleter) DeleteNow(ctx context.Context, assetID string) bool {
	if assetID == "" {
		return false
	}
	if err := d.host.Delete(ctx, assetID); err != nil {
		d.logger.Warn("media deletion failed", "asset_id", assetID, "error", err)
		return false
	}
	d.logger.Debug("media deleted", "asset_id", assetID)
	return true
}

// Shutdown stops accepting work and waits for queued deletions.
func (d *Deleter) Shutdown() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}
