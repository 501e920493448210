package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/welldanyogia/node-attachments-backend/internal/metrics"
	"github.com/welldanyogia/node-attachments-backend/internal/repository"
	"github.com/welldanyogia/node-attachments-backend/internal/storage"
)

// OrphanSweeperConfig holds configuration for the orphan sweeper
type OrphanSweeperConfig struct {
	// Interval is how often the storage root is scanned
	Interval time.Duration
	// GracePeriod protects blobs written by creates still in flight
	GracePeriod time.Duration
	Observer    metrics.Observer
}

// SweepResult summarizes one sweep
type SweepResult struct {
	Scanned int
	Orphans int
	Removed int
	Failed  int
}

// OrphanSweeper removes blobs that no attachment record points to.
// Such blobs are left behind when a record insert fails after the file write.
type OrphanSweeper struct {
	repo    repository.AttachmentRepository
	store   storage.BlobStore
	config  OrphanSweeperConfig
	logger  *slog.Logger
	now     func() time.Time
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewOrphanSweeper creates a new orphan sweeper
func NewOrphanSweeper(
	repo repository.AttachmentRepository,
	store storage.BlobStore,
	config OrphanSweeperConfig,
	logger *slog.Logger,
) *OrphanSweeper {
	// Set defaults
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = time.Hour
	}
	if config.Observer == nil {
		config.Observer = metrics.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OrphanSweeper{
		repo:   repo,
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (s *OrphanSweeper) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.sweepLoop()

	s.logger.Info("orphan sweeper started",
		slog.Duration("interval", s.config.Interval),
		slog.Duration("grace_period", s.config.GracePeriod))
}

// Stop gracefully stops the sweep loop
func (s *OrphanSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("orphan sweeper stopped")
}

// IsRunning returns whether the sweeper is currently running
func (s *OrphanSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *OrphanSweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("orphan sweep failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}

// SweepOnce deletes blobs older than the grace period that have no record.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	// Blobs are listed before records so a create that commits in between
	// is seen as referenced.
	blobs, err := s.store.List()
	if err != nil {
		return result, fmt.Errorf("failed to list blobs: %w", err)
	}

	names, err := s.repo.ListStoredFilenames(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list stored filenames: %w", err)
	}

	referenced := make(map[string]struct{}, len(names))
	for _, name := range names {
		referenced[name] = struct{}{}
	}

	cutoff := s.now().Add(-s.config.GracePeriod)
	result.Scanned = len(blobs)

	for _, blob := range blobs {
		if _, ok := referenced[blob.StoredName]; ok {
			continue
		}
		if blob.ModTime.After(cutoff) {
			continue
		}

		result.Orphans++
		if err := s.store.Delete(blob.StoredName); err != nil {
			result.Failed++
			s.logger.Warn("failed to remove orphaned blob",
				slog.String("stored_filename", blob.StoredName),
				slog.Any("error", err))
			continue
		}

		result.Removed++
		s.logger.Info("removed orphaned blob",
			slog.String("stored_filename", blob.StoredName),
			slog.Int64("size", blob.Size))
	}

	s.config.Observer.RecordOrphans(result.Orphans, result.Removed)

	s.logger.Debug("orphan sweep completed",
		slog.Int("scanned", result.Scanned),
		slog.Int("orphans", result.Orphans),
		slog.Int("removed", result.Removed))

	return result, nil
}
