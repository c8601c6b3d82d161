package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/tradedesk/internal/domain"
	"github.com/alanyoungcy/tradedesk/internal/notify"
)

// archiveLockKey guards archive passes across instances.
const archiveLockKey = "lock:archive:trades"

// ArchiveConfig tunes the archive loop.
type ArchiveConfig struct {
	// Retention keeps trades younger than this in the primary store.
	Retention time.Duration
	Interval  time.Duration
	LockTTL   time.Duration
}

// ArchiveService runs trade archive passes and exposes the archive listing.
type ArchiveService struct {
	cfg      ArchiveConfig
	archiver domain.Archiver
	reader   domain.BlobReader
	locks    domain.LockManager
	notifier *notify.Notifier // optional
	now      func() time.Time
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(
	cfg ArchiveConfig,
	archiver domain.Archiver,
	reader domain.BlobReader,
	locks domain.LockManager,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *ArchiveService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &ArchiveService{
		cfg:      cfg,
		archiver: archiver,
		reader:   reader,
		locks:    locks,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// RunOnce archives every trade older than the retention window. It returns
// domain.ErrLockHeld when another pass is in progress.
func (s *ArchiveService) RunOnce(ctx context.Context) (int64, error) {
	unlock, err := s.locks.Acquire(ctx, archiveLockKey, s.cfg.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("archive_service: acquire lock: %w", err)
	}
	defer unlock()

	cutoff := s.now().Add(-s.cfg.Retention).UTC()
	n, err := s.archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		s.alert(notify.EventArchiveFailed, "Archive Failed", err.Error())
		return 0, fmt.Errorf("archive_service: archive before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		s.alert(notify.EventArchiveComplete, "Archive Complete", fmt.Sprintf("%d trades archived (before %s)", n, cutoff.Format(time.RFC3339)))
	}
	s.logger.InfoContext(ctx, "archive pass finished",
		slog.Int64("archived", n),
		slog.Time("cutoff", cutoff),
	)
	return n, nil
}

// Run performs an archive pass every interval until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context) error {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, domain.ErrLockHeld) {
				s.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// List returns archived objects under prefix.
func (s *ArchiveService) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("archive_service: list: %w", domain.ErrUnavailable)
	}
	infos, err := s.reader.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("archive_service: list %q: %w", prefix, err)
	}
	return infos, nil
}

// Open streams one archived object. Paths outside the trades archive are
// rejected.
func (s *ArchiveService) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("archive_service: open: %w", domain.ErrUnavailable)
	}
	if !strings.HasPrefix(path, "trades/") || strings.Contains(path, "..") {
		return nil, fmt.Errorf("archive_service: open %q: %w", path, domain.ErrNotFound)
	}
	rc, err := s.reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("archive_service: open %q: %w", path, err)
	}
	return rc, nil
}

func (s *ArchiveService) alert(event, title, message string) {
	if s.notifier != nil {
		s.notifier.Enqueue(event, title, message)
	}
}
