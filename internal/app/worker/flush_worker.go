package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"live_contest/internal/app/livestore"
	"live_contest/internal/domain/model"
	"live_contest/internal/domain/repository"
	"live_contest/internal/platform/metrics"

	"github.com/sirupsen/logrus"
)

// Skip reasons reported in FlushResult.
const (
	SkipLocked    = "locked"
	SkipUnchanged = "unchanged"
)

type FlushConfig struct {
	Interval  time.Duration
	BatchSize int
	LockName  string
	LockTTL   time.Duration
}

// FlushResult summarizes one flush cycle.
type FlushResult struct {
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skipReason,omitempty"`
	Version    int64  `json:"version"`
	Keys       int    `json:"keys"`
	Records    int    `json:"records"`
	Inserted   int64  `json:"inserted"`
	Batches    int    `json:"batches"`
	Failed     int    `json:"failed"`
	Cleared    int    `json:"cleared"`
}

// FlushWorker drains dirty submission records from the Fast Store into the
// durable store. Any number of instances may run; the lease lock lets one
// cycle proceed at a time.
type FlushWorker struct {
	submissions *livestore.SubmissionStore
	locker      *livestore.Locker
	keys        livestore.Keys
	sink        repository.SubmissionRepository
	cfg         FlushConfig
	log         logrus.FieldLogger
}

func NewFlushWorker(
	submissions *livestore.SubmissionStore,
	locker *livestore.Locker,
	keys livestore.Keys,
	sink repository.SubmissionRepository,
	cfg FlushConfig,
	log logrus.FieldLogger,
) *FlushWorker {
	return &FlushWorker{
		submissions: submissions,
		locker:      locker,
		keys:        keys,
		sink:        sink,
		cfg:         cfg,
		log:         log.WithField("component", "flush_worker"),
	}
}

// Start runs a cycle every Interval until ctx is cancelled. A cycle in
// progress when ctx ends is allowed to observe the cancellation itself.
func (w *FlushWorker) Start(ctx context.Context) {
	w.log.WithFields(logrus.Fields{"interval": w.cfg.Interval, "batch_size": w.cfg.BatchSize}).Info("Flush worker started")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Flush worker stopping...")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.log.WithError(err).Error("Flush cycle failed")
			}
		}
	}
}

// RunOnce performs a single flush cycle. A cycle that cannot take the lock,
// or finds no new submissions since the last checkpoint, is skipped without
// error. A failed batch does not stop the others; the cycle then reports an
// error and leaves the checkpoint where it was.
func (w *FlushWorker) RunOnce(ctx context.Context) (FlushResult, error) {
	lease, ok, err := w.locker.Acquire(ctx, w.cfg.LockName, w.cfg.LockTTL)
	if err != nil {
		metrics.FlushCyclesTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return FlushResult{}, err
	}
	if !ok {
		metrics.FlushCyclesTotal.WithLabelValues(metrics.OutcomeLocked).Inc()
		w.log.Debug("Flush lock held elsewhere, skipping cycle")
		return FlushResult{Skipped: true, SkipReason: SkipLocked}, nil
	}
	defer w.release(ctx, lease)

	res, err := w.drain(ctx)
	switch {
	case err != nil:
		metrics.FlushCyclesTotal.WithLabelValues(metrics.OutcomeError).Inc()
	case res.Skipped:
		metrics.FlushCyclesTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
	default:
		metrics.FlushCyclesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	return res, err
}

func (w *FlushWorker) drain(ctx context.Context) (FlushResult, error) {
	version, err := w.submissions.Version(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	checkpoint, err := w.submissions.FlushedVersion(ctx)
	if err != nil {
		return FlushResult{}, err
	}
	res := FlushResult{Version: version}
	if version <= checkpoint {
		res.Skipped, res.SkipReason = true, SkipUnchanged
		w.log.WithField("version", version).Debug("No new submissions since last flush")
		return res, nil
	}

	started := time.Now()
	dirty, err := w.submissions.DirtyKeys(ctx)
	if err != nil {
		return res, err
	}

	var (
		flushed = make(map[string]int, len(dirty))
		failed  = make(map[string]bool)
		batch   = make([]model.Submission, 0, w.cfg.BatchSize)
		owners  = make([]string, 0, w.cfg.BatchSize)
		errs    []error
	)
	flush := func() {
		if err := w.write(ctx, &res, batch); err != nil {
			errs = append(errs, err)
			for _, key := range owners {
				failed[key] = true
			}
		}
		batch, owners = batch[:0], owners[:0]
	}
	for _, key := range dirty {
		contestID, userID, ok := w.keys.ParseSubmissions(key)
		if !ok {
			w.log.WithField("key", key).Warn("Ignoring malformed dirty key")
			continue
		}
		records, err := w.submissions.Records(ctx, key)
		if err != nil {
			return res, err
		}
		for _, questionID := range slices.Sorted(maps.Keys(records)) {
			rec := records[questionID]
			batch = append(batch, model.Submission{
				ContestID:      contestID,
				UserID:         userID,
				QuestionID:     questionID,
				SelectedOption: rec.Answer,
				IsCorrect:      rec.IsCorrect,
				SubmittedAt:    rec.SubmittedAt,
			})
			owners = append(owners, key)
			if len(batch) == w.cfg.BatchSize {
				flush()
			}
		}
		flushed[key] = len(records)
		res.Keys++
		res.Records += len(records)
	}
	if len(batch) > 0 {
		flush()
	}

	for key, count := range flushed {
		if failed[key] {
			continue
		}
		cleared, err := w.submissions.ClearDirty(ctx, key, count)
		if err != nil {
			// the key stays dirty and is re-flushed, harmlessly, next time
			w.log.WithError(err).WithField("key", key).Warn("Failed to clear dirty flag")
			continue
		}
		if cleared {
			res.Cleared++
		}
	}

	fields := logrus.Fields{
		"version":  version,
		"keys":     res.Keys,
		"records":  res.Records,
		"inserted": res.Inserted,
		"batches":  res.Batches,
		"failed":   res.Failed,
		"cleared":  res.Cleared,
	}
	if len(errs) > 0 {
		// failed keys stay dirty and the checkpoint stays put, so the next cycle retries them
		w.log.WithFields(fields).Warn("Flush cycle finished with failed batches")
		return res, fmt.Errorf("%d of %d submission batches failed: %w", res.Failed, res.Batches+res.Failed, errors.Join(errs...))
	}

	if err := w.submissions.AdvanceFlushedVersion(ctx, version); err != nil {
		return res, err
	}

	metrics.FlushCycleSeconds.Observe(time.Since(started).Seconds())
	w.log.WithFields(fields).Info("Flush cycle complete")
	return res, nil
}

func (w *FlushWorker) write(ctx context.Context, res *FlushResult, batch []model.Submission) error {
	n, err := w.sink.InsertMany(ctx, batch)
	if err != nil {
		res.Failed++
		w.log.WithError(err).WithFields(logrus.Fields{"failed": res.Failed, "size": len(batch)}).Error("Durable write failed, skipping batch")
		return fmt.Errorf("writing batch of %d submissions: %w", len(batch), err)
	}
	res.Batches++
	res.Inserted += n
	metrics.FlushRowsTotal.Add(float64(n))
	return nil
}

// release must run even when ctx is already cancelled.
func (w *FlushWorker) release(ctx context.Context, lease livestore.Lease) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	released, err := w.locker.Release(ctx, lease)
	if err != nil {
		w.log.WithError(err).Warn("Failed to release flush lock")
		return
	}
	if !released {
		w.log.WithField("lock", lease.Key).Warn("Flush lock expired before release; cycle ran longer than its lease")
	}
}
