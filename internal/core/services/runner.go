package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/logger"
	"github.com/custodia-labs/recsync/internal/metrics"
)

// Runner owns the per-entity sync loop shared by all three source
// adapters: run-log lifecycle, cursor resolution and advancement, breaker
// guard, pagination, client-side modified-since filtering, dead-letter
// routing for per-record failures and batched flushing.
type Runner struct {
	cursors  driven.CursorStore
	synclogs driven.SyncLogStore
	queue    driven.FailedRecordStore
	records  driven.RecordStore
	matcher  *Matcher
	breakers *BreakerRegistry
	cfg      domain.SyncConfig

	now func() time.Time
}

// NewRunner wires the sync loop over its stores.
func NewRunner(
	cursors driven.CursorStore,
	synclogs driven.SyncLogStore,
	queue driven.FailedRecordStore,
	records driven.RecordStore,
	matcher *Matcher,
	breakers *BreakerRegistry,
	cfg domain.SyncConfig,
) *Runner {
	return &Runner{
		cursors:  cursors,
		synclogs: synclogs,
		queue:    queue,
		records:  records,
		matcher:  matcher,
		breakers: breakers,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SyncAll iterates the connector's entity types in their fixed order, so a
// later type can rely on an earlier type's canonical ids already being
// resolvable. A connection failure aborts only the failing entity type,
// never the remaining ones. Returns the finalized run log per entity type
// and the joined per-entity errors.
func (r *Runner) SyncAll(ctx context.Context, conn driven.Connector, fullSync bool) ([]*domain.SyncLog, error) {
	run := NewRunContext()

	var logs []*domain.SyncLog
	var errs []error
	for _, et := range conn.EntityTypes() {
		log, err := r.syncEntity(ctx, conn, et, fullSync, run)
		if log != nil {
			logs = append(logs, log)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", conn.Source(), et, err))
		}
	}
	return logs, errors.Join(errs...)
}

// SyncEntity runs one (source, entity type) sync with a fresh run context.
func (r *Runner) SyncEntity(ctx context.Context, conn driven.Connector, entityType domain.EntityType, fullSync bool) (*domain.SyncLog, error) {
	return r.syncEntity(ctx, conn, entityType, fullSync, NewRunContext())
}

//nolint:gocognit,gocyclo // The sync loop's sequential steps live together deliberately.
func (r *Runner) syncEntity(
	ctx context.Context,
	conn driven.Connector,
	entityType domain.EntityType,
	fullSync bool,
	run *RunContext,
) (*domain.SyncLog, error) {
	source := conn.Source()

	syncType := domain.SyncIncremental
	if fullSync {
		syncType = domain.SyncFull
	}
	log := domain.NewSyncLog(source, entityType, syncType, r.now())
	if err := r.synclogs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("create sync log: %w", err)
	}

	breaker := r.breakers.For(source)
	if !breaker.CanExecute() {
		err := fmt.Errorf("%w: %s", domain.ErrBreakerOpen, source)
		log.Fail(err.Error(), "", r.now())
		r.finalize(ctx, log)
		return log, err
	}

	// Resolve the watermark. A forced full sync clears it first so the
	// fetch starts from empty.
	if fullSync {
		if err := r.cursors.Reset(ctx, source, entityType); err != nil {
			log.Fail(err.Error(), "", r.now())
			r.finalize(ctx, log)
			return log, fmt.Errorf("reset cursor: %w", err)
		}
	}

	var modifiedSince time.Time
	var pageToken string
	if !fullSync {
		cursor, err := r.cursors.Get(ctx, source, entityType)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Fail(err.Error(), "", r.now())
			r.finalize(ctx, log)
			return log, fmt.Errorf("get cursor: %w", err)
		}
		if cursor != nil {
			modifiedSince = cursor.LastModifiedAt
			pageToken = cursor.CursorValue
		}
	}

	caps := conn.Capabilities(entityType)
	pageCap := r.cfg.IncrementalPageCap
	if fullSync {
		pageCap = r.cfg.FullPageCap
	}

	maxModified := modifiedSince
	var failedFloor time.Time // earliest ModifiedAt among dead-lettered records
	failedUnplaced := false   // a dead-lettered record carried no timestamp
	var lastID string
	var applied int64
	var pending int
	pages := 0

	for page := 1; page <= pageCap; page++ {
		req := driven.PageRequest{
			Page:   page,
			Size:   r.cfg.PageSize,
			Cursor: pageToken,
		}
		if caps.SupportsModifiedSince {
			req.ModifiedSince = modifiedSince
		}

		rp, err := conn.FetchPage(ctx, entityType, req)
		if err != nil {
			breaker.RecordFailure(err)
			log.Fail(err.Error(), "", r.now())
			r.finalize(ctx, log)
			return log, fmt.Errorf("fetch page %d: %w", page, err)
		}
		breaker.RecordSuccess()
		pages = page

		for i := range rp.Records {
			rec := &rp.Records[i]
			log.RecordsFetched++
			metrics.RecordsFetched.WithLabelValues(string(source), string(entityType)).Inc()

			if rec.MapErr != nil {
				r.deadLetter(ctx, source, entityType, rec, rec.MapErr, "mapping")
				log.RecordsFailed++
				noteFailedRecord(rec, &failedFloor, &failedUnplaced)
				continue
			}

			// Client-side modified-since filtering for sources without a
			// server-side filter. The true maximum is still tracked so
			// the cursor advances past records we skip.
			if rec.ModifiedAt.After(maxModified) {
				maxModified = rec.ModifiedAt
			}
			if !caps.SupportsModifiedSince && !modifiedSince.IsZero() && !rec.ModifiedAt.After(modifiedSince) {
				continue
			}

			what, err := r.matcher.Upsert(ctx, source, rec, run)
			if err != nil {
				r.deadLetter(ctx, source, entityType, rec, err, "upsert")
				log.RecordsFailed++
				noteFailedRecord(rec, &failedFloor, &failedUnplaced)
				continue
			}
			switch what {
			case AppliedCreated:
				log.RecordsCreated++
				metrics.RecordsCreated.WithLabelValues(string(source), string(entityType)).Inc()
			case AppliedUpdated:
				log.RecordsUpdated++
				metrics.RecordsUpdated.WithLabelValues(string(source), string(entityType)).Inc()
			}
			applied++
			lastID = rec.ExternalID

			pending++
			if pending >= r.cfg.BatchSize {
				if err := r.records.Flush(ctx); err != nil {
					log.Fail(err.Error(), "", r.now())
					r.finalize(ctx, log)
					return log, fmt.Errorf("flush batch: %w", err)
				}
				pending = 0
			}
		}

		// Each page is durable before its bookkeeping can advance; a
		// crash mid-page leaves the watermark at the previous value and
		// the next run re-fetches. Upserts are idempotent on external id.
		if err := r.records.Flush(ctx); err != nil {
			log.Fail(err.Error(), "", r.now())
			r.finalize(ctx, log)
			return log, fmt.Errorf("flush page: %w", err)
		}
		pending = 0

		pageToken = rp.NextCursor
		if !rp.HasMore {
			break
		}
		if page == pageCap {
			logger.Debug("%s %s: page cap %d reached, remaining records picked up next run", source, entityType, pageCap)
		}
	}

	now := r.now()
	update := domain.CursorUpdate{
		Timestamp: now,
		LastID:    lastID,
		LastPage:  pages,
	}
	// The watermark must never pass a dead-lettered record: retry relies
	// on the next incremental run fetching the record again once its
	// cause is repaired. A failure with no usable timestamp holds the
	// watermark in place entirely.
	watermark := maxModified
	switch {
	case failedUnplaced:
		watermark = modifiedSince
	case !failedFloor.IsZero():
		if limit := failedFloor.Add(-time.Nanosecond); limit.Before(watermark) {
			watermark = limit
		}
		if watermark.Before(modifiedSince) {
			watermark = modifiedSince
		}
	}
	if watermark.After(modifiedSince) {
		update.ModifiedAt = watermark
	}
	if caps.UsesContinuationToken {
		if pageToken != "" {
			update.CursorValue = pageToken
		} else {
			update.ClearCursorValue = true
		}
	}
	if err := r.cursors.Update(ctx, source, entityType, update, applied); err != nil {
		log.Fail(err.Error(), "", now)
		r.finalize(ctx, log)
		return log, fmt.Errorf("update cursor: %w", err)
	}

	log.Complete(log.Outcome(), r.now())
	r.finalize(ctx, log)
	logger.Info("%s %s sync %s: fetched=%d created=%d updated=%d failed=%d in %.1fs",
		source, entityType, log.Status, log.RecordsFetched, log.RecordsCreated, log.RecordsUpdated, log.RecordsFailed, log.DurationSeconds)
	return log, nil
}

// noteFailedRecord tracks where the watermark must stop so a
// dead-lettered record stays ahead of it and is fetched again next run.
func noteFailedRecord(rec *domain.SourceRecord, floor *time.Time, unplaced *bool) {
	if rec.ModifiedAt.IsZero() {
		*unplaced = true
		return
	}
	if floor.IsZero() || rec.ModifiedAt.Before(*floor) {
		*floor = rec.ModifiedAt
	}
}

// deadLetter routes one failed record to the queue. Queue write failures
// are logged; they must not abort the page.
func (r *Runner) deadLetter(ctx context.Context, source domain.SourceName, entityType domain.EntityType, rec *domain.SourceRecord, cause error, errorType string) {
	now := r.now()
	entry := &domain.FailedSyncRecord{
		Source:       source,
		EntityType:   entityType,
		ExternalID:   rec.ExternalID,
		Payload:      rec.Payload,
		ErrorMessage: cause.Error(),
		ErrorType:    errorType,
		MaxRetries:   domain.DefaultMaxRetries,
		NextRetryAt:  now,
		CreatedAt:    now,
	}
	if err := r.queue.Enqueue(ctx, entry); err != nil {
		logger.Error("dead-letter enqueue failed for %s %s %s: %v", source, entityType, rec.ExternalID, err)
		return
	}
	metrics.RecordsFailed.WithLabelValues(string(source), string(entityType)).Inc()
	logger.Debug("dead-lettered %s %s %s: %v", source, entityType, rec.ExternalID, cause)
}

// finalize persists the run log's terminal state. Best effort.
func (r *Runner) finalize(ctx context.Context, log *domain.SyncLog) {
	metrics.SyncDuration.WithLabelValues(string(log.Source), string(log.EntityType)).Observe(log.DurationSeconds)
	if err := r.synclogs.Update(ctx, log); err != nil {
		logger.Error("finalize sync log %d: %v", log.ID, err)
	}
}
