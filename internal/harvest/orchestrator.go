package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"book_harvester/internal/classify"
	"book_harvester/internal/config"
	"book_harvester/internal/content"
	"book_harvester/internal/covers"
	"book_harvester/internal/domain"
	"book_harvester/internal/filter"
	"book_harvester/internal/mapper"
	"book_harvester/internal/publisher"
	"book_harvester/internal/retry"
	"book_harvester/internal/source"
)

var (
	// ErrJobInProgress is returned when Run is called while a job is active.
	ErrJobInProgress = errors.New("a harvest job is already running")

	// ErrStopped aborts the current job at the next item boundary.
	ErrStopped = errors.New("harvest stopped")

	errNotRunning = errors.New("no harvest job is running")
	errNotPaused  = errors.New("harvest is not paused")
)

// State is the orchestrator's control state, reported by the API.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

const preferredFormat = "pdf"

const (
	outcomeAdded   = "added"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// pauseProbe is how often a paused job checks whether it may continue.
const pauseProbe = 100 * time.Millisecond

// RunOptions are per-invocation overrides. Zero values fall back to the
// stored source configuration.
type RunOptions struct {
	DryRun    bool
	BatchSize int
	Sources   []string // empty means all enabled sources
}

// Orchestrator drives one harvest job at a time: for each enabled source it
// fetches a page of candidates, runs every item through dedup, classify,
// filter, validate, upload and persist, and records the outcome. Items are
// isolated; one failure never aborts the run unless failures pile up past
// the configured ceiling.
type Orchestrator struct {
	registry  *source.Registry
	books     BookStore
	dedup     Deduper
	configs   ConfigStore
	cursors   CursorStore
	stats     StatsStore
	jobs      JobStore
	audit     FilterAudit
	filters   *filter.Engine
	classify  Classifier
	covers    CoverSearcher
	validator AssetValidator
	writer    AssetWriter
	publisher Publisher
	txManager TransactionManager
	recorder  Recorder
	logger    *slog.Logger
	cfg       config.HarvestConfig

	fetchRetry   retry.Policy
	persistRetry retry.Policy

	mu    sync.Mutex
	state State
}

type Deps struct {
	Registry  *source.Registry
	Books     BookStore
	Dedup     Deduper
	Configs   ConfigStore
	Cursors   CursorStore
	Stats     StatsStore
	Jobs      JobStore
	Audit     FilterAudit
	Filters   *filter.Engine
	Classify  Classifier
	Covers    CoverSearcher
	Validator AssetValidator
	Writer    AssetWriter
	Publisher Publisher
	TxManager TransactionManager
	Recorder  Recorder
}

func NewOrchestrator(deps Deps, cfg config.HarvestConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry:  deps.Registry,
		books:     deps.Books,
		dedup:     deps.Dedup,
		configs:   deps.Configs,
		cursors:   deps.Cursors,
		stats:     deps.Stats,
		jobs:      deps.Jobs,
		audit:     deps.Audit,
		filters:   deps.Filters,
		classify:  deps.Classify,
		covers:    deps.Covers,
		validator: deps.Validator,
		writer:    deps.Writer,
		publisher: deps.Publisher,
		txManager: deps.TxManager,
		recorder:  deps.Recorder,
		logger:    logger.With("component", "orchestrator"),
		cfg:       cfg,
		fetchRetry: retry.Policy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		},
		persistRetry: retry.Policy{
			MaxAttempts:    cfg.PersistRetry.MaxAttempts,
			InitialBackoff: cfg.PersistRetry.InitialBackoff,
			MaxBackoff:     cfg.PersistRetry.MaxBackoff,
		},
		state: StateIdle,
	}
}

// Status reports the current control state.
func (o *Orchestrator) Status() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pause holds the running job at the next item boundary. In-flight work on
// the current item finishes first.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return errNotRunning
	}
	o.state = StatePaused
	return nil
}

// Resume releases a paused job.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StatePaused {
		return errNotPaused
	}
	o.state = StateRunning
	return nil
}

// Stop aborts the job at the next item boundary. Work already persisted
// stays; the job record reflects what was done.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning && o.state != StatePaused {
		return errNotRunning
	}
	o.state = StateStopping
	return nil
}

// Run executes one harvest job over the enabled sources in priority order.
// Only one job runs at a time.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*domain.JobResult, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.finish()

	job := &domain.JobResult{
		ID:        uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}

	o.logger.Info("job started", "job_id", job.ID, "dry_run", opts.DryRun)

	configs, err := o.configs.GetEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load source configs: %w", err)
	}
	configs = selectSources(configs, opts.Sources)

	if len(configs) == 0 {
		o.logger.Warn("no enabled sources to harvest")
	}

	stopped := false
	anyRunFailed := false

	for _, cfg := range configs {
		report, status, runErr := o.runSource(ctx, cfg, opts)
		job.Sources = append(job.Sources, report)
		if status == domain.RunFailed {
			anyRunFailed = true
		}
		if runErr != nil {
			if errors.Is(runErr, ErrStopped) {
				stopped = true
				break
			}
			return nil, runErr
		}
	}

	job.FinishedAt = time.Now().UTC()
	job.Status = jobStatus(job, anyRunFailed, stopped)

	if !opts.DryRun {
		if err := o.jobs.Insert(ctx, job); err != nil {
			return nil, fmt.Errorf("record job: %w", err)
		}
	}

	if o.recorder != nil {
		o.recorder.ObserveJob(string(job.Status), job.FinishedAt.Sub(job.StartedAt))
	}

	processed, added, skipped, failed := job.Totals()
	o.logger.Info("job finished",
		"job_id", job.ID,
		"status", job.Status,
		"processed", processed,
		"added", added,
		"skipped", skipped,
		"failed", failed,
		"duration", job.FinishedAt.Sub(job.StartedAt),
	)

	return job, nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateIdle {
		return ErrJobInProgress
	}
	o.state = StateRunning
	return nil
}

func (o *Orchestrator) finish() {
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// checkpoint is called between items. It blocks while paused and surfaces a
// stop request.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch o.Status() {
		case StateStopping:
			return ErrStopped
		case StatePaused:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pauseProbe):
			}
		default:
			return nil
		}
	}
}

// runSource harvests one page for one source. The returned error is only
// ever a stop or context abort; source-level failures are folded into the
// report and run status.
func (o *Orchestrator) runSource(ctx context.Context, cfg domain.SourceConfig, opts RunOptions) (domain.SourceReport, domain.RunStatus, error) {
	report := domain.SourceReport{SourceID: cfg.SourceID}
	logger := o.logger.With("source", cfg.SourceID)

	fetcher, ok := o.registry.Get(cfg.SourceID)
	if !ok {
		logger.Error("enabled source has no registered fetcher")
		o.finalizeRun(ctx, cfg.SourceID, report, domain.RunFailed, 0, 0, opts.DryRun)
		return report, domain.RunFailed, nil
	}

	batchSize := cfg.BatchSize
	if opts.BatchSize > 0 {
		batchSize = opts.BatchSize
	}
	if batchSize <= 0 {
		batchSize = o.cfg.DefaultBatchSize
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = o.cfg.DefaultRateLimit
	}
	limiter := newRateLimiter(rateLimit)

	cursor, err := o.cursors.Get(ctx, cfg.SourceID)
	if err != nil {
		logger.Error("load cursor", "error", err)
		o.finalizeRun(ctx, cfg.SourceID, report, domain.RunFailed, 0, 0, opts.DryRun)
		return report, domain.RunFailed, nil
	}

	logger.Info("source run started", "page", cursor.NextPage, "batch_size", batchSize)

	var items []domain.RawItem
	err = o.fetchRetry.Do(ctx, func() error {
		var ferr error
		items, ferr = fetcher.FetchItems(ctx, source.FetchOptions{
			BatchSize: batchSize,
			Page:      cursor.NextPage,
			Language:  o.cfg.Language,
		})
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			return report, domain.RunFailed, ctx.Err()
		}
		logger.Error("fetch page failed", "page", cursor.NextPage, "error", err)
		o.finalizeRun(ctx, cfg.SourceID, report, domain.RunFailed, 0, 0, opts.DryRun)
		return report, domain.RunFailed, nil
	}

	// An empty page means the catalog is exhausted; wrap back to the start
	// so later runs pick up anything new.
	nextPage := cursor.NextPage + 1
	if len(items) == 0 {
		nextPage = 0
	}

	fresh, err := o.dedup.FilterNew(ctx, cfg.SourceID, items)
	if err != nil {
		logger.Error("dedup batch failed", "error", err)
		o.finalizeRun(ctx, cfg.SourceID, report, domain.RunFailed, nextPage, 0, opts.DryRun)
		return report, domain.RunFailed, nil
	}

	report.Processed = len(items)
	report.Skipped = len(items) - len(fresh)

	var itemMillis int64
	var stopErr error

	for i := range fresh {
		if err := o.checkpoint(ctx); err != nil {
			report.Processed = report.Skipped + report.Added + report.Failed
			stopErr = err
			break
		}
		if err := limiter.wait(ctx); err != nil {
			report.Processed = report.Skipped + report.Added + report.Failed
			stopErr = err
			break
		}

		itemStart := time.Now()
		outcome, itemErr := o.processItem(ctx, fetcher, cfg.SourceID, fresh[i], opts.DryRun)
		itemMillis += time.Since(itemStart).Milliseconds()

		switch outcome {
		case outcomeAdded:
			report.Added++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
			if itemErr != nil {
				report.Errors = append(report.Errors, *itemErr)
			}
		}
		if o.recorder != nil {
			o.recorder.ObserveItem(cfg.SourceID, outcome)
		}

		if o.cfg.MaxItemErrors > 0 && report.Failed >= o.cfg.MaxItemErrors {
			logger.Error("too many item failures, aborting source", "failed", report.Failed)
			report.Processed = report.Skipped + report.Added + report.Failed
			break
		}
	}

	status := domain.RunCompleted
	if report.Failed > 0 || stopErr != nil {
		status = domain.RunPartial
	}

	// A stop cuts the page short; keep the cursor on it so the remaining
	// items are fetched again next run. Dedup drops the ones already added.
	if stopErr != nil {
		nextPage = cursor.NextPage
	}

	var avgMillis int64
	if handled := report.Added + report.Failed; handled > 0 {
		avgMillis = itemMillis / int64(handled)
	}

	o.finalizeRun(ctx, cfg.SourceID, report, status, nextPage, avgMillis, opts.DryRun)

	logger.Info("source run finished",
		"status", status,
		"processed", report.Processed,
		"added", report.Added,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"avg_item_ms", avgMillis,
	)

	return report, status, stopErr
}

// finalizeRun commits the cursor and stats for one source run atomically.
// Dry runs leave no trace.
func (o *Orchestrator) finalizeRun(ctx context.Context, sourceID string, report domain.SourceReport, status domain.RunStatus, nextPage int, avgMillis int64, dryRun bool) {
	if dryRun {
		return
	}

	outcome := domain.RunOutcome{
		Status:        status,
		Ingested:      report.Processed,
		Succeeded:     report.Added,
		Failed:        report.Failed,
		AvgItemMillis: avgMillis,
		RanAt:         time.Now().UTC(),
	}

	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if status != domain.RunFailed {
			if err := o.cursors.Save(txCtx, sourceID, nextPage); err != nil {
				return fmt.Errorf("save cursor: %w", err)
			}
		}
		if err := o.stats.Apply(txCtx, sourceID, outcome); err != nil {
			return fmt.Errorf("apply stats: %w", err)
		}
		return nil
	})
	if err != nil {
		o.logger.Error("finalize source run", "source", sourceID, "error", err)
	}
}

// processItem walks one candidate through the full pipeline. It returns the
// item's outcome and, for failures, the error to record in the job report.
func (o *Orchestrator) processItem(ctx context.Context, fetcher source.Fetcher, sourceID string, item domain.RawItem, dryRun bool) (string, *domain.ItemError) {
	logger := o.logger.With("source", sourceID, "item", item.ItemID)

	fields := mapper.Normalize(item)

	// Classification is best effort. A dead classifier downgrades the book
	// to Uncategorized instead of blocking ingestion.
	var genres []string
	var subGenre *string
	result, err := o.classify.Classify(ctx, classify.Input{
		Title:       fields.Title,
		Author:      fields.Author,
		Description: fields.Description,
		Year:        fields.Year,
	})
	if err != nil {
		logger.Warn("classification failed, continuing uncategorized", "error", err)
	} else {
		genres = result.Genres
		subGenre = result.SubGenre
	}

	decision := o.filters.Evaluate(fields.Author, genres)
	if !decision.Passed {
		logger.Debug("item filtered out", "filter", decision.FilterName, "reason", decision.Reason)
		if !dryRun {
			auditErr := o.audit.Insert(ctx, &domain.FilterDecision{
				SourceID:   sourceID,
				ItemID:     item.ItemID,
				FilterName: decision.FilterName,
				Reason:     decision.Reason,
				FieldValue: decision.FieldValue,
			})
			if auditErr != nil {
				logger.Warn("filter audit write failed", "error", auditErr)
			}
		}
		return outcomeSkipped, nil
	}

	var assetURL string
	err = o.fetchRetry.Do(ctx, func() error {
		var rerr error
		assetURL, rerr = fetcher.ResolveAssetURL(ctx, item.ItemID, preferredFormat)
		return rerr
	})
	if err != nil {
		return outcomeFailed, &domain.ItemError{
			ItemID:  item.ItemID,
			Stage:   domain.StageFetch,
			Message: fmt.Sprintf("resolve asset url: %v", err),
		}
	}
	if assetURL == "" {
		return outcomeFailed, &domain.ItemError{
			ItemID:  item.ItemID,
			Stage:   domain.StageValidate,
			Message: fmt.Sprintf("no %s asset available", preferredFormat),
		}
	}

	var asset *content.Asset
	err = o.fetchRetry.Do(ctx, func() error {
		var verr error
		asset, verr = o.validator.Fetch(ctx, assetURL, preferredFormat)
		return verr
	})
	if err != nil {
		return outcomeFailed, &domain.ItemError{
			ItemID:  item.ItemID,
			Stage:   domain.StageValidate,
			Message: err.Error(),
		}
	}
	defer asset.Body.Close()

	if dryRun {
		logger.Info("dry run: item would be added", "title", fields.Title)
		return outcomeAdded, nil
	}

	path := content.AssetPath(sourceID, content.SanitizeName(item.ItemID), preferredFormat)
	publicURL, err := o.writer.Upload(ctx, path, asset.Body, asset.ContentType)
	if err != nil {
		return outcomeFailed, &domain.ItemError{
			ItemID:  item.ItemID,
			Stage:   domain.StageUpload,
			Message: fmt.Sprintf("upload asset: %v", err),
		}
	}

	coverURL := o.findCover(ctx, sourceID, item.ItemID, fields)

	category := domain.UncategorizedCategory
	if len(genres) > 0 {
		category = genres[0]
	}

	book := &domain.Book{
		Title:        fields.Title,
		Author:       fields.Author,
		Year:         fields.Year,
		Language:     fields.Language,
		Description:  fields.Description,
		SourceID:     sourceID,
		SourceItemID: item.ItemID,
		AssetURL:     publicURL,
		CoverURL:     coverURL,
		Genres:       genres,
		SubGenre:     subGenre,
		Category:     category,
	}

	duplicate := false
	err = o.persistRetry.Do(ctx, func() error {
		_, ierr := o.books.Insert(ctx, book)
		if errors.Is(ierr, domain.ErrDuplicateBook) {
			duplicate = true
			return nil
		}
		if ierr != nil {
			return domain.PersistenceError(ierr)
		}
		return nil
	})
	if duplicate {
		logger.Debug("item raced into the catalog, skipping")
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeFailed, &domain.ItemError{
			ItemID:  item.ItemID,
			Stage:   domain.StagePersist,
			Message: fmt.Sprintf("insert book: %v", err),
		}
	}

	if err := o.publisher.PublishBookIngested(ctx, book); err != nil {
		logger.Warn("publish book event failed", "error", err)
	}

	logger.Info("book ingested", "title", book.Title, "category", book.Category)
	return outcomeAdded, nil
}

// findCover asks the cover-search service for an image. Exhausted retries
// turn into a notification; the book ships without a cover.
func (o *Orchestrator) findCover(ctx context.Context, sourceID, itemID string, fields domain.CanonicalFields) *string {
	result, err := o.covers.Search(ctx, covers.Query{
		Title:  fields.Title,
		Author: fields.Author,
	})
	if err != nil {
		o.logger.Warn("cover search exhausted", "source", sourceID, "item", itemID, "error", err)
		notifyErr := o.publisher.PublishNotification(ctx, publisher.NotificationCoverSearchExhausted, map[string]string{
			"source_id": sourceID,
			"item_id":   itemID,
			"title":     fields.Title,
		})
		if notifyErr != nil {
			o.logger.Warn("publish notification failed", "error", notifyErr)
		}
		return nil
	}
	if result.URL == "" {
		return nil
	}
	return &result.URL
}

func selectSources(configs []domain.SourceConfig, only []string) []domain.SourceConfig {
	if len(only) == 0 {
		return configs
	}
	wanted := make(map[string]bool, len(only))
	for _, id := range only {
		wanted[id] = true
	}
	selected := make([]domain.SourceConfig, 0, len(configs))
	for _, cfg := range configs {
		if wanted[cfg.SourceID] {
			selected = append(selected, cfg)
		}
	}
	return selected
}

func jobStatus(job *domain.JobResult, anyRunFailed, stopped bool) domain.JobStatus {
	processed, _, _, failed := job.Totals()

	if anyRunFailed && processed == 0 {
		return domain.JobFailed
	}
	if anyRunFailed || failed > 0 || stopped {
		return domain.JobPartial
	}
	return domain.JobCompleted
}

// rateLimiter enforces a minimum delay between provider requests within one
// source run.
type rateLimiter struct {
	interval time.Duration
	last     time.Time
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (l *rateLimiter) wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}
	if !l.last.IsZero() {
		if pause := l.interval - time.Since(l.last); pause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	l.last = time.Now()
	return nil
}
