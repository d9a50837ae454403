package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pixelpop/server/internal/billing"
	"pixelpop/server/internal/domain"
	"pixelpop/server/internal/infra"
	"pixelpop/server/internal/providers/image"
)

const defaultPollInterval = time.Second

// jobQueue is the slice of the queue manager the worker depends on. The
// worker never touches the backend directly.
type jobQueue interface {
	Pop(ctx context.Context) (*domain.Job, error)
	Update(ctx context.Context, jobID string, upd domain.JobUpdate) error
}

// artifactSink delivers final bytes and returns a usable URL.
type artifactSink interface {
	Store(ctx context.Context, key string, data []byte, contentType, sourceURL string) (string, error)
}

// watermarker is the optional post-processing stage.
type watermarker interface {
	Apply(data []byte, enabled bool) []byte
}

// statusMirror reflects terminal transitions into the relational store.
type statusMirror interface {
	UpsertStatus(ctx context.Context, jobID string, userID int64, status domain.JobStatus, resultURL, errMsg string) error
}

// Options wires the worker's collaborators. Ledger and Mirror are optional;
// everything else is required.
type Options struct {
	Queue        jobQueue
	Generator    image.Generator
	Watermark    watermarker
	Sink         artifactSink
	Ledger       billing.Ledger
	Mirror       statusMirror
	HTTPClient   *http.Client
	Logger       infra.Logger
	PollInterval time.Duration
}

// Worker is the single logical consumer: it pops one job at a time, runs the
// full pipeline to a terminal state, and only then pops again. No failure
// mode of a single job stops the loop.
type Worker struct {
	queue        jobQueue
	generator    image.Generator
	watermark    watermarker
	sink         artifactSink
	ledger       billing.Ledger
	mirror       statusMirror
	httpClient   *http.Client
	logger       infra.Logger
	pollInterval time.Duration
}

// New assembles a worker from its collaborators.
func New(opts Options) *Worker {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{
		queue:        opts.Queue,
		generator:    opts.Generator,
		watermark:    opts.Watermark,
		sink:         opts.Sink,
		ledger:       opts.Ledger,
		mirror:       opts.Mirror,
		httpClient:   httpClient,
		logger:       opts.Logger,
		pollInterval: pollInterval,
	}
}

// Run polls until the context is cancelled, sleeping one poll interval
// whenever the queue reports empty.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started, waiting for jobs")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.tick(ctx); err != nil {
			if !errors.Is(err, domain.ErrEmptyQueue) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.Error().Err(err).Msg("worker: failed to pop job")
			}
			w.idle(ctx)
		}
	}
}

// tick pops and fully processes at most one job.
func (w *Worker) tick(ctx context.Context) error {
	job, err := w.queue.Pop(ctx)
	if err != nil {
		return err
	}
	w.process(ctx, job)
	return nil
}

func (w *Worker) process(ctx context.Context, job *domain.Job) {
	w.logger.Info().Str("job_id", job.ID).Int64("user_id", job.UserID).Msg("worker: picked job")

	processing := domain.JobStatusProcessing
	if err := w.queue.Update(ctx, job.ID, domain.JobUpdate{Status: &processing}); err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: mark processing failed")
	}

	result, err := w.runPipeline(ctx, job)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}
	w.complete(ctx, job, result)
}

// runPipeline executes generation, post-processing, delivery, and billing for
// one job. The returned error is the job's failure reason; a panic anywhere
// in the stages is converted to one so a single poisoned job cannot take the
// loop down.
func (w *Worker) runPipeline(ctx context.Context, job *domain.Job) (result *domain.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	tier := billing.TierFor(job.Parameters.Quality())

	artifact, err := w.generator.Generate(ctx, image.Request{
		Prompt:         job.Prompt,
		Size:           job.Parameters.Size(),
		Quality:        string(tier),
		SourceImageURL: job.Parameters.SourceImageURL(),
		RequestID:      job.ID,
	})
	if err != nil {
		return nil, err
	}

	data := artifact.Data
	if len(data) == 0 && artifact.URL != "" {
		data, err = w.download(ctx, artifact.URL)
		if err != nil {
			return nil, err
		}
	}

	enabled := !tier.WaivesWatermark()
	if explicit, ok := job.Parameters.Watermark(); ok {
		enabled = explicit
	}
	if len(data) > 0 && w.watermark != nil {
		data = w.watermark.Apply(data, enabled)
	}

	key := fmt.Sprintf("generations/%d/%s.png", job.UserID, job.ID)
	url, err := w.sink.Store(ctx, key, data, "image/png", artifact.URL)
	if err != nil {
		return nil, err
	}

	estimate := billing.EstimateCost(job.Prompt, job.Parameters.Quality())
	if w.ledger != nil {
		debit := billing.Debit{
			UserID: job.UserID,
			JobID:  job.ID,
			Amount: estimate.Cost,
			Tier:   estimate.Tier,
			Pool:   estimate.Pool,
		}
		if err := w.ledger.RecordDebit(ctx, debit); err != nil {
			w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: record debit failed")
		}
	}

	return &domain.Result{
		ImageURL: url,
		Cost:     estimate.Cost,
		Pool:     string(estimate.Pool),
	}, nil
}

func (w *Worker) complete(ctx context.Context, job *domain.Job, result *domain.Result) {
	completed := domain.JobStatusCompleted
	if err := w.queue.Update(ctx, job.ID, domain.JobUpdate{Status: &completed, Result: result}); err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: mark completed failed")
	}
	w.mirrorStatus(ctx, job, domain.JobStatusCompleted, result.ImageURL, "")
	w.logger.Info().Str("job_id", job.ID).Msg("worker: job completed")
}

func (w *Worker) fail(ctx context.Context, job *domain.Job, cause error) {
	failed := domain.JobStatusFailed
	reason := cause.Error()
	if err := w.queue.Update(ctx, job.ID, domain.JobUpdate{Status: &failed, Error: &reason}); err != nil && !errors.Is(err, domain.ErrNotFound) {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: mark failed failed")
	}
	w.mirrorStatus(ctx, job, domain.JobStatusFailed, "", reason)
	w.logger.Error().Err(cause).Str("job_id", job.ID).Msg("worker: job failed")
}

func (w *Worker) mirrorStatus(ctx context.Context, job *domain.Job, status domain.JobStatus, resultURL, errMsg string) {
	if w.mirror == nil {
		return
	}
	if err := w.mirror.UpsertStatus(ctx, job.ID, job.UserID, status, resultURL, errMsg); err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: mirror status failed")
	}
}

func (w *Worker) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("worker: create download request: %w", err)
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("worker: download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("worker: download artifact: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("worker: read artifact: %w", err)
	}
	return data, nil
}

func (w *Worker) idle(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
