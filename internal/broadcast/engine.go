// Package broadcast fans one piece of content out to every active user,
// with rate limiting and per-recipient failure bookkeeping.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ticketline/internal/directory"
	"ticketline/internal/metrics"
	"ticketline/internal/models"
	"ticketline/internal/tracing"
	"ticketline/internal/transport"
)

// maxRateLimitRetries bounds retries of a single recipient after the
// platform asks us to slow down.
const maxRateLimitRetries = 3

// progressEvery is how many recipients pass between progress reports.
const progressEvery = 10

// Result summarizes one completed broadcast run.
type Result struct {
	Total   int
	Sent    int
	Failed  int
	Elapsed time.Duration
}

// Throughput returns messages per second for the run.
func (r Result) Throughput() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		secs = 0.001
	}
	return float64(r.Sent) / secs
}

// ProgressFunc receives periodic delivery progress during a run.
type ProgressFunc func(done, total int)

// Engine runs broadcasts sequentially over a snapshot of the active
// audience.
type Engine struct {
	dir       *directory.Service
	transport transport.Transport
	limiter   *rate.Limiter

	// sleep is swappable so tests do not wait out real retry delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine wires a broadcast engine sending at most perSecond messages
// per second.
func NewEngine(dir *directory.Service, t transport.Transport, perSecond float64) *Engine {
	if perSecond <= 0 {
		perSecond = 25
	}
	return &Engine{
		dir:       dir,
		transport: t,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		sleep:     sleepCtx,
	}
}

// SetSleeper overrides the retry delay, for tests.
func (e *Engine) SetSleeper(sleep func(ctx context.Context, d time.Duration) error) {
	e.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run delivers content to every active, non-banned user. The audience
// is snapshotted once at the start; recipients who block the bot are
// deactivated and counted as failed. The run record is persisted before
// returning.
func (e *Engine) Run(ctx context.Context, adminID int64, content transport.Content, progress ProgressFunc) (Result, error) {
	ids, err := e.dir.ListActiveIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("broadcast: list audience: %w", err)
	}

	ctx, span := tracing.BroadcastSpan(ctx, len(ids))
	defer span.End()

	started := time.Now()
	res := Result{Total: len(ids)}
	log.Info().Int64("admin_id", adminID).Int("total", res.Total).Msg("broadcast: starting")

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("broadcast: aborted: %w", err)
			tracing.EndWithError(span, err)
			return res, err
		}
		if err := e.limiter.Wait(ctx); err != nil {
			err = fmt.Errorf("broadcast: aborted: %w", err)
			tracing.EndWithError(span, err)
			return res, err
		}

		if e.deliver(ctx, id, content) {
			res.Sent++
			metrics.BroadcastDeliveries.WithLabelValues("sent").Inc()
		} else {
			res.Failed++
			metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
		}

		if progress != nil && (i+1)%progressEvery == 0 {
			progress(i+1, res.Total)
		}
	}

	res.Elapsed = time.Since(started)
	metrics.BroadcastRuns.Inc()
	metrics.BroadcastDuration.Observe(res.Elapsed.Seconds())

	e.record(ctx, adminID, content, res)
	log.Info().
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Dur("elapsed", res.Elapsed).
		Msg("broadcast: finished")
	return res, nil
}

// deliver attempts one recipient, honoring platform back-pressure with
// a bounded retry. Returns true on success.
func (e *Engine) deliver(ctx context.Context, userID int64, content transport.Content) bool {
	for attempt := 0; ; attempt++ {
		_, err := e.transport.CopyToUser(ctx, userID, content)
		if err == nil {
			return true
		}

		if transport.IsForbidden(err) {
			e.deactivate(ctx, userID)
			return false
		}

		if retryAfter, ok := transport.RetryAfter(err); ok && attempt < maxRateLimitRetries {
			log.Warn().
				Int64("user_id", userID).
				Dur("retry_after", retryAfter).
				Msg("broadcast: rate limited, backing off")
			if e.sleep(ctx, retryAfter) != nil {
				return false
			}
			continue
		}

		log.Error().Err(err).Int64("user_id", userID).Msg("broadcast: delivery failed")
		return false
	}
}

func (e *Engine) deactivate(ctx context.Context, userID int64) {
	user, err := e.dir.LookupByExternal(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("broadcast: failed to load blocked user")
		return
	}
	if err := e.dir.MarkInactive(ctx, user); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("broadcast: failed to deactivate user")
		return
	}
	log.Info().Int64("user_id", userID).Msg("broadcast: user blocked the bot, deactivated")
}

func (e *Engine) record(ctx context.Context, adminID int64, content transport.Content, res Result) {
	run := &models.BroadcastRun{
		AdminID:     adminID,
		ContentKind: content.Kind.String(),
		Summary:     content.Preview(120),
		SentCount:   res.Sent,
		FailedCount: res.Failed,
		ElapsedMS:   res.Elapsed.Milliseconds(),
		CreatedAt:   time.Now(),
	}
	if err := e.dir.RecordBroadcast(ctx, run); err != nil {
		log.Error().Err(err).Msg("broadcast: failed to persist run record")
	}
}
