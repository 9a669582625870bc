package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/logging"
	"esim-storefront/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LineSyncReport counts what one sync pass did.
type LineSyncReport struct {
	Seen    int
	Updated int
	Expired int
	Unknown int
	Failed  int
}

// LineSyncUseCase mirrors the provider's line state into the lines table and expires
// orders whose line was deactivated.
type LineSyncUseCase struct {
	provider adapter.ConnectivityProvider
	lines    repository.LineRepository
	orders   repository.OrderRepository
	store    *OrderStore
	events   adapter.EventPublisher
	workers  int
	perPage  int
	log      *zerolog.Logger
}

func NewLineSyncUseCase(
	provider adapter.ConnectivityProvider,
	lines repository.LineRepository,
	orders repository.OrderRepository,
	store *OrderStore,
	events adapter.EventPublisher,
	workers, perPage int,
	logger *zerolog.Logger,
) *LineSyncUseCase {
	if workers <= 0 {
		workers = 4
	}
	if perPage <= 0 {
		perPage = 100
	}
	l := logger.With().Str("component", "LineSync").Logger()
	return &LineSyncUseCase{
		provider: provider,
		lines:    lines,
		orders:   orders,
		store:    store,
		events:   events,
		workers:  workers,
		perPage:  perPage,
		log:      &l,
	}
}

// SyncLines walks every provider page. Per-line failures are counted, not returned;
// only a failed page listing aborts the pass.
func (s *LineSyncUseCase) SyncLines(ctx context.Context) (LineSyncReport, error) {
	defer logging.TraceDuration(s.log, "LineSync.SyncLines")()

	var seen, updated, expired, unknown, failed int64
	page := 1
	for {
		p, err := s.provider.ListLines(ctx, page, s.perPage)
		if err != nil {
			return s.report(seen, updated, expired, unknown, failed), err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for _, entry := range p.Lines {
			entry := entry
			atomic.AddInt64(&seen, 1)
			g.Go(func() error {
				switch res := s.syncOne(gctx, entry); res {
				case "updated":
					atomic.AddInt64(&updated, 1)
				case "expired":
					atomic.AddInt64(&updated, 1)
					atomic.AddInt64(&expired, 1)
				case "unknown":
					atomic.AddInt64(&unknown, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return s.report(seen, updated, expired, unknown, failed), err
		}
		if p.NextPage <= page {
			break
		}
		page = p.NextPage
	}

	r := s.report(seen, updated, expired, unknown, failed)
	s.log.Info().Int("seen", r.Seen).Int("updated", r.Updated).Int("expired", r.Expired).Int("failed", r.Failed).Msg("line sync finished")
	return r, nil
}

func (s *LineSyncUseCase) report(seen, updated, expired, unknown, failed int64) LineSyncReport {
	return LineSyncReport{Seen: int(seen), Updated: int(updated), Expired: int(expired), Unknown: int(unknown), Failed: int(failed)}
}

// syncOne refreshes one line from the provider's detail endpoint.
func (s *LineSyncUseCase) syncOne(ctx context.Context, entry adapter.LineDetail) string {
	log := s.log.With().Str("iccid", logging.Redact(entry.ICCID, false)).Logger()

	line, err := s.lines.FindByICCID(ctx, repository.NoTX, entry.ICCID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncLineSync("unknown")
		return "unknown"
	}
	if err != nil {
		metrics.IncLineSync("failed")
		log.Error().Err(err).Msg("load line failed")
		return "failed"
	}

	detail, err := s.provider.LineDetail(ctx, entry.ICCID)
	if err != nil {
		metrics.IncLineSync("failed")
		log.Warn().Err(err).Msg("line detail failed")
		return "failed"
	}
	wasDeactivated := line.Deactivated()
	applyDetail(line, detail)
	if err := s.lines.UpsertByICCID(ctx, repository.NoTX, line); err != nil {
		metrics.IncLineSync("failed")
		log.Error().Err(err).Msg("upsert line failed")
		return "failed"
	}
	if !line.Deactivated() || wasDeactivated {
		metrics.IncLineSync("updated")
		return "updated"
	}

	order, err := s.orders.FindByLineID(ctx, repository.NoTX, line.ID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncLineSync("updated")
		return "updated"
	}
	if err != nil {
		metrics.IncLineSync("failed")
		log.Error().Err(err).Msg("load order for line failed")
		return "failed"
	}
	if err := s.store.MarkExpired(ctx, order.ID); err != nil {
		metrics.IncLineSync("failed")
		log.Warn().Err(err).Str("order_id", order.ID).Str("status", string(order.Status)).Msg("expire order failed")
		return "failed"
	}
	metrics.IncLineSync("expired")
	metrics.IncOrder(string(model.OrderStatusExpired))
	order.Status = model.OrderStatusExpired
	if s.events != nil {
		ev := adapter.OrderEvent{
			Type: adapter.EventOrderExpired, OrderID: order.ID, FriendlyID: order.FriendlyID,
			UserID: order.UserID, Status: string(order.Status), OccurredAt: time.Now().UTC(),
		}
		if err := s.events.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Msg("publish expired event failed")
		}
	}
	log.Info().Str("order_id", order.ID).Msg("order expired with its line")
	return "expired"
}

func applyDetail(line *model.Line, d adapter.LineDetail) {
	if d.Status != "" {
		line.Status = d.Status
	}
	line.AllowedUsageKB = d.AllowedUsageKB
	line.RemainingUsageKB = d.RemainingUsageKB
	line.RemainingDays = d.RemainingDays
	line.AutoRefillTurnedOn = d.AutoRefillTurnedOn
	line.AutoRefillAmountMB = d.AutoRefillAmountMB
	line.AutoRefillPrice = d.AutoRefillPrice
	if d.DeactivatedAt != nil {
		line.DeactivatedAt = d.DeactivatedAt
	}
	line.UpdatedAt = time.Now()
}
