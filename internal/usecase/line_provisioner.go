package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"
	"esim-storefront/internal/domain/ports/repository"
	"esim-storefront/internal/infra/logging"
	"esim-storefront/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const qrSize = 512

// LineResult is the outcome of a provisioning attempt. OK=false is a normal outcome.
type LineResult struct {
	OK   bool
	Line *model.Line
}

// LineProvisioner creates a line at the connectivity provider and persists it.
type LineProvisioner struct {
	provider adapter.ConnectivityProvider
	qr       adapter.QRRenderer
	store    adapter.QRCodeStore
	lines    repository.LineRepository
	plans    repository.PlanModelRepository
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewLineProvisioner(
	provider adapter.ConnectivityProvider,
	qr adapter.QRRenderer,
	store adapter.QRCodeStore,
	lines repository.LineRepository,
	plans repository.PlanModelRepository,
	timeout time.Duration,
	logger *zerolog.Logger,
) *LineProvisioner {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &LineProvisioner{
		provider: provider,
		qr:       qr,
		store:    store,
		lines:    lines,
		plans:    plans,
		timeout:  timeout,
		log:      logger,
	}
}

// ProvisionLine never returns a hard failure for provider problems: those yield OK=false
// and are logged. The returned error is reserved for a nil order.
func (p *LineProvisioner) ProvisionLine(ctx context.Context, order *model.Order) (LineResult, error) {
	if order.IsZero() {
		return LineResult{}, domain.ErrInvalidArgument
	}
	defer logging.TraceDuration(p.log, "LineProvisioner.ProvisionLine")()
	log := logging.With(logging.WithStep(logging.WithOrderID(ctx, order.ID), "provision"), p.log)

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	line, err := p.provision(ctx, order)
	metrics.ObserveProvisioning(time.Since(start).Seconds())
	if err != nil {
		result := "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
		var perr *domain.ProvisioningError
		if errors.As(err, &perr) && perr.Err == nil {
			result = "malformed"
		}
		metrics.IncProvisioning(result)
		log.Warn().Err(err).Str("result", result).Msg("line provisioning failed")
		return LineResult{OK: false}, nil
	}
	metrics.IncProvisioning("ok")
	log.Info().Str("line_id", line.ID).Str("iccid", logging.Redact(line.ICCID, false)).Msg("line provisioned")
	return LineResult{OK: true, Line: line}, nil
}

func (p *LineProvisioner) provision(ctx context.Context, order *model.Order) (*model.Line, error) {
	// a line persisted by an earlier attempt is reused; allocating again would bill a second line
	existing, err := p.lines.FindByOrderID(ctx, repository.NoTX, order.ID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "load existing line", Err: err}
	}

	plan, err := p.plans.FindByID(ctx, repository.NoTX, order.PlanModelID)
	if err != nil {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "load plan model", Err: err}
	}
	bundle := order.BundleID
	if bundle == "" {
		bundle = plan.BundleID
	}

	alloc, err := p.provider.CreateLine(ctx, bundle, plan.Refill.AmountMB, plan.Refill.Days)
	if err != nil {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "create line", Err: err}
	}
	if !alloc.Ack {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "provider did not acknowledge"}
	}
	if strings.TrimSpace(alloc.ICCID) == "" || strings.TrimSpace(alloc.LPACode) == "" {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "missing iccid or lpa code"}
	}

	png, err := p.qr.PNG(alloc.LPACode, qrSize)
	if err != nil {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "render qr", Err: err}
	}
	qrURL, err := p.store.Put(ctx, "qr/"+alloc.ICCID+".png", png)
	if err != nil {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "store qr", Err: err}
	}

	now := time.Now()
	line := &model.Line{
		ID:               uuid.NewString(),
		ICCID:            alloc.ICCID,
		LPACode:          alloc.LPACode,
		QRCode:           qrURL,
		Status:           alloc.Status,
		AllowedUsageKB:   plan.Refill.AmountMB * 1024,
		RemainingUsageKB: plan.Refill.AmountMB * 1024,
		RemainingDays:    plan.Refill.Days,
		UserID:           order.UserID,
		OrderID:          order.ID,
		BundleID:         bundle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if line.Status == "" {
		line.Status = "active"
	}
	if err := p.lines.UpsertByICCID(ctx, repository.NoTX, line); err != nil {
		return nil, &domain.ProvisioningError{OrderID: order.ID, Reason: "persist line", Err: err}
	}
	return line, nil
}
