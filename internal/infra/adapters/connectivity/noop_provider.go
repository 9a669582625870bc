package connectivity

import (
	"context"
	"fmt"
	"sync"

	"esim-storefront/internal/domain/ports/adapter"
)

var _ adapter.ConnectivityProvider = (*NoopProvider)(nil)

// NoopProvider allocates fake lines in memory for local runs.
type NoopProvider struct {
	mu    sync.Mutex
	seq   int64
	lines map[string]adapter.LineDetail
	order []string
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{lines: map[string]adapter.LineDetail{}}
}

func (p *NoopProvider) CreateLine(ctx context.Context, bundleID string, refillMB int64, refillDays int) (adapter.LineAllocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	iccid := fmt.Sprintf("89000000000000%05d", p.seq)
	p.lines[iccid] = adapter.LineDetail{
		ICCID:            iccid,
		Status:           "active",
		AllowedUsageKB:   refillMB * 1024,
		RemainingUsageKB: refillMB * 1024,
		RemainingDays:    refillDays,
	}
	p.order = append(p.order, iccid)
	return adapter.LineAllocation{
		Ack:     true,
		ICCID:   iccid,
		LPACode: "LPA:1$smdp.noop.local$" + iccid,
		Status:  "active",
	}, nil
}

func (p *NoopProvider) LineDetail(ctx context.Context, iccid string) (adapter.LineDetail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.lines[iccid]
	if !ok {
		return adapter.LineDetail{}, fmt.Errorf("noop line %s not found", iccid)
	}
	return d, nil
}

func (p *NoopProvider) ListLines(ctx context.Context, page, perPage int) (adapter.LinePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 100
	}
	start := (page - 1) * perPage
	if start >= len(p.order) {
		return adapter.LinePage{}, nil
	}
	end := start + perPage
	out := adapter.LinePage{}
	if end < len(p.order) {
		out.NextPage = page + 1
	} else {
		end = len(p.order)
	}
	for _, id := range p.order[start:end] {
		out.Lines = append(out.Lines, p.lines[id])
	}
	return out, nil
}
