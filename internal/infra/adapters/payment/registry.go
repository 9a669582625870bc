package payment

import (
	"fmt"
	"net/url"
	"strings"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/ports/adapter"
)

var _ adapter.GatewayRegistry = (*Registry)(nil)

// Registry maps provider names (creditcard, paypal, noop) to gateways.
type Registry struct {
	def      string
	gateways map[string]adapter.ClearingGateway
}

func NewRegistry(defaultProvider string) *Registry {
	return &Registry{def: strings.ToLower(defaultProvider), gateways: map[string]adapter.ClearingGateway{}}
}

func (r *Registry) Register(name string, gw adapter.ClearingGateway) {
	r.gateways[strings.ToLower(name)] = gw
}

// Gateway returns domain.ErrConfiguration for unknown or unconfigured providers.
func (r *Registry) Gateway(name string) (adapter.ClearingGateway, error) {
	if name == "" {
		name = r.def
	}
	gw, ok := r.gateways[strings.ToLower(name)]
	if !ok || gw == nil {
		return nil, fmt.Errorf("payment provider %q: %w", name, domain.ErrConfiguration)
	}
	return gw, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.gateways))
	for k := range r.gateways {
		out = append(out, k)
	}
	return out
}

func appendQuery(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
