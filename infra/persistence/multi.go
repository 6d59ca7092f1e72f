package persistence

import (
	"context"
	"errors"

	"github.com/verticore/liftd/core/persistence"
)

// MultiGateway fans writes out to several gateways. Every gateway is
// attempted even when an earlier one fails; errors are joined.
type MultiGateway struct {
	Gateways []persistence.Gateway
}

// NewMultiGateway creates a MultiGateway over the provided gateways.
func NewMultiGateway(gws ...persistence.Gateway) *MultiGateway {
	return &MultiGateway{Gateways: gws}
}

func (m *MultiGateway) UpsertUnitState(ctx context.Context, rec persistence.UnitRecord) error {
	var errs []error
	for _, g := range m.Gateways {
		if err := g.UpsertUnitState(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiGateway) AppendEvent(ctx context.Context, ev persistence.EventRecord) error {
	var errs []error
	for _, g := range m.Gateways {
		if err := g.AppendEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiGateway) Close() error {
	var errs []error
	for _, g := range m.Gateways {
		if err := g.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
