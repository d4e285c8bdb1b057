package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/projectdesk/internal/model"
)

const (
	expiryWindow = 30 * 24 * time.Hour
	expiryLimit  = 5
)

// GetExpiryAlerts возвращает домены и хостинги, срок которых истекает в ближайшие 30 дней.
func (s *Service) GetExpiryAlerts(ctx context.Context, ownerID string) (*model.ExpiryAlerts, error) {
	alerts, err := s.expiryAlerts(ctx, ownerID, s.now())
	if err != nil {
		return nil, err
	}
	return &alerts, nil
}

func (s *Service) expiryAlerts(ctx context.Context, ownerID string, now time.Time) (model.ExpiryAlerts, error) {
	until := now.Add(expiryWindow)

	var domains, hostings []model.ExpiringItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.read(gctx, "expiring_domains", func(ctx context.Context) error {
			var err error
			domains, err = s.repo.GetExpiringDomains(ctx, ownerID, until, expiryLimit)
			return err
		})
	})
	g.Go(func() error {
		return s.read(gctx, "expiring_hostings", func(ctx context.Context) error {
			var err error
			hostings, err = s.repo.GetExpiringHostings(ctx, ownerID, until, expiryLimit)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return model.ExpiryAlerts{}, err
	}

	domains = nonNil(domains)
	hostings = nonNil(hostings)

	return model.ExpiryAlerts{
		Domains:       domains,
		Hostings:      hostings,
		DomainsCount:  len(domains),
		HostingsCount: len(hostings),
	}, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
