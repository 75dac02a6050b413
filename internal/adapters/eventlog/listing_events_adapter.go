// Package eventlog пишет события жизненного цикла объявлений в лог, когда брокер выключен
package eventlog

import (
	"context"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

type LogListingEventsAdapter struct{}

func NewLogListingEventsAdapter() *LogListingEventsAdapter {
	return &LogListingEventsAdapter{}
}

func (a *LogListingEventsAdapter) PublishCreated(ctx context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	contextkeys.LoggerFromContext(ctx).Info("Listings created", port.Fields{
		"component":   "LogListingEventsAdapter",
		"listing_ids": ids,
	})
	return nil
}

func (a *LogListingEventsAdapter) PublishDeleted(ctx context.Context, listing domain.Listing) error {
	contextkeys.LoggerFromContext(ctx).Info("Listing deleted", port.Fields{
		"component":  "LogListingEventsAdapter",
		"listing_id": listing.ID,
		"url":        listing.URL,
	})
	return nil
}

var _ port.ListingEventsPort = (*LogListingEventsAdapter)(nil)
