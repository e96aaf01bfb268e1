// Package tracker implements the price refresh and notification pipeline:
// one scheduled cycle fetches quotes for every tracked asset, appends the
// answered prices to the ledger, resolves which subscribers are due and
// fans the notifications out to them.
package tracker

import (
	"context"
	"time"

	"cryptotrack-backend/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence collaborator the pipeline requires
type Store interface {
	ListAssets() ([]models.Asset, error)
	AppendPricePoint(assetID uint, price decimal.Decimal) (*models.PricePoint, error)
	LatestPricePerAsset(assetIDs ...uint) (map[uint]models.PricePoint, error)
	ListSubscribersWithTrackedAssets() ([]models.Subscriber, error)
	SetSubscriberLastNotified(id uint, ts time.Time) error
}

// Fetcher is the external quote source collaborator
type Fetcher interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// Messenger delivers one text message to one subscriber. A delivery failure
// is isolated to that subscriber.
type Messenger interface {
	Deliver(subscriberID uint, text string) error
}

// DeliveryLog records per-subscriber delivery outcomes. Recording is
// best-effort and never affects the cycle result.
type DeliveryLog interface {
	RecordDelivery(subscriberID uint, cycleTime time.Time, delivered bool, detail string)
}
