package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cryptotrack-backend/models"

	"github.com/shopspring/decimal"
)

// ErrNoAssets indicates there is nothing to refresh
var ErrNoAssets = errors.New("no assets to refresh")

// UpdatedAsset is one asset that received a fresh price point this cycle
type UpdatedAsset struct {
	Asset models.Asset
	Price decimal.Decimal
}

// Orchestrator drives exactly one price refresh cycle
type Orchestrator struct {
	store   Store
	fetcher Fetcher
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(store Store, fetcher Fetcher) *Orchestrator {
	return &Orchestrator{store: store, fetcher: fetcher}
}

// RunCycle loads the asset set, fetches a batched quote and appends one
// price point per answered symbol. It returns the assets that were actually
// updated this cycle.
//
// A fetch failure aborts the cycle before any ledger write; the next
// scheduled tick retries from scratch. An asset whose symbol is absent from
// the response is skipped silently, its latest price point remains the
// prior one. A storage failure on one asset's append is logged and does not
// abort the appends for the remaining assets.
func (o *Orchestrator) RunCycle(ctx context.Context) ([]UpdatedAsset, error) {
	assets, err := o.store.ListAssets()
	if err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	if len(assets) == 0 {
		return nil, ErrNoAssets
	}

	symbols := make([]string, 0, len(assets))
	for _, asset := range assets {
		symbols = append(symbols, asset.Symbol)
	}

	prices, err := o.fetcher.FetchPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("price fetch failed: %w", err)
	}

	updated := make([]UpdatedAsset, 0, len(assets))
	for _, asset := range assets {
		price, ok := prices[asset.Symbol]
		if !ok {
			// No quote this cycle, keep the prior price point.
			continue
		}
		if _, err := o.store.AppendPricePoint(asset.ID, price); err != nil {
			log.Printf("Failed to append price for %s: %v", asset.Symbol, err)
			continue
		}
		updated = append(updated, UpdatedAsset{Asset: asset, Price: price})
	}

	return updated, nil
}
