package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptotrack-backend/models"

	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory Store for pipeline tests
type fakeStore struct {
	mu sync.Mutex

	assets      []models.Asset
	subscribers []models.Subscriber
	latest      map[uint]models.PricePoint

	appended     []appendCall
	appendErr    map[uint]error
	lastNotified map[uint]time.Time

	listAssetsErr      error
	listSubscribersErr error
	latestErr          error
	setNotifiedErr     map[uint]error
}

type appendCall struct {
	assetID uint
	price   decimal.Decimal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		latest:         map[uint]models.PricePoint{},
		appendErr:      map[uint]error{},
		lastNotified:   map[uint]time.Time{},
		setNotifiedErr: map[uint]error{},
	}
}

func (s *fakeStore) ListAssets() ([]models.Asset, error) {
	if s.listAssetsErr != nil {
		return nil, s.listAssetsErr
	}
	return s.assets, nil
}

func (s *fakeStore) AppendPricePoint(assetID uint, price decimal.Decimal) (*models.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendErr[assetID]; err != nil {
		return nil, err
	}
	s.appended = append(s.appended, appendCall{assetID: assetID, price: price})
	point := models.PricePoint{ID: uint(len(s.appended)), AssetID: assetID, Price: price, CreatedAt: time.Now()}
	s.latest[assetID] = point
	return &point, nil
}

func (s *fakeStore) LatestPricePerAsset(assetIDs ...uint) (map[uint]models.PricePoint, error) {
	if s.latestErr != nil {
		return nil, s.latestErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(assetIDs) == 0 {
		out := make(map[uint]models.PricePoint, len(s.latest))
		for id, p := range s.latest {
			out[id] = p
		}
		return out, nil
	}
	out := make(map[uint]models.PricePoint, len(assetIDs))
	for _, id := range assetIDs {
		if p, ok := s.latest[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeStore) ListSubscribersWithTrackedAssets() ([]models.Subscriber, error) {
	if s.listSubscribersErr != nil {
		return nil, s.listSubscribersErr
	}
	return s.subscribers, nil
}

func (s *fakeStore) SetSubscriberLastNotified(id uint, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setNotifiedErr[id]; err != nil {
		return err
	}
	if prev, ok := s.lastNotified[id]; !ok || !ts.Before(prev) {
		s.lastNotified[id] = ts
	}
	return nil
}

// fakeFetcher returns a fixed price map or error
type fakeFetcher struct {
	prices map[string]decimal.Decimal
	err    error

	calls [][]string
}

func (f *fakeFetcher) FetchPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	f.calls = append(f.calls, symbols)
	if f.err != nil {
		return nil, f.err
	}
	return f.prices, nil
}

// fakeMessenger records deliveries and fails for selected subscribers
type fakeMessenger struct {
	mu        sync.Mutex
	failFor   map[uint]bool
	delivered map[uint]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{failFor: map[uint]bool{}, delivered: map[uint]string{}}
}

func (m *fakeMessenger) Deliver(subscriberID uint, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[subscriberID] {
		return fmt.Errorf("delivery failed for subscriber %d", subscriberID)
	}
	m.delivered[subscriberID] = text
	return nil
}
