package tracker

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"cryptotrack-backend/models"
)

// DispatchResult summarizes one fan-out
type DispatchResult struct {
	Delivered int
	Failed    int
}

// Dispatcher fans notifications out to due subscribers. Deliveries run on a
// bounded worker pool; each subscriber's outcome is captured independently
// and a failure for one never prevents attempted delivery to another.
type Dispatcher struct {
	store         Store
	messenger     Messenger
	deliveryLog   DeliveryLog
	quoteCurrency string
	workers       int
}

// NewDispatcher creates a new dispatcher. deliveryLog may be nil.
func NewDispatcher(store Store, messenger Messenger, deliveryLog DeliveryLog, quoteCurrency string, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		store:         store,
		messenger:     messenger,
		deliveryLog:   deliveryLog,
		quoteCurrency: quoteCurrency,
		workers:       workers,
	}
}

// Dispatch builds one price summary per due subscriber and delivers it.
// Only a confirmed delivery advances that subscriber's last-notified
// timestamp to cycleTime; a failed delivery leaves it untouched so the
// subscriber stays due and is retried on the next tick.
func (d *Dispatcher) Dispatch(subscribers []models.Subscriber, cycleTime time.Time) (DispatchResult, error) {
	if len(subscribers) == 0 {
		return DispatchResult{}, nil
	}

	// One grouped read covers every tracked asset of every due subscriber.
	assetIDs := collectAssetIDs(subscribers)
	latest, err := d.store.LatestPricePerAsset(assetIDs...)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("failed to load latest prices: %w", err)
	}

	jobs := make(chan models.Subscriber)
	var delivered, failed int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				ok := d.deliverOne(sub, latest, cycleTime)
				mu.Lock()
				if ok {
					delivered++
				} else {
					failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, sub := range subscribers {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	return DispatchResult{Delivered: delivered, Failed: failed}, nil
}

func (d *Dispatcher) deliverOne(sub models.Subscriber, latest map[uint]models.PricePoint, cycleTime time.Time) bool {
	text := FormatPriceLines(sub.TrackedAssets, latest, d.quoteCurrency)
	if text == "" {
		// Nothing priced yet for any tracked asset, nothing to send.
		return true
	}

	if err := d.messenger.Deliver(sub.ID, text); err != nil {
		log.Printf("Delivery to subscriber %d failed: %v", sub.ID, err)
		d.record(sub.ID, cycleTime, false, err.Error())
		return false
	}

	if err := d.store.SetSubscriberLastNotified(sub.ID, cycleTime); err != nil {
		// The message went out; the subscriber will be re-notified next
		// tick because the timestamp did not advance.
		log.Printf("Failed to advance last-notified for subscriber %d: %v", sub.ID, err)
		d.record(sub.ID, cycleTime, false, err.Error())
		return false
	}

	d.record(sub.ID, cycleTime, true, "")
	return true
}

func (d *Dispatcher) record(subscriberID uint, cycleTime time.Time, ok bool, detail string) {
	if d.deliveryLog == nil {
		return
	}
	d.deliveryLog.RecordDelivery(subscriberID, cycleTime, ok, detail)
}

func collectAssetIDs(subscribers []models.Subscriber) []uint {
	seen := make(map[uint]bool)
	ids := make([]uint, 0)
	for _, sub := range subscribers {
		for _, asset := range sub.TrackedAssets {
			if !seen[asset.ID] {
				seen[asset.ID] = true
				ids = append(ids, asset.ID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FormatPriceLines renders one line per asset with its latest known price.
// Assets with no price point yet are left out; an asset that was not
// updated this cycle still contributes its last known price.
func FormatPriceLines(assets []models.Asset, latest map[uint]models.PricePoint, quoteCurrency string) string {
	lines := make([]string, 0, len(assets))
	for _, asset := range assets {
		point, ok := latest[asset.ID]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s %s", asset.Name, asset.Symbol, point.Price.String(), quoteCurrency))
	}
	return strings.Join(lines, "\n")
}
