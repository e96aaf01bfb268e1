package repository

import (
	"testing"
	"time"

	"cryptotrack-backend/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) (*gorm.DB, *Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, models.MigrateAssetModels(db))
	require.NoError(t, models.MigrateSubscriberModels(db))
	return db, NewRepository(db)
}

func insertPricePoint(t *testing.T, db *gorm.DB, assetID uint, price float64, createdAt time.Time) models.PricePoint {
	t.Helper()
	point := models.PricePoint{AssetID: assetID, Price: decimal.NewFromFloat(price), CreatedAt: createdAt}
	require.NoError(t, db.Create(&point).Error)
	return point
}

func TestCreateAssetWithInitialPrice(t *testing.T) {
	db, repo := openTestDB(t)

	initial := decimal.NewFromFloat(105000.5)
	asset, err := repo.CreateAsset("Bitcoin", "BTC", &initial)
	require.NoError(t, err)
	require.NotZero(t, asset.ID)

	history, err := repo.PriceHistory(asset.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Price.Equal(initial))

	var count int64
	db.Model(&models.PricePoint{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateAssetDuplicateSymbol(t *testing.T) {
	_, repo := openTestDB(t)

	_, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)

	_, err = repo.CreateAsset("Bitcoin again", "BTC", nil)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestGetAssetBySymbol(t *testing.T) {
	_, repo := openTestDB(t)

	created, err := repo.CreateAsset("Ethereum", "ETH", nil)
	require.NoError(t, err)

	found, err := repo.GetAssetBySymbol("ETH")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetAssetBySymbol("NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestPricePerAssetInterleavedHistory(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	eth, err := repo.CreateAsset("Ethereum", "ETH", nil)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertPricePoint(t, db, btc.ID, 100000, base)
	insertPricePoint(t, db, eth.ID, 3300, base.Add(time.Minute))
	insertPricePoint(t, db, btc.ID, 105000, base.Add(2*time.Minute))
	insertPricePoint(t, db, eth.ID, 3400, base.Add(3*time.Minute))
	// an older observation written later must not win
	insertPricePoint(t, db, btc.ID, 99000, base.Add(time.Minute))

	latest, err := repo.LatestPricePerAsset()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.True(t, latest[btc.ID].Price.Equal(decimal.NewFromInt(105000)))
	assert.True(t, latest[eth.ID].Price.Equal(decimal.NewFromInt(3400)))
}

func TestLatestPricePerAssetTieBreaksOnHighestID(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertPricePoint(t, db, btc.ID, 100000, at)
	second := insertPricePoint(t, db, btc.ID, 100500, at)

	latest, err := repo.LatestPricePerAsset(btc.ID)
	require.NoError(t, err)
	require.Contains(t, latest, btc.ID)
	assert.Equal(t, second.ID, latest[btc.ID].ID)
	assert.True(t, latest[btc.ID].Price.Equal(decimal.NewFromFloat(100500)))
}

func TestLatestPricePerAssetScoped(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	eth, err := repo.CreateAsset("Ethereum", "ETH", nil)
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertPricePoint(t, db, btc.ID, 100000, at)
	insertPricePoint(t, db, eth.ID, 3400, at)

	latest, err := repo.LatestPricePerAsset(eth.ID)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
	assert.Contains(t, latest, eth.ID)
}

func TestPriceHistoryIsAppendOnlyOrdered(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	insertPricePoint(t, db, btc.ID, 100000, base.Add(time.Hour))
	insertPricePoint(t, db, btc.ID, 99000, base)

	history, err := repo.PriceHistory(btc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].CreatedAt.Before(history[1].CreatedAt))
}

func TestDeleteAssetRemovesHistoryAndTracking(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	insertPricePoint(t, db, btc.ID, 100000, time.Now().UTC())

	_, err = repo.CreateSubscriber(42, "alice", models.Interval30Min, []uint{btc.ID})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAsset(btc.ID))

	var priceCount, linkCount int64
	db.Model(&models.PricePoint{}).Where("asset_id = ?", btc.ID).Count(&priceCount)
	db.Table("subscriber_assets").Where("asset_id = ?", btc.ID).Count(&linkCount)
	assert.Zero(t, priceCount)
	assert.Zero(t, linkCount)

	// the subscriber itself survives with an empty tracked set
	sub, err := repo.GetSubscriber(42)
	require.NoError(t, err)
	assert.Empty(t, sub.TrackedAssets)

	assert.ErrorIs(t, repo.DeleteAsset(btc.ID), ErrNotFound)
}

func TestDeletePriceHistory(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	at := time.Now().UTC()
	insertPricePoint(t, db, btc.ID, 100000, at)
	insertPricePoint(t, db, btc.ID, 101000, at.Add(time.Minute))

	deleted, err := repo.DeletePriceHistory(btc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	history, err := repo.PriceHistory(btc.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCreateSubscriberKeepsExternalID(t *testing.T) {
	_, repo := openTestDB(t)

	sub, err := repo.CreateSubscriber(123456789, "alice", models.Interval1Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(123456789), sub.ID)
	assert.Nil(t, sub.LastNotifiedAt)

	loaded, err := repo.GetSubscriber(123456789)
	require.NoError(t, err)
	assert.Equal(t, models.Interval1Hour, loaded.IntervalMinutes)
}

func TestSetTrackedAssetsReplacesSet(t *testing.T) {
	_, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	eth, err := repo.CreateAsset("Ethereum", "ETH", nil)
	require.NoError(t, err)

	_, err = repo.CreateSubscriber(42, "alice", models.Interval30Min, []uint{btc.ID})
	require.NoError(t, err)

	require.NoError(t, repo.SetTrackedAssets(42, []uint{eth.ID}))

	sub, err := repo.GetSubscriber(42)
	require.NoError(t, err)
	require.Len(t, sub.TrackedAssets, 1)
	assert.Equal(t, "ETH", sub.TrackedAssets[0].Symbol)

	// clearing the set is allowed
	require.NoError(t, repo.SetTrackedAssets(42, nil))
	sub, err = repo.GetSubscriber(42)
	require.NoError(t, err)
	assert.Empty(t, sub.TrackedAssets)
}

func TestSetTrackedAssetsRejectsUnknownID(t *testing.T) {
	_, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	_, err = repo.CreateSubscriber(42, "alice", models.Interval30Min, nil)
	require.NoError(t, err)

	err = repo.SetTrackedAssets(42, []uint{btc.ID, 9999})
	assert.Error(t, err)

	sub, err := repo.GetSubscriber(42)
	require.NoError(t, err)
	assert.Empty(t, sub.TrackedAssets, "a rejected assignment must not partially apply")
}

func TestUpdateSubscriberPartialUpdates(t *testing.T) {
	_, repo := openTestDB(t)

	_, err := repo.CreateSubscriber(42, "alice", models.Interval30Min, nil)
	require.NoError(t, err)

	interval := models.Interval1Day
	updated, err := repo.UpdateSubscriber(42, nil, &interval)
	require.NoError(t, err)
	assert.Equal(t, models.Interval1Day, updated.IntervalMinutes)
	assert.Equal(t, "alice", updated.Name)

	_, err = repo.UpdateSubscriber(9999, nil, &interval)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteSubscriber(t *testing.T) {
	db, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	_, err = repo.CreateSubscriber(42, "alice", models.Interval30Min, []uint{btc.ID})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteSubscriber(42))

	_, err = repo.GetSubscriber(42)
	assert.ErrorIs(t, err, ErrNotFound)

	var linkCount int64
	db.Table("subscriber_assets").Where("subscriber_id = ?", 42).Count(&linkCount)
	assert.Zero(t, linkCount)

	// the asset itself is untouched
	_, err = repo.GetAssetBySymbol("BTC")
	assert.NoError(t, err)
}

func TestSetSubscriberLastNotifiedNeverMovesBackwards(t *testing.T) {
	_, repo := openTestDB(t)

	_, err := repo.CreateSubscriber(42, "alice", models.Interval30Min, nil)
	require.NoError(t, err)

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, repo.SetSubscriberLastNotified(42, later))
	require.NoError(t, repo.SetSubscriberLastNotified(42, earlier))

	sub, err := repo.GetSubscriber(42)
	require.NoError(t, err)
	require.NotNil(t, sub.LastNotifiedAt)
	assert.True(t, sub.LastNotifiedAt.Equal(later), "a stale update must not rewind the timestamp")
}

func TestListSubscribersWithTrackedAssets(t *testing.T) {
	_, repo := openTestDB(t)

	btc, err := repo.CreateAsset("Bitcoin", "BTC", nil)
	require.NoError(t, err)
	_, err = repo.CreateSubscriber(1, "alice", models.Interval10Min, []uint{btc.ID})
	require.NoError(t, err)
	_, err = repo.CreateSubscriber(2, "bob", models.Interval1Day, nil)
	require.NoError(t, err)

	subs, err := repo.ListSubscribersWithTrackedAssets()
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Len(t, subs[0].TrackedAssets, 1)
	assert.Empty(t, subs[1].TrackedAssets)
}
