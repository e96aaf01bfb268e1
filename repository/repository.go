package repository

import (
	"errors"
	"fmt"
	"time"

	"cryptotrack-backend/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrStorageUnavailable indicates the persistence layer could not complete
// a read or write. Callers check it with errors.Is.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrNotFound indicates the requested record does not exist
var ErrNotFound = errors.New("record not found")

// Repository provides the persistence operations the price tracking core
// and the admin API require. It owns no state beyond the shared GORM handle
// and is passed by reference from the composition root.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository backed by the given database handle
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}

// ListAssets returns all tracked assets
func (r *Repository) ListAssets() ([]models.Asset, error) {
	var assets []models.Asset
	if err := r.db.Order("id").Find(&assets).Error; err != nil {
		return nil, storageErr("list assets", err)
	}
	return assets, nil
}

// GetAssetBySymbol returns the asset with the given ticker symbol
func (r *Repository) GetAssetBySymbol(symbol string) (*models.Asset, error) {
	var asset models.Asset
	if err := r.db.Where("symbol = ?", symbol).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get asset", err)
	}
	return &asset, nil
}

// CreateAsset creates a new asset, optionally seeding its first price point
func (r *Repository) CreateAsset(name, symbol string, initialPrice *decimal.Decimal) (*models.Asset, error) {
	asset := models.Asset{Name: name, Symbol: symbol}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&asset).Error; err != nil {
			return err
		}
		if initialPrice != nil {
			point := models.PricePoint{AssetID: asset.ID, Price: *initialPrice}
			if err := tx.Create(&point).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("create asset", err)
	}
	return &asset, nil
}

// DeleteAsset removes an asset together with its price history and any
// tracking references. Deletion is an administrative operation; the refresh
// cycle itself never deletes anything.
func (r *Repository) DeleteAsset(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var asset models.Asset
		if err := tx.First(&asset, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return storageErr("delete asset", err)
		}
		if err := tx.Where("asset_id = ?", id).Delete(&models.PricePoint{}).Error; err != nil {
			return storageErr("delete asset prices", err)
		}
		if err := tx.Exec("DELETE FROM subscriber_assets WHERE asset_id = ?", id).Error; err != nil {
			return storageErr("delete asset tracking", err)
		}
		if err := tx.Delete(&asset).Error; err != nil {
			return storageErr("delete asset", err)
		}
		return nil
	})
}

// AppendPricePoint writes one new immutable price observation for an asset
func (r *Repository) AppendPricePoint(assetID uint, price decimal.Decimal) (*models.PricePoint, error) {
	point := models.PricePoint{AssetID: assetID, Price: price}
	if err := r.db.Create(&point).Error; err != nil {
		return nil, storageErr("append price point", err)
	}
	return &point, nil
}

// LatestPricePerAsset returns the most recent price point for each asset in
// scope, keyed by asset id. With no ids given, all assets are covered.
// "Most recent" is the maximum created_at per asset, ties broken by highest
// id; correctness does not depend on any global insertion order across
// assets.
func (r *Repository) LatestPricePerAsset(assetIDs ...uint) (map[uint]models.PricePoint, error) {
	sub := r.db.Model(&models.PricePoint{}).
		Select("asset_id, MAX(created_at) AS max_created").
		Group("asset_id")
	if len(assetIDs) > 0 {
		sub = sub.Where("asset_id IN ?", assetIDs)
	}

	var points []models.PricePoint
	err := r.db.Model(&models.PricePoint{}).
		Joins("JOIN (?) latest ON price_points.asset_id = latest.asset_id AND price_points.created_at = latest.max_created", sub).
		Order("price_points.id").
		Find(&points).Error
	if err != nil {
		return nil, storageErr("latest price per asset", err)
	}

	// Rows arrive ordered by id, so the last one wins the timestamp tie.
	latest := make(map[uint]models.PricePoint, len(points))
	for _, p := range points {
		latest[p.AssetID] = p
	}
	return latest, nil
}

// PriceHistory returns the full price history of one asset, oldest first
func (r *Repository) PriceHistory(assetID uint) ([]models.PricePoint, error) {
	var points []models.PricePoint
	if err := r.db.Where("asset_id = ?", assetID).Order("created_at, id").Find(&points).Error; err != nil {
		return nil, storageErr("price history", err)
	}
	return points, nil
}

// DeletePriceHistory removes all price points of one asset and returns the
// number of deleted rows. Administrative operation.
func (r *Repository) DeletePriceHistory(assetID uint) (int64, error) {
	result := r.db.Where("asset_id = ?", assetID).Delete(&models.PricePoint{})
	if result.Error != nil {
		return 0, storageErr("delete price history", result.Error)
	}
	return result.RowsAffected, nil
}

// ListSubscribersWithTrackedAssets returns all subscribers with their
// tracked asset lists resolved
func (r *Repository) ListSubscribersWithTrackedAssets() ([]models.Subscriber, error) {
	var subscribers []models.Subscriber
	if err := r.db.Preload("TrackedAssets").Order("id").Find(&subscribers).Error; err != nil {
		return nil, storageErr("list subscribers", err)
	}
	return subscribers, nil
}

// GetSubscriber returns one subscriber with tracked assets resolved
func (r *Repository) GetSubscriber(id uint) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	if err := r.db.Preload("TrackedAssets").First(&subscriber, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get subscriber", err)
	}
	return &subscriber, nil
}

// CreateSubscriber creates a subscriber with the given external id, interval
// and initial tracked-asset set
func (r *Repository) CreateSubscriber(id uint, name string, intervalMinutes int, assetIDs []uint) (*models.Subscriber, error) {
	subscriber := models.Subscriber{ID: id, Name: name, IntervalMinutes: intervalMinutes}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&subscriber).Error; err != nil {
			return err
		}
		if len(assetIDs) > 0 {
			var assets []models.Asset
			if err := tx.Where("id IN ?", assetIDs).Find(&assets).Error; err != nil {
				return err
			}
			if len(assets) == 0 {
				return fmt.Errorf("no assets found with provided ids")
			}
			if err := tx.Model(&subscriber).Association("TrackedAssets").Replace(assets); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("create subscriber", err)
	}
	return &subscriber, nil
}

// UpdateSubscriber updates a subscriber's name and/or notification interval
func (r *Repository) UpdateSubscriber(id uint, name *string, intervalMinutes *int) (*models.Subscriber, error) {
	var subscriber models.Subscriber
	if err := r.db.First(&subscriber, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("update subscriber", err)
	}

	updates := map[string]interface{}{}
	if name != nil {
		updates["name"] = *name
	}
	if intervalMinutes != nil {
		updates["interval_minutes"] = *intervalMinutes
	}
	if len(updates) == 0 {
		return &subscriber, nil
	}

	if err := r.db.Model(&subscriber).Updates(updates).Error; err != nil {
		return nil, storageErr("update subscriber", err)
	}
	return &subscriber, nil
}

// SetTrackedAssets replaces a subscriber's tracked-asset set. Only asset ids
// that exist at assignment time are accepted.
func (r *Repository) SetTrackedAssets(subscriberID uint, assetIDs []uint) error {
	var subscriber models.Subscriber
	if err := r.db.First(&subscriber, subscriberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return storageErr("set tracked assets", err)
	}

	var assets []models.Asset
	if len(assetIDs) > 0 {
		if err := r.db.Where("id IN ?", assetIDs).Find(&assets).Error; err != nil {
			return storageErr("set tracked assets", err)
		}
		if len(assets) != len(assetIDs) {
			return fmt.Errorf("unknown asset id in tracked set")
		}
	}

	if err := r.db.Model(&subscriber).Association("TrackedAssets").Replace(assets); err != nil {
		return storageErr("set tracked assets", err)
	}
	return nil
}

// DeleteSubscriber removes a subscriber and its tracking references
func (r *Repository) DeleteSubscriber(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var subscriber models.Subscriber
		if err := tx.First(&subscriber, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return storageErr("delete subscriber", err)
		}
		if err := tx.Exec("DELETE FROM subscriber_assets WHERE subscriber_id = ?", id).Error; err != nil {
			return storageErr("delete subscriber tracking", err)
		}
		if err := tx.Delete(&subscriber).Error; err != nil {
			return storageErr("delete subscriber", err)
		}
		return nil
	})
}

// SetSubscriberLastNotified advances a subscriber's last-notified timestamp.
// The update is guarded so the timestamp never moves backwards.
func (r *Repository) SetSubscriberLastNotified(id uint, ts time.Time) error {
	result := r.db.Model(&models.Subscriber{}).
		Where("id = ? AND (last_notified_at IS NULL OR last_notified_at <= ?)", id, ts).
		Update("last_notified_at", ts)
	if result.Error != nil {
		return storageErr("set last notified", result.Error)
	}
	return nil
}
