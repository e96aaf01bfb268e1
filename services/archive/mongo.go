// Package archive mirrors per-asset price history to MongoDB when a
// connection is configured. The mirror is an operational convenience; the
// relational ledger stays the source of truth.
package archive

import (
	"context"
	"fmt"
	"log"
	"time"

	"cryptotrack-backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB collection names
const (
	DatabaseName           = "cryptotrack"
	PriceHistoryCollection = "price_history"

	connectTimeout = 10 * time.Second
	archiveTimeout = 60 * time.Second
)

// Store is the slice of the repository the archiver reads from
type Store interface {
	ListAssets() ([]models.Asset, error)
	PriceHistory(assetID uint) ([]models.PricePoint, error)
}

// PriceDocument is one archived asset history document
type PriceDocument struct {
	Symbol    string         `bson:"_id"`
	Name      string         `bson:"name"`
	UpdatedAt time.Time      `bson:"updated_at"`
	DataCount int            `bson:"data_count"`
	Prices    []ArchivedTick `bson:"prices"`
}

// ArchivedTick is one archived price observation
type ArchivedTick struct {
	Price     string    `bson:"price"`
	CreatedAt time.Time `bson:"created_at"`
}

// Archiver mirrors price history to MongoDB
type Archiver struct {
	client   *mongo.Client
	database *mongo.Database
	store    Store
}

// NewArchiver connects to MongoDB and returns an archiver. An empty uri
// disables archiving: the returned archiver is nil and no error is raised.
func NewArchiver(uri string, store Store) (*Archiver, error) {
	if uri == "" {
		log.Println("MONGODB_URI not set, price archiving disabled")
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	log.Println("MongoDB price archive connected")
	return &Archiver{
		client:   client,
		database: client.Database(DatabaseName),
		store:    store,
	}, nil
}

// ArchiveAll mirrors the full price history of every asset, one document
// per ticker symbol. A failure for one asset does not stop the others.
func (a *Archiver) ArchiveAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	assets, err := a.store.ListAssets()
	if err != nil {
		return fmt.Errorf("failed to load assets for archiving: %w", err)
	}

	collection := a.database.Collection(PriceHistoryCollection)
	archived := 0
	for _, asset := range assets {
		points, err := a.store.PriceHistory(asset.ID)
		if err != nil {
			log.Printf("Failed to load history for %s: %v", asset.Symbol, err)
			continue
		}

		doc := PriceDocument{
			Symbol:    asset.Symbol,
			Name:      asset.Name,
			UpdatedAt: time.Now().UTC(),
			DataCount: len(points),
			Prices:    make([]ArchivedTick, 0, len(points)),
		}
		for _, p := range points {
			doc.Prices = append(doc.Prices, ArchivedTick{
				Price:     p.Price.String(),
				CreatedAt: p.CreatedAt,
			})
		}

		_, err = collection.ReplaceOne(ctx,
			bson.M{"_id": asset.Symbol},
			doc,
			options.Replace().SetUpsert(true),
		)
		if err != nil {
			log.Printf("Failed to archive %s: %v", asset.Symbol, err)
			continue
		}
		archived++
	}

	log.Printf("Price archive completed: %d/%d assets", archived, len(assets))
	return nil
}

// Close disconnects from MongoDB
func (a *Archiver) Close(ctx context.Context) error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}
