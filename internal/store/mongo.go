package store

import (
	"context"
	"fmt"
	"time"

	"github.com/arya-gaj/veri/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QueryLog is one resolved query, persisted for the history endpoint and
// offline analysis of what users ask.
type QueryLog struct {
	ID            string              `bson:"_id" json:"id"`
	Query         string              `bson:"query" json:"query"`
	WalletAddress string              `bson:"walletAddress" json:"walletAddress"`
	Intent        string              `bson:"intent" json:"intent"`
	ParsedQuery   *models.ParsedQuery `bson:"parsedQuery,omitempty" json:"parsedQuery,omitempty"`
	Verified      bool                `bson:"verified" json:"verified"`
	Summary       string              `bson:"summary" json:"summary"`
	BlockNumber   uint64              `bson:"blockNumber,omitempty" json:"blockNumber,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
}

// Store persists resolved queries. Implementations must be safe for
// concurrent use; the resolver writes from request goroutines.
type Store interface {
	// LogQuery records a resolved query
	LogQuery(ctx context.Context, entry *QueryLog) error

	// History returns the most recent queries for a wallet, newest first
	History(ctx context.Context, walletAddress string, limit int64) ([]QueryLog, error)

	// Close releases the underlying connection
	Close(ctx context.Context) error
}

// Retention for query logs, enforced by a TTL index
const queryLogRetention = 30 * 24 * time.Hour

const queriesCollection = "queries"

// MongoStore implements Store on MongoDB
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

// NewMongoStore connects to MongoDB and ensures the indexes the history
// endpoint depends on.
func NewMongoStore(ctx context.Context, uri, database string, log zerolog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetMaxPoolSize(20)
	clientOptions.SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client: client,
		db:     client.Database(database),
		log:    log.With().Str("component", "store").Logger(),
	}

	if err := store.ensureIndexes(connectCtx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	collection := s.db.Collection(queriesCollection)

	// Wallet history reads newest-first per address
	historyIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "walletAddress", Value: 1},
			{Key: "createdAt", Value: -1},
		},
	}
	if _, err := collection.Indexes().CreateOne(ctx, historyIndex); err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	// Logs age out server-side instead of through a cleanup job
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(queryLogRetention.Seconds())),
	}
	if _, err := collection.Indexes().CreateOne(ctx, ttlIndex); err != nil {
		return fmt.Errorf("failed to create TTL index: %w", err)
	}

	return nil
}

// LogQuery records a resolved query
func (s *MongoStore) LogQuery(ctx context.Context, entry *QueryLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Collection(queriesCollection).InsertOne(ctx, entry)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	return nil
}

// History returns the most recent queries for a wallet, newest first
func (s *MongoStore) History(ctx context.Context, walletAddress string, limit int64) ([]QueryLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.db.Collection(queriesCollection).Find(ctx,
		bson.M{"walletAddress": walletAddress}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []QueryLog{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}

	return entries, nil
}

// Close disconnects from MongoDB
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
