package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/your-org/videoqa/internal/config"
	"github.com/your-org/videoqa/internal/models"
)

type responseDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ResponseID   string             `bson:"response_id"`
	VideoID      string             `bson:"video_id"`
	Query        string             `bson:"query"`
	ResponseText string             `bson:"response_text"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d responseDocument) record() models.ResponseRecord {
	return models.ResponseRecord{
		ID:           d.ID.Hex(),
		ResponseID:   d.ResponseID,
		VideoID:      d.VideoID,
		Query:        d.Query,
		ResponseText: d.ResponseText,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// MongoStore keeps one document per answer in a single collection.
type MongoStore struct {
	client    *mongo.Client
	coll      *mongo.Collection
	closeOnce sync.Once
	closeErr  error
}

func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := newMongoStore(client, client.Database(cfg.Database).Collection(cfg.Collection))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func newMongoStore(client *mongo.Client, coll *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, coll: coll}
}

// EnsureIndexes creates unique(response_id), index(video_id) and index(created_at).
// Creating an index that already exists is a no-op on the server.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "response_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "video_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create mongo indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Store(ctx context.Context, rec *models.ResponseRecord) (string, error) {
	doc := responseDocument{
		ResponseID:   rec.ResponseID,
		VideoID:      rec.VideoID,
		Query:        rec.Query,
		ResponseText: rec.ResponseText,
		// BSON datetimes carry milliseconds.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %s", models.ErrDuplicateResponseID, rec.ResponseID)
		}
		return "", fmt.Errorf("insert response: %w", err)
	}

	id := fmt.Sprint(res.InsertedID)
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		id = oid.Hex()
	}
	rec.ID = id
	rec.CreatedAt = doc.CreatedAt
	return id, nil
}

func (s *MongoStore) GetByResponseID(ctx context.Context, responseID string) (*models.ResponseRecord, error) {
	var doc responseDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "response_id", Value: responseID}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("find response: %w", err)
	}
	rec := doc.record()
	return &rec, nil
}

func (s *MongoStore) GetByVideoID(ctx context.Context, videoID string) ([]models.ResponseRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(MaxRecordsPerVideo)

	cursor, err := s.coll.Find(ctx, bson.D{{Key: "video_id", Value: videoID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find responses by video: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []responseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode responses: %w", err)
	}

	out := make([]models.ResponseRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("mongo client not connected")
	}
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.closeErr = s.client.Disconnect(ctx)
		}
	})
	return s.closeErr
}
