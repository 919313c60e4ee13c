package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecentViewLimit caps how many view events are read back per user.
const RecentViewLimit = 20

type MongoDB struct {
	Client *mongo.Client
	Views  *mongo.Collection
}

// OpenMongo connects to uri and verifies the connection with a ping.
func OpenMongo(ctx context.Context, uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &MongoDB{
		Client: client,
		Views:  client.Database(database).Collection("recent_views"),
	}, nil
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, nil)
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

type viewDoc struct {
	UserID    string    `bson:"user_id"`
	ProductID string    `bson:"product_id"`
	ViewedAt  time.Time `bson:"viewed_at"`
}

// ViewModel is the per-user log of product views.
type ViewModel struct {
	Collection *mongo.Collection
}

// EnsureIndexes creates the index backing the newest-first read.
func (m *ViewModel) EnsureIndexes(ctx context.Context) error {
	_, err := m.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "viewed_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create view index: %w", err)
	}
	return nil
}

func (m *ViewModel) Record(ctx context.Context, ev ViewEvent) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := m.Collection.InsertOne(ctx, viewDoc{
		UserID:    ev.UserID.String(),
		ProductID: ev.ProductID.String(),
		ViewedAt:  ev.ViewedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// Latest returns the user's most recent view events, newest first, capped
// at RecentViewLimit.
func (m *ViewModel) Latest(ctx context.Context, userID uuid.UUID) ([]ViewEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "viewed_at", Value: -1}}).
		SetLimit(RecentViewLimit)
	cur, err := m.Collection.Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("find views: %w", err)
	}
	defer cur.Close(ctx)

	var docs []viewDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode views: %w", err)
	}

	events := make([]ViewEvent, 0, len(docs))
	for _, d := range docs {
		pid, err := uuid.Parse(d.ProductID)
		if err != nil {
			continue
		}
		events = append(events, ViewEvent{UserID: userID, ProductID: pid, ViewedAt: d.ViewedAt})
	}
	return events, nil
}
