package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type lastSeenDocument struct {
	UserId     string    `bson:"_id"`
	LastSeenAt time.Time `bson:"lastSeenAt"`
}

// Store persists last-seen timestamps so the "last seen X minutes ago"
// view survives a gateway restart. One document per user, upserted on
// every offline transition.
type Store struct {
	collection *mongo.Collection
}

func NewStore(client *mongo.Client) *Store {
	database := client.Database("presence")
	collection := database.Collection("lastSeen")

	return &Store{
		collection,
	}
}

func (s *Store) Setup(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "lastSeenAt", Value: -1}},
	}

	_, err := s.collection.Indexes().CreateOne(ctx, indexModel)

	return err
}

func (s *Store) Record(ctx context.Context, userId string, lastSeenAt time.Time) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": userId},
		bson.M{"$set": bson.M{"lastSeenAt": lastSeenAt}},
		options.UpdateOne().SetUpsert(true),
	)

	return err
}

func (s *Store) Get(ctx context.Context, userId string) (time.Time, bool, error) {
	var document lastSeenDocument

	err := s.collection.FindOne(ctx, bson.M{"_id": userId}).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	return document.LastSeenAt, true, nil
}
