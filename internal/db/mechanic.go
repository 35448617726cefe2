package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

// MongoMechanicCollection implements MechanicCollection for MongoDB.
type MongoMechanicCollection struct {
	Collection *mongo.Collection
}

// InsertMechanic inserts a mechanic into the directory.
func (c *MongoMechanicCollection) InsertMechanic(ctx context.Context, mechanic models.Mechanic) error {
	if mechanic.CreatedAt.IsZero() {
		mechanic.CreatedAt = time.Now().UTC()
	}
	_, err := c.Collection.InsertOne(ctx, mechanic)
	if err != nil {
		return fmt.Errorf("insert mechanic %s: %w", mechanic.ID, err)
	}
	return nil
}

// FindMechanicByID finds a mechanic by id.
func (c *MongoMechanicCollection) FindMechanicByID(ctx context.Context, id string) (*models.Mechanic, error) {
	var m models.Mechanic
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindMechanics lists mechanics by name.
func (c *MongoMechanicCollection) FindMechanics(ctx context.Context, activeOnly bool) ([]models.Mechanic, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	cursor, err := c.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := []models.Mechanic{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
