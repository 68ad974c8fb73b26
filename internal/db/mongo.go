package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/fleet-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// MongoCollection wraps a MongoDB collection holding fleet vehicles.
type MongoCollection struct {
	Collection *mongo.Collection
}

// mongoVehicleCursor wraps a MongoDB cursor for vehicle queries.
type mongoVehicleCursor struct {
	cursor *mongo.Cursor
}

// All retrieves all results from the cursor.
func (m *mongoVehicleCursor) All(ctx context.Context, out interface{}) error {
	return m.cursor.All(ctx, out)
}

// Close closes the cursor.
func (m *mongoVehicleCursor) Close(ctx context.Context) error {
	return m.cursor.Close(ctx)
}

// identity mirrors Vehicle.Key: kind plus upper-cased plate.
func identity(vehicle models.Vehicle) bson.M {
	return bson.M{"kind": vehicle.Kind, "plate": strings.ToUpper(vehicle.Plate)}
}

// UpsertVehicle stores a vehicle, replacing any stored vehicle of the same
// kind and plate.
func (c *MongoCollection) UpsertVehicle(ctx context.Context, vehicle models.Vehicle) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	opts := options.Replace().SetUpsert(true)
	_, err := c.Collection.ReplaceOne(ctx, identity(vehicle), vehicle, opts)
	return err
}

// FindVehicles queries vehicle records from the collection.
func (c *MongoCollection) FindVehicles(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (VehicleCursor, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return &mongoVehicleCursor{cursor: cursor}, nil
}

// LoadVehicles returns every stored vehicle in insertion order.
func LoadVehicles(ctx context.Context, coll VehicleCollection) ([]models.Vehicle, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := coll.FindVehicles(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find vehicles: %w", err)
	}
	defer cursor.Close(ctx)

	var vehicles []models.Vehicle
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return vehicles, nil
}

// SaveVehicles upserts each vehicle, stopping at the first failure.
func SaveVehicles(ctx context.Context, coll VehicleCollection, vehicles []models.Vehicle) error {
	for _, v := range vehicles {
		if err := coll.UpsertVehicle(ctx, v); err != nil {
			return fmt.Errorf("save vehicle %s: %w", v.Key(), err)
		}
	}
	return nil
}
