package db

import (
	"context"

	"github.com/ukydev/fleet-rental/internal/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	UpsertVehicle(ctx context.Context, vehicle models.Vehicle) error
	FindVehicles(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (VehicleCursor, error)
}

// VehicleCursor defines the interface for vehicle cursor operations.
type VehicleCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}
