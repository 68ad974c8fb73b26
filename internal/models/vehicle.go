package models

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the concrete vehicle variant.
type Kind string

const (
	KindCar Kind = "car"
	KindVan Kind = "van"
)

var ErrUnknownKind = errors.New("unknown vehicle kind")

// ParseKind resolves a kind name, ignoring case.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCar:
		return KindCar, nil
	case KindVan:
		return KindVan, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k Kind) String() string {
	return string(k)
}

// Vehicle represents a rental vehicle. Seats is only meaningful for cars and
// CargoVolume only for vans.
type Vehicle struct {
	Kind        Kind    `bson:"kind" json:"kind"`
	Plate       string  `bson:"plate" json:"plate"`
	Brand       string  `bson:"brand" json:"brand"`
	Model       string  `bson:"model" json:"model"`
	DailyPrice  float64 `bson:"daily_price" json:"daily_price"`
	Seats       int     `bson:"seats,omitempty" json:"seats,omitempty"`
	CargoVolume float64 `bson:"cargo_volume,omitempty" json:"cargo_volume,omitempty"`
}

// NewCar creates a car with upper-cased plate, brand and model.
func NewCar(plate, brand, model string, dailyPrice float64, seats int) Vehicle {
	return Vehicle{
		Kind:       KindCar,
		Plate:      strings.ToUpper(plate),
		Brand:      strings.ToUpper(brand),
		Model:      strings.ToUpper(model),
		DailyPrice: dailyPrice,
		Seats:      seats,
	}
}

// NewVan creates a van with upper-cased plate, brand and model.
func NewVan(plate, brand, model string, dailyPrice float64, cargoVolume float64) Vehicle {
	return Vehicle{
		Kind:        KindVan,
		Plate:       strings.ToUpper(plate),
		Brand:       strings.ToUpper(brand),
		Model:       strings.ToUpper(model),
		DailyPrice:  dailyPrice,
		CargoVolume: cargoVolume,
	}
}

// IsCar reports whether the vehicle is a car.
func (v Vehicle) IsCar() bool { return v.Kind == KindCar }

// IsVan reports whether the vehicle is a van.
func (v Vehicle) IsVan() bool { return v.Kind == KindVan }

// RentalCost returns the price of renting the vehicle for the given number of days.
func (v Vehicle) RentalCost(days int) float64 {
	return v.DailyPrice * float64(days)
}

// Key is the identity of a vehicle within a fleet: its kind and plate.
func (v Vehicle) Key() string {
	return string(v.Kind) + ":" + strings.ToUpper(v.Plate)
}

// Equal reports whether other is the same kind of vehicle with the same plate.
func (v Vehicle) Equal(other *Vehicle) bool {
	if other == nil || v.Kind != other.Kind {
		return false
	}
	return strings.EqualFold(v.Plate, other.Plate)
}

// ComparePlate orders vehicles by plate, ignoring case.
func ComparePlate(a, b Vehicle) int {
	return strings.Compare(strings.ToUpper(a.Plate), strings.ToUpper(b.Plate))
}

func (v Vehicle) String() string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(string(v.Kind)))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Plate: %s\t|\tBrand: %s\t|\tModel: %s\n", v.Plate, v.Brand, v.Model)
	fmt.Fprintf(&sb, "Daily price: %.2f", v.DailyPrice)
	switch v.Kind {
	case KindCar:
		fmt.Fprintf(&sb, "\t|\tSeats: %d", v.Seats)
	case KindVan:
		fmt.Fprintf(&sb, "\t|\tCargo volume: %.2f", v.CargoVolume)
	}
	return sb.String()
}
