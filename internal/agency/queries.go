package agency

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ukydev/fleet-rental/internal/models"
)

// BrandModels lists the distinct models the fleet holds for one brand.
type BrandModels struct {
	Brand  string   `json:"brand"`
	Models []string `json:"models"`
}

// CarsReport describes every car in fleet order together with what renting it
// for the given number of days costs.
func (a *Agency) CarsReport(days int) string {
	var sb strings.Builder
	for _, v := range a.fleet {
		if !v.IsCar() {
			continue
		}
		sb.WriteString(v.String())
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Rental cost for %d days: %.2f\n", days, v.RentalCost(days))
		sb.WriteString(strings.Repeat("-", 17))
		sb.WriteString("\n")
	}
	return sb.String()
}

// CarsSortedByPlate returns every car in the fleet ordered by plate.
func (a *Agency) CarsSortedByPlate() []models.Vehicle {
	cars := a.filter(models.KindCar)
	slices.SortStableFunc(cars, models.ComparePlate)
	return cars
}

// VansSortedByVolume returns every van ordered by ascending cargo volume.
// Vans with equal volume keep their fleet order.
func (a *Agency) VansSortedByVolume() []models.Vehicle {
	vans := a.filter(models.KindVan)
	slices.SortStableFunc(vans, func(x, y models.Vehicle) int {
		return cmp.Compare(x.CargoVolume, y.CargoVolume)
	})
	return vans
}

// BrandsWithModels groups the fleet's models by brand. Brands and models are
// both sorted and models are distinct.
func (a *Agency) BrandsWithModels() []BrandModels {
	byBrand := make(map[string]map[string]struct{})
	for _, v := range a.fleet {
		set, ok := byBrand[v.Brand]
		if !ok {
			set = make(map[string]struct{})
			byBrand[v.Brand] = set
		}
		set[v.Model] = struct{}{}
	}

	out := make([]BrandModels, 0, len(byBrand))
	for _, brand := range slices.Sorted(maps.Keys(byBrand)) {
		out = append(out, BrandModels{
			Brand:  brand,
			Models: slices.Sorted(maps.Keys(byBrand[brand])),
		})
	}
	return out
}

func (a *Agency) filter(kind models.Kind) []models.Vehicle {
	out := []models.Vehicle{}
	for _, v := range a.fleet {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}
