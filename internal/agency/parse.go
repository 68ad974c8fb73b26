package agency

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ukydev/fleet-rental/internal/models"
)

const recordFields = 6

// ParseLine parses a comma-separated fleet record:
//
//	C,<plate>,<brand>,<model>,<dailyPrice>,<seats>
//	F,<plate>,<brand>,<model>,<dailyPrice>,<cargoVolume>
//
// Fields are trimmed. The tag C (any case) makes a car; any other tag is read
// as a van.
func ParseLine(line string) (models.Vehicle, error) {
	return parseLine(line, false)
}

func parseLine(line string, strict bool) (models.Vehicle, error) {
	fields := strings.Split(line, ",")
	if len(fields) != recordFields {
		return models.Vehicle{}, fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), recordFields)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	tag, plate, brand, model := fields[0], fields[1], fields[2], fields[3]

	price, err := parseAmount("daily price", fields[4])
	if err != nil {
		return models.Vehicle{}, err
	}

	switch {
	case strings.EqualFold(tag, "C"):
		seats, err := strconv.Atoi(fields[5])
		if err != nil {
			return models.Vehicle{}, fmt.Errorf("%w: seats %q", ErrInvalidNumber, fields[5])
		}
		if seats < 0 {
			return models.Vehicle{}, fmt.Errorf("%w: seats %d", ErrNegativeValue, seats)
		}
		return models.NewCar(plate, brand, model, price, seats), nil
	case strict && !strings.EqualFold(tag, "F"):
		return models.Vehicle{}, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	default:
		volume, err := parseAmount("cargo volume", fields[5])
		if err != nil {
			return models.Vehicle{}, err
		}
		return models.NewVan(plate, brand, model, price, volume), nil
	}
}

func parseAmount(name, s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidNumber, name, s)
	}
	if f < 0 {
		return 0, fmt.Errorf("%w: %s %v", ErrNegativeValue, name, f)
	}
	return f, nil
}
