// Package agency keeps a rental agency's fleet and answers queries over it.
//
// An Agency is not safe for concurrent use; hosts that share one between
// goroutines must serialize access themselves.
package agency

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-rental/internal/models"
	"github.com/ukydev/fleet-rental/internal/source"
)

// Listener is notified after a vehicle joins the fleet.
type Listener interface {
	VehicleAdded(v models.Vehicle)
}

// Option configures an Agency.
type Option func(*Agency)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *Agency) { a.log = l }
}

// WithListener registers a listener for inserted vehicles.
func WithListener(l Listener) Option {
	return func(a *Agency) { a.AddListener(l) }
}

// WithStrictTags makes the parser reject type tags other than C and F
// instead of reading them as vans.
func WithStrictTags(strict bool) Option {
	return func(a *Agency) { a.strict = strict }
}

// Agency owns an ordered, deduplicated fleet of vehicles.
type Agency struct {
	name      string
	fleet     []models.Vehicle
	index     map[string]int // Vehicle.Key -> position in fleet
	strict    bool
	log       logrus.FieldLogger
	listeners []Listener
}

// New creates an agency with an empty fleet.
func New(name string, opts ...Option) *Agency {
	a := &Agency{
		name:  name,
		index: make(map[string]int),
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("agency", name)
	return a
}

func (a *Agency) Name() string { return a.name }

// Len returns the number of vehicles in the fleet.
func (a *Agency) Len() int { return len(a.fleet) }

// Fleet returns a copy of the fleet in insertion order.
func (a *Agency) Fleet() []models.Vehicle {
	out := make([]models.Vehicle, len(a.fleet))
	copy(out, a.fleet)
	return out
}

// Insert adds v unless an equal vehicle is already in the fleet, and reports
// whether it was added. The first insertion of a plate wins. Vehicles of an
// unknown kind are never added.
func (a *Agency) Insert(v models.Vehicle) bool {
	if !a.insert(v) {
		return false
	}
	a.Announce([]models.Vehicle{v})
	return true
}

func (a *Agency) insert(v models.Vehicle) bool {
	if v.Kind != models.KindCar && v.Kind != models.KindVan {
		a.log.WithFields(logrus.Fields{"kind": v.Kind, "plate": v.Plate}).Warn("Ignoring vehicle of unknown kind")
		return false
	}
	key := v.Key()
	if _, exists := a.index[key]; exists {
		return false
	}
	a.index[key] = len(a.fleet)
	a.fleet = append(a.fleet, v)
	return true
}

// Announce notifies the listeners of vehicles that joined the fleet.
func (a *Agency) Announce(added []models.Vehicle) {
	for _, v := range added {
		for _, l := range a.listeners {
			l.VehicleAdded(v)
		}
	}
}

// AddListener registers a listener for vehicles inserted from now on.
func (a *Agency) AddListener(l Listener) {
	if l != nil {
		a.listeners = append(a.listeners, l)
	}
}

// Find looks a vehicle up by kind and plate, ignoring plate case.
func (a *Agency) Find(kind models.Kind, plate string) (models.Vehicle, bool) {
	i, ok := a.index[models.Vehicle{Kind: kind, Plate: plate}.Key()]
	if !ok {
		return models.Vehicle{}, false
	}
	return a.fleet[i], true
}

// ParseLine parses a record using the agency's tag policy.
func (a *Agency) ParseLine(line string) (models.Vehicle, error) {
	return parseLine(line, a.strict)
}

// LoadReport summarizes a batch load.
type LoadReport struct {
	Read       int              `json:"read"`
	Added      []models.Vehicle `json:"added"`
	Duplicates int              `json:"duplicates"`
	Failures   []*LineError     `json:"failures,omitempty"`
}

// LoadFleet parses and inserts each line. A line that fails to parse is
// recorded in the report and the rest of the batch is still processed.
// Failures are numbered by their 1-based position in lines.
func (a *Agency) LoadFleet(lines []string) LoadReport {
	numbered := make([]source.Line, len(lines))
	for i, l := range lines {
		numbered[i] = source.Line{No: i + 1, Text: l}
	}
	report := a.Stage(numbered)
	a.Announce(report.Added)
	return report
}

// LoadFrom reads every line from src and loads it. Failures carry the line
// numbers reported by src.
func (a *Agency) LoadFrom(src source.LineSource) (LoadReport, error) {
	lines, err := src.Lines()
	if err != nil {
		return LoadReport{}, err
	}
	report := a.Stage(lines)
	a.Announce(report.Added)
	return report, nil
}

// Stage loads lines like LoadFleet without notifying listeners. Callers
// that hold a lock around the fleet pass report.Added to Announce once the
// lock is released.
func (a *Agency) Stage(lines []source.Line) LoadReport {
	report := LoadReport{Added: []models.Vehicle{}}
	for _, line := range lines {
		report.Read++
		v, err := a.ParseLine(line.Text)
		if err != nil {
			lerr := &LineError{Line: line.No, Text: line.Text, Reason: err.Error(), Err: err}
			report.Failures = append(report.Failures, lerr)
			a.log.WithError(err).WithField("line", line.No).Warn("Skipping malformed fleet line")
			continue
		}
		if !a.insert(v) {
			report.Duplicates++
			a.log.WithFields(logrus.Fields{"kind": v.Kind, "plate": v.Plate}).Debug("Ignoring duplicate vehicle")
			continue
		}
		report.Added = append(report.Added, v)
	}
	a.log.WithFields(logrus.Fields{
		"read":       report.Read,
		"added":      len(report.Added),
		"duplicates": report.Duplicates,
		"failed":     len(report.Failures),
	}).Info("Fleet batch loaded")
	return report
}

func (a *Agency) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rental vehicles of agency %s\n", a.name)
	fmt.Fprintf(&sb, "Total vehicles: %d\n", len(a.fleet))
	for _, v := range a.fleet {
		sb.WriteString(v.String())
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 53))
		sb.WriteString("\n")
	}
	return sb.String()
}
