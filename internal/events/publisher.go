// Package events publishes fleet changes to an MQTT broker.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-rental/internal/models"
)

const (
	TypeVehicleAdded = "vehicle.added"

	publishTimeout = 5 * time.Second
)

// VehicleEvent is the payload published for each fleet change.
type VehicleEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Agency    string         `json:"agency"`
	Vehicle   models.Vehicle `json:"vehicle"`
	Timestamp time.Time      `json:"timestamp"`
}

// publishClient is the subset of mqtt.Client the publisher needs.
type publishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends vehicle events to an MQTT topic. It implements
// agency.Listener.
type Publisher struct {
	client publishClient
	topic  string
	agency string
	qos    byte
	now    func() time.Time
}

// NewPublisher creates a publisher on an already connected client.
func NewPublisher(client publishClient, topic, agencyName string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		agency: agencyName,
		qos:    1,
		now:    time.Now,
	}
}

// Connect dials the broker and returns the connected client.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID + "-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return client, nil
}

// Publish sends a single event and waits for the broker to accept it.
func (p *Publisher) Publish(event VehicleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}

// VehicleAdded publishes a vehicle.added event. Failures are logged, the
// fleet insert that triggered it is not undone.
func (p *Publisher) VehicleAdded(v models.Vehicle) {
	event := VehicleEvent{
		ID:        uuid.NewString(),
		Type:      TypeVehicleAdded,
		Agency:    p.agency,
		Vehicle:   v,
		Timestamp: p.now().UTC(),
	}
	if err := p.Publish(event); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"topic": p.topic,
			"plate": v.Plate,
		}).Error("Failed to publish vehicle event")
		return
	}
	log.WithFields(log.Fields{"topic": p.topic, "plate": v.Plate, "event_id": event.ID}).Debug("Published vehicle event")
}
