package notifications

import "github.com/leakmonitor/leakmonitor/internal/models"

// Notifier defines the contract for alerting channels when a monitored
// group publishes new victims.
type Notifier interface {
	SendNewVictims(group string, victims []models.Victim) error
}
