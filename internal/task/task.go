// Package task defines the task domain model tracked by the dashboard.
// It contains the task record, the canonical status set and input validation.
package task

import (
	"fmt"
	"strings"
	"time"
)

type (
	Status string
	Task   struct {
		ID        int64     `json:"id" db:"id"`
		Name      string    `json:"name" db:"name" validate:"required,max=255"`
		Status    Status    `json:"status" db:"status" validate:"required,task_status"`
		Accuracy  float64   `json:"accuracy" db:"accuracy" validate:"gte=0,lte=100"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	}
)

const (
	StatusPending Status = "Pending"
	StatusRunning Status = "Running"
	StatusDone    Status = "Done"
	StatusFailed  Status = "Failed"
)

const (
	MinAccuracy = 0.0
	MaxAccuracy = 100.0
)

// Statuses returns the canonical status set in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusDone, StatusFailed}
}

func (s Status) Valid() bool {
	for _, known := range Statuses() {
		if s == known {
			return true
		}
	}

	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus maps user input onto the canonical set. Matching is
// case-insensitive and "completed" is accepted as an alias of Done.
func ParseStatus(s string) (Status, error) {
	value := strings.TrimSpace(s)
	if strings.EqualFold(value, "completed") {
		return StatusDone, nil
	}

	for _, known := range Statuses() {
		if strings.EqualFold(value, string(known)) {
			return known, nil
		}
	}

	return "", fmt.Errorf("unknown task status %q", s)
}

func NewTask(name string, status Status, accuracy float64) *Task {
	if status == "" {
		status = StatusPending
	}

	now := time.Now().UTC()
	return &Task{
		Name:      strings.TrimSpace(name),
		Status:    status,
		Accuracy:  accuracy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
