// Package notify pushes change notifications to connected dashboard viewers.
//
// Every successful mutation produces one TasksChanged event. The event carries
// no task data: viewers react by fetching the list again. Delivery is
// best-effort and at-most-once per viewer.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

const EventTasksChanged = "updateTasks"

type Event struct {
	Event string `json:"event"`
}

func TasksChanged() Event {
	return Event{Event: EventTasksChanged}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if e.Event == "" {
		return Event{}, fmt.Errorf("event name is missing")
	}

	return e, nil
}

// Notifier is invoked once after each successful mutation.
type Notifier interface {
	Notify(ctx context.Context) error
}

type NotifierFunc func(ctx context.Context) error

func (f NotifierFunc) Notify(ctx context.Context) error {
	return f(ctx)
}
