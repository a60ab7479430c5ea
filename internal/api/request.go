package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nadmax/radar/internal/task"
)

type TaskRequest struct {
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Accuracy Accuracy `json:"accuracy"`
}

type CreateTaskResponse struct {
	ID int64 `json:"id"`
}

type MessageResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// Accuracy accepts a JSON number or a numeric string, since form inputs post
// their raw value.
type Accuracy float64

func (a *Accuracy) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}

		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("accuracy %q is not a number", s)
		}
		*a = Accuracy(v)
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("accuracy must be a number: %w", err)
	}
	*a = Accuracy(v)

	return nil
}

// toTask builds and validates a task from the request. Creation defaults a
// missing status to Pending; updates replace every field and so require it.
func (req TaskRequest) toTask(requireStatus bool) (*task.Task, error) {
	raw := strings.TrimSpace(req.Status)

	status, err := task.ParseStatus(raw)
	if err != nil {
		status = task.Status(raw)
	}

	t := task.NewTask(req.Name, status, float64(req.Accuracy))
	if raw == "" && requireStatus {
		t.Status = ""
	}

	if err := task.Validate(t); err != nil {
		return nil, err
	}

	return t, nil
}
