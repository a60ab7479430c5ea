// Package models contains data structures used by the task repository layer.
package models

type StatusStats struct {
	Status          string  `json:"status" db:"status"`
	Count           int     `json:"count" db:"count"`
	AverageAccuracy float64 `json:"average_accuracy" db:"average_accuracy"`
}
