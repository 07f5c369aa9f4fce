package models

import (
	"fmt"
	"time"
)

// Backend identifies one of the two interchangeable data stores.
type Backend string

const (
	// BackendA is the document store.
	BackendA Backend = "A"
	// BackendB is the relational store.
	BackendB Backend = "B"
)

var Backends = []Backend{BackendA, BackendB}

func (b Backend) Other() Backend {
	if b == BackendA {
		return BackendB
	}
	return BackendA
}

func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendA, BackendB:
		return Backend(s), nil
	}
	return "", fmt.Errorf("unknown backend %q", s)
}

// DatabaseAssignment binds a user to a backend. It is written once and
// never changes.
type DatabaseAssignment struct {
	UserID     string    `json:"userId" db:"user_id"`
	Backend    Backend   `json:"backend" db:"backend"`
	AssignedAt time.Time `json:"assignedAt" db:"assigned_at"`
}
