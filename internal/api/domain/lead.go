package domain

import (
	"errors"
)

// Lead status constants
const (
	LeadStatusNewLead    = "new_lead"
	LeadStatusContacted  = "contacted"
	LeadStatusInterested = "interested"
	LeadStatusQualified  = "qualified"
	LeadStatusLost       = "lost"
	LeadStatusConverted  = "converted"
)

var (
	// ErrLeadNotFound is returned when a lead does not exist
	ErrLeadNotFound = errors.New("lead not found")

	// ErrLeadAlreadyConverted is returned when converting a lead twice.
	// This is the idempotency guard that prevents duplicate contacts.
	ErrLeadAlreadyConverted = errors.New("lead is already converted")
)
