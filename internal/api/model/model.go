package model

import (
	"database/sql"
	"time"
)

// Lead mirrors the leads table.
type Lead struct {
	ID                 string          `db:"id"`
	FirstName          string          `db:"first_name"`
	LastName           string          `db:"last_name"`
	Email              sql.NullString  `db:"email"`
	Phone              sql.NullString  `db:"phone"`
	LeadSource         sql.NullString  `db:"lead_source"`
	Status             string          `db:"status"`
	AssignedTo         sql.NullString  `db:"assigned_to"`
	Notes              sql.NullString  `db:"notes"`
	EstimatedValue     sql.NullFloat64 `db:"estimated_value"`
	ConvertedAt        sql.NullTime    `db:"converted_at"`
	ConvertedContactID sql.NullString  `db:"converted_contact_id"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// ConversionResult is the outcome of a successful lead conversion.
type ConversionResult struct {
	LeadID    string `json:"lead_id"`
	ContactID string `json:"contact_id"`
}
