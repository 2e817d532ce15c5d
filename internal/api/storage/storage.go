package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leadflow/crm-backend/internal/api/domain"
	"github.com/leadflow/crm-backend/internal/api/model"
	"github.com/leadflow/crm-backend/shared/postgresql"
)

// Storage handles lead and contact database operations for the API service.
type Storage struct {
	pg     *postgresql.Client
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{pg: pg, logger: logger}
}

const leadColumns = `
	id, first_name, last_name, email, phone, lead_source, status,
	assigned_to, notes, estimated_value, converted_at, converted_contact_id,
	created_at, updated_at
`

// GetLead retrieves a single lead by ID.
func (s *Storage) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	var lead model.Lead
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	err := s.pg.GetDB().GetContext(ctx, &lead, query, leadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}

	return &lead, nil
}

// ConvertLead converts a lead into a contact in one atomic transaction.
//
// The lead row is locked exclusively for the duration, so two concurrent
// conversions of the same lead serialize: the first commits, the second
// sees status=converted and fails with ErrLeadAlreadyConverted. No partial
// contact/lead state is ever observable.
func (s *Storage) ConvertLead(ctx context.Context, leadID string) (*model.ConversionResult, error) {
	tx, err := s.pg.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback()
	}()

	var lead model.Lead
	lockQuery := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &lead, lockQuery, leadID); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to lock lead: %w", err)
	}

	if lead.Status == domain.LeadStatusConverted {
		return nil, domain.ErrLeadAlreadyConverted
	}

	var contactID string
	insertQuery := `
		INSERT INTO contacts
			(first_name, last_name, email, phone, assigned_to, notes,
			 created_from_lead, source_lead_id, is_customer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, FALSE, NOW(), NOW())
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insertQuery,
		lead.FirstName,
		lead.LastName,
		lead.Email,
		lead.Phone,
		lead.AssignedTo,
		lead.Notes,
		lead.ID,
	).Scan(&contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contact: %w", err)
	}

	updateQuery := `
		UPDATE leads
		SET status = $1, converted_at = NOW(), converted_contact_id = $2, updated_at = NOW()
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, updateQuery, domain.LeadStatusConverted, contactID, leadID); err != nil {
		return nil, fmt.Errorf("failed to mark lead converted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lead conversion: %w", err)
	}

	s.logger.Info("Lead converted to contact",
		slog.String("lead_id", leadID),
		slog.String("contact_id", contactID),
	)

	return &model.ConversionResult{LeadID: leadID, ContactID: contactID}, nil
}
