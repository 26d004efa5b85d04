package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Priya8975/identity-service/internal/domain"
)

// CreateOrganization inserts the organization together with its owner membership.
func (s *PostgresStore) CreateOrganization(ctx context.Context, org *domain.Organization, owner *domain.Member) error {
	if len(org.Metadata) == 0 {
		org.Metadata = json.RawMessage(`{}`)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO organizations (id, name, slug, logo, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, org.ID, org.Name, org.Slug, org.Logo, org.Metadata).Scan(&org.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("inserting organization: %w", err)
	}

	if err := insertMember(ctx, tx, owner); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertMember(ctx context.Context, tx pgx.Tx, m *domain.Member) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO members (id, organization_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, m.ID, m.OrganizationID, m.UserID, m.Role).Scan(&m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("inserting member: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*domain.Organization, error) {
	var o domain.Organization
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, slug, logo, metadata, created_at FROM organizations WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Slug, &o.Logo, &o.Metadata, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying organization: %w", err)
	}
	return &o, nil
}

// CountOwnedOrganizations counts organizations where the user is an owner.
func (s *PostgresStore) CountOwnedOrganizations(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM members WHERE user_id = $1 AND role = $2
	`, userID, domain.MemberRoleOwner).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting owned organizations: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetMember(ctx context.Context, orgID, userID string) (*domain.Member, error) {
	var m domain.Member
	err := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, user_id, role, created_at
		FROM members WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying member: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) CountMembers(ctx context.Context, orgID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM members WHERE organization_id = $1`, orgID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountPendingInvitations(ctx context.Context, orgID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM invitations
		WHERE organization_id = $1 AND status = $2 AND expires_at > NOW()
	`, orgID, domain.InvitationPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting invitations: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *domain.Invitation) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invitations (id, organization_id, email, role, status, inviter_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Status, inv.InviterID, inv.ExpiresAt).Scan(&inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInvitation(ctx context.Context, id string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := s.pool.QueryRow(ctx, `
		SELECT id, organization_id, email, role, status, inviter_id, expires_at, created_at
		FROM invitations WHERE id = $1
	`, id).Scan(&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Status, &inv.InviterID, &inv.ExpiresAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying invitation: %w", err)
	}
	return &inv, nil
}

// AcceptInvitation marks the invitation accepted and adds the member.
func (s *PostgresStore) AcceptInvitation(ctx context.Context, invitationID string, m *domain.Member) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE invitations SET status = $2 WHERE id = $1 AND status = $3
	`, invitationID, domain.InvitationAccepted, domain.InvitationPending)
	if err != nil {
		return fmt.Errorf("updating invitation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invitation %s is no longer pending", invitationID)
	}

	if err := insertMember(ctx, tx, m); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
