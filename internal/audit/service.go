package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCreditAdjustment records an admin add/subtract against a user's balance.
func (s *Service) LogCreditAdjustment(ctx context.Context, actorUserID, actorRole, ip, targetUserID string, amount int64, message string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeCreditAdjustment,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		TargetUserID: targetUserID,
		Amount:       amount,
		Message:      message,
	})
}

// LogAccountPurge records deletion of a user's ledger data.
func (s *Service) LogAccountPurge(ctx context.Context, actorUserID, actorRole, ip, targetUserID string) error {
	return s.Append(ctx, Event{
		Type:         EventTypeAccountPurge,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		TargetUserID: targetUserID,
		Message:      "ledger account purged",
	})
}

// LogMigrationRun records an admin-triggered legacy migration, with the run
// report as metadata.
func (s *Service) LogMigrationRun(ctx context.Context, actorUserID, actorRole, ip, reportJSON string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeMigrationRun,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Metadata:    reportJSON,
	})
}
