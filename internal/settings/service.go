package settings

import (
	"context"
	"log/slog"
	"time"

	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/shared"
)

// Service manages the role-policy settings document.
type Service struct {
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Get returns the current document.
func (s *Service) Get(ctx context.Context) (RolePolicy, error) {
	return s.repo.Get(ctx)
}

// Update replaces the document. Entries keep the replace-not-merge
// contract: a stored module entry stands in fully for the table entry.
func (s *Service) Update(ctx context.Context, perms map[policy.Role]policy.OverrideMap, updatedBy string) (RolePolicy, error) {
	doc := RolePolicy{
		CustomPermissions: perms,
		LastUpdatedBy:     updatedBy,
		LastUpdated:       s.now().UTC(),
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return RolePolicy{}, err
	}
	if s.audit != nil {
		entry := shared.AuditEntry{
			Identifier: updatedBy,
			Event:      "settings.role_policy.update",
			Outcome:    "success",
			ActorUID:   updatedBy,
			At:         doc.LastUpdated,
		}
		if async, ok := s.audit.(interface{ RecordAsync(shared.AuditEntry) }); ok {
			async.RecordAsync(entry)
		} else if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("settings audit", slog.Any("error", err))
		}
	}
	return doc, nil
}
