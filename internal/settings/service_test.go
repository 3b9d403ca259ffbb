package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/shared"
)

type mockRepository struct {
	doc     RolePolicy
	saveErr error
	saves   int
}

func (m *mockRepository) Get(_ context.Context) (RolePolicy, error) {
	return m.doc, nil
}

func (m *mockRepository) Save(_ context.Context, doc RolePolicy) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.doc = doc
	m.saves++
	return nil
}

type mockAudit struct {
	mu      sync.Mutex
	entries []shared.AuditEntry
}

func (m *mockAudit) Record(_ context.Context, entry shared.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func TestServiceUpdateStampsDocument(t *testing.T) {
	repo := &mockRepository{}
	audit := &mockAudit{}
	svc := NewService(repo, audit, nil)
	fixed := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	perms := map[policy.Role]policy.OverrideMap{
		policy.RoleManager: {
			policy.ModuleFinance: policy.NewActionSet(policy.ActionRead),
		},
	}
	doc, err := svc.Update(context.Background(), perms, "uid-admin")
	require.NoError(t, err)
	assert.Equal(t, "uid-admin", doc.LastUpdatedBy)
	assert.Equal(t, fixed, doc.LastUpdated)
	assert.Equal(t, 1, repo.saves)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "settings.role_policy.update", audit.entries[0].Event)
	assert.Equal(t, "uid-admin", audit.entries[0].ActorUID)
}

func TestServiceUpdateSaveFailure(t *testing.T) {
	repo := &mockRepository{saveErr: errors.New("write refused")}
	svc := NewService(repo, nil, nil)

	_, err := svc.Update(context.Background(), nil, "uid-admin")
	require.Error(t, err)
	assert.Zero(t, repo.saves)
}

func TestOverridesFor(t *testing.T) {
	doc := RolePolicy{
		CustomPermissions: map[policy.Role]policy.OverrideMap{
			policy.RoleHR: {
				policy.ModuleReports: policy.NewActionSet(),
			},
		},
	}
	require.NotNil(t, doc.OverridesFor(policy.RoleHR))
	assert.True(t, doc.OverridesFor(policy.RoleHR)[policy.ModuleReports].Empty())
	assert.Nil(t, doc.OverridesFor(policy.RoleAdmin))
	assert.Nil(t, RolePolicy{}.OverridesFor(policy.RoleHR))
}
