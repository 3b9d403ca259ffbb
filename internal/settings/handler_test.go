package settings_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-hq/meridian/internal/guard"
	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/settings"
	"github.com/meridian-hq/meridian/internal/shared"
)

type memRepo struct {
	mu  sync.Mutex
	doc settings.RolePolicy
	err error
}

func (r *memRepo) Get(_ context.Context) (settings.RolePolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return settings.RolePolicy{}, r.err
	}
	return r.doc, nil
}

func (r *memRepo) Save(_ context.Context, doc settings.RolePolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.doc = doc
	return nil
}

func asPrincipal(role policy.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithPrincipal(r.Context(), &shared.Principal{
				UID:  "uid-admin",
				Role: role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newSettingsServer(t *testing.T, repo *memRepo, role policy.Role) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := settings.NewService(repo, nil, logger)
	guardMW := guard.Middleware{Engine: policy.NewEngine(), Logger: logger}
	handler := settings.NewHandler(logger, service, guardMW)

	r := chi.NewRouter()
	if role != "" {
		r.Use(asPrincipal(role))
	}
	r.Route("/settings", handler.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRolePolicyRoundTrip(t *testing.T) {
	repo := &memRepo{}
	srv := newSettingsServer(t, repo, policy.RoleAdmin)

	body := `{"customPermissions":{"hr":{"finance":["read"],"reports":[]}}}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/settings/role-policy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	stored := repo.doc
	if stored.LastUpdatedBy != "uid-admin" {
		t.Fatalf("last updated by = %q", stored.LastUpdatedBy)
	}
	overrides := stored.OverridesFor(policy.RoleHR)
	if overrides == nil {
		t.Fatal("hr overrides missing")
	}
	if !overrides[policy.ModuleFinance].Has(policy.ActionRead) {
		t.Fatal("hr finance read override missing")
	}
	// An empty action list is a stored entry too: it revokes the
	// role's table entry outright.
	if set, ok := overrides[policy.ModuleReports]; !ok || !set.Empty() {
		t.Fatalf("reports entry = %v, present %v", set, ok)
	}

	get, err := http.Get(srv.URL + "/settings/role-policy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer get.Body.Close()
	var view struct {
		CustomPermissions map[string]map[string][]string `json:"customPermissions"`
		LastUpdatedBy     string                         `json:"lastUpdatedBy"`
	}
	if err := json.NewDecoder(get.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := view.CustomPermissions["hr"]["finance"]; len(got) != 1 || got[0] != "read" {
		t.Fatalf("round-tripped hr finance = %v", got)
	}
}

func TestRolePolicyValidation(t *testing.T) {
	srv := newSettingsServer(t, &memRepo{}, policy.RoleAdmin)

	cases := []struct {
		name string
		body string
	}{
		{"unknown role", `{"customPermissions":{"superuser":{}}}`},
		{"unknown module", `{"customPermissions":{"hr":{"payroll":["read"]}}}`},
		{"unknown action", `{"customPermissions":{"hr":{"finance":["fly"]}}}`},
		{"missing document", `{}`},
		{"malformed json", `{"customPermissions":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPut, srv.URL+"/settings/role-policy", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestRolePolicyGuard(t *testing.T) {
	// Anonymous callers never reach the handler.
	srv := newSettingsServer(t, &memRepo{}, "")
	resp, err := http.Get(srv.URL + "/settings/role-policy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}

	// Interns hold no user-management access.
	srv = newSettingsServer(t, &memRepo{}, policy.RoleIntern)
	resp, err = http.Get(srv.URL + "/settings/role-policy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("intern status = %d, want 403", resp.StatusCode)
	}
}
