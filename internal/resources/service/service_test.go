package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"outreach_portal_backend/internal/events"
	"outreach_portal_backend/internal/resources/domain"
	"outreach_portal_backend/internal/resources/repository"
	"outreach_portal_backend/internal/resources/transport"
	"outreach_portal_backend/internal/resources/warmup"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu        sync.Mutex
	resources map[uuid.UUID]repository.Resource
	grants    map[uuid.UUID]repository.Grant
	tiers     map[uuid.UUID]string
	quotas    map[string]int // tier|type
	counts    map[uuid.UUID]domain.WindowCounts
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		resources: make(map[uuid.UUID]repository.Resource),
		grants:    make(map[uuid.UUID]repository.Grant),
		tiers:     make(map[uuid.UUID]string),
		quotas: map[string]int{
			"starter|sending_domain":  2,
			"standard|sending_domain": 5,
			"standard|phone_number":   3,
		},
		counts: make(map[uuid.UUID]domain.WindowCounts),
	}
}

func (f *fakeRepo) addResource(res repository.Resource) repository.Resource {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.Status == "" {
		res.Status = domain.StatusAvailable
	}
	if res.Health == "" {
		res.Health = domain.HealthGood
	}
	if res.MaxTenants == 0 {
		res.MaxTenants = 1
	}
	f.mu.Lock()
	f.resources[res.ID] = res
	f.mu.Unlock()
	return res
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.resources[id]
	if !ok {
		return repository.Resource{}, apperr.NotFound("resource not found")
	}
	return res, nil
}

func (f *fakeRepo) List(_ context.Context, _ *domain.ResourceType, _, _ int) ([]repository.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Resource
	for _, res := range f.resources {
		out = append(out, res)
	}
	return out, nil
}

func (f *fakeRepo) ListGrantsByTenant(_ context.Context, tenantID uuid.UUID) ([]repository.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Grant
	for _, g := range f.grants {
		if g.TenantID == tenantID && g.ReleasedAt == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountActiveGrants(_ context.Context, tenantID uuid.UUID, resourceType domain.ResourceType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, g := range f.grants {
		if g.TenantID == tenantID && g.ReleasedAt == nil && f.resources[g.ResourceID].Type == resourceType {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) TenantTier(_ context.Context, tenantID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tier, ok := f.tiers[tenantID]; ok {
		return tier, nil
	}
	return "standard", nil
}

func (f *fakeRepo) QuotaFor(_ context.Context, tier string, resourceType domain.ResourceType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quota, ok := f.quotas[tier+"|"+string(resourceType)]
	if !ok {
		return 0, apperr.NotFound("no quota configured for tier")
	}
	return quota, nil
}

func (f *fakeRepo) ListForHealthRecompute(_ context.Context, _ int) ([]repository.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Resource
	for _, res := range f.resources {
		if res.Status != domain.StatusRetired {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeRepo) WindowCounts(_ context.Context, resourceID uuid.UUID, _ time.Time) (domain.WindowCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[resourceID], nil
}

func (f *fakeRepo) Register(_ context.Context, params repository.RegisterParams) (repository.Resource, error) {
	now := time.Now()
	return f.addResource(repository.Resource{
		Type:               params.Type,
		Value:              params.Value,
		Status:             domain.StatusWarming,
		MaxTenants:         params.MaxTenants,
		ActivatedAt:        &now,
		DailyLimitOverride: params.DailyLimitOverride,
	}), nil
}

func (f *fakeRepo) Retire(_ context.Context, id uuid.UUID) (repository.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.resources[id]
	if !ok {
		return repository.Resource{}, apperr.NotFound("resource not found")
	}
	res.Status = domain.StatusRetired
	f.resources[id] = res
	return res, nil
}

func (f *fakeRepo) GrantBest(_ context.Context, resourceType domain.ResourceType, tenantID uuid.UUID, _ time.Time) (repository.Grant, repository.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, res := range f.resources {
		if res.Type != resourceType || res.Status == domain.StatusRetired {
			continue
		}
		if res.Health == domain.HealthCritical || res.CurrentTenants >= res.MaxTenants {
			continue
		}
		alreadyHeld := false
		for _, g := range f.grants {
			if g.ResourceID == id && g.TenantID == tenantID && g.ReleasedAt == nil {
				alreadyHeld = true
				break
			}
		}
		if alreadyHeld {
			continue
		}

		g := repository.Grant{ID: uuid.New(), ResourceID: id, TenantID: tenantID, GrantedAt: time.Now()}
		f.grants[g.ID] = g
		res.CurrentTenants++
		res.Status = domain.StatusAfterGrant(res.Status, res.CurrentTenants, res.MaxTenants)
		f.resources[id] = res
		return g, res, nil
	}
	return repository.Grant{}, repository.Resource{}, apperr.Conflict("no resource capacity available")
}

func (f *fakeRepo) Revoke(_ context.Context, grantID, tenantID uuid.UUID) (repository.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[grantID]
	if !ok || g.TenantID != tenantID || g.ReleasedAt != nil {
		return repository.Grant{}, apperr.NotFound("grant not found")
	}
	now := time.Now()
	g.ReleasedAt = &now
	f.grants[grantID] = g

	res := f.resources[g.ResourceID]
	res.CurrentTenants--
	res.Status = domain.StatusAfterRevoke(res.Status, res.CurrentTenants, res.MaxTenants)
	f.resources[g.ResourceID] = res
	return g, nil
}

func (f *fakeRepo) RecordSendEvent(_ context.Context, resourceID uuid.UUID, eventType string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := f.counts[resourceID]
	switch eventType {
	case "sent":
		counts.Sends++
	case "bounced":
		counts.Bounces++
	case "complained":
		counts.Complaints++
	case "accepted":
		counts.Accepts++
	}
	f.counts[resourceID] = counts
	return nil
}

func (f *fakeRepo) ApplyHealthUpdate(_ context.Context, update repository.HealthUpdate) (domain.HealthStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.resources[update.ResourceID]
	if !ok {
		return "", apperr.NotFound("resource not found")
	}
	previous := res.Health
	res.Health = update.Health
	res.BounceRate = update.Rates.Bounce
	res.ComplaintRate = update.Rates.Complaint
	res.AcceptRate = update.Rates.Accept
	f.resources[update.ResourceID] = res
	return previous, nil
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.Publish(context.Background(), event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func newService(repo *fakeRepo) (*Service, *recordingBus) {
	bus := &recordingBus{}
	return New(repo, warmup.Default(), time.UTC, bus, logger.New("test")), bus
}

func daysAgo(n int) *time.Time {
	t := time.Now().AddDate(0, 0, -n)
	return &t
}

func intPtr(n int) *int { return &n }

func TestRequestEnforcesTierQuota(t *testing.T) {
	repo := newFakeRepo()
	tenant := uuid.New()
	repo.tiers[tenant] = "starter"
	for i := 0; i < 3; i++ {
		repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d" + string(rune('a'+i)) + ".example.com"})
	}
	svc, _ := newService(repo)
	req := transport.RequestResourceRequest{Type: "sending_domain"}

	for i := 0; i < 2; i++ {
		if _, err := svc.Request(context.Background(), tenant, req); err != nil {
			t.Fatalf("grant %d failed: %v", i+1, err)
		}
	}

	_, err := svc.Request(context.Background(), tenant, req)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected quota rejection, got %v", err)
	}
}

func TestRequestFailsWhenNoCapacity(t *testing.T) {
	repo := newFakeRepo()
	res := repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d.example.com", MaxTenants: 1})
	svc, _ := newService(repo)
	req := transport.RequestResourceRequest{Type: "sending_domain"}

	if _, err := svc.Request(context.Background(), uuid.New(), req); err != nil {
		t.Fatalf("first grant failed: %v", err)
	}

	_, err := svc.Request(context.Background(), uuid.New(), req)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected capacity conflict, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), res.ID)
	if stored.CurrentTenants != stored.MaxTenants {
		t.Errorf("tenant count %d exceeds max %d", stored.CurrentTenants, stored.MaxTenants)
	}
}

func TestRequestSkipsCriticalResources(t *testing.T) {
	repo := newFakeRepo()
	repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "burned.example.com", Health: domain.HealthCritical})
	svc, _ := newService(repo)

	_, err := svc.Request(context.Background(), uuid.New(), transport.RequestResourceRequest{Type: "sending_domain"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict when only critical resources exist, got %v", err)
	}
}

func TestRequestPublishesGrantEvent(t *testing.T) {
	repo := newFakeRepo()
	repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d.example.com"})
	svc, bus := newService(repo)

	granted, err := svc.Request(context.Background(), uuid.New(), transport.RequestResourceRequest{Type: "sending_domain"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.events))
	}
	e, ok := bus.events[0].(events.ResourceGranted)
	if !ok {
		t.Fatalf("expected ResourceGranted, got %T", bus.events[0])
	}
	if len(granted) != 1 {
		t.Fatalf("expected one grant, got %d", len(granted))
	}
	if e.GrantID != granted[0].Grant.ID {
		t.Errorf("event grant id %s does not match response %s", e.GrantID, granted[0].Grant.ID)
	}
}

func TestRequestBatchGrantsDistinctResources(t *testing.T) {
	repo := newFakeRepo()
	for i := 0; i < 3; i++ {
		repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d" + string(rune('a'+i)) + ".example.com"})
	}
	svc, _ := newService(repo)

	granted, err := svc.Request(context.Background(), uuid.New(), transport.RequestResourceRequest{Type: "sending_domain", Count: 3})
	if err != nil {
		t.Fatalf("batch request failed: %v", err)
	}
	if len(granted) != 3 {
		t.Fatalf("expected 3 grants, got %d", len(granted))
	}

	seen := make(map[uuid.UUID]bool)
	for _, g := range granted {
		if seen[g.Resource.ID] {
			t.Fatalf("resource %s granted twice in one batch", g.Resource.ID)
		}
		seen[g.Resource.ID] = true
	}
}

func TestRequestBatchUnwindsOnShortfall(t *testing.T) {
	repo := newFakeRepo()
	res := repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d.example.com"})
	svc, _ := newService(repo)
	tenant := uuid.New()

	_, err := svc.Request(context.Background(), tenant, transport.RequestResourceRequest{Type: "sending_domain", Count: 2})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on shortfall, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), res.ID)
	if stored.CurrentTenants != 0 {
		t.Errorf("expected unwound capacity, got %d tenants", stored.CurrentTenants)
	}
	grants, _ := repo.ListGrantsByTenant(context.Background(), tenant)
	if len(grants) != 0 {
		t.Errorf("expected no surviving grants, got %d", len(grants))
	}
}

func TestRevokeFreesCapacity(t *testing.T) {
	repo := newFakeRepo()
	res := repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d.example.com", MaxTenants: 1})
	svc, _ := newService(repo)
	tenant := uuid.New()

	granted, err := svc.Request(context.Background(), tenant, transport.RequestResourceRequest{Type: "sending_domain"})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := svc.Revoke(context.Background(), granted[0].Grant.ID, tenant); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), res.ID)
	if stored.CurrentTenants != 0 {
		t.Errorf("expected freed capacity, got %d tenants", stored.CurrentTenants)
	}

	// Another tenant can now take the slot.
	if _, err := svc.Request(context.Background(), uuid.New(), transport.RequestResourceRequest{Type: "sending_domain"}); err != nil {
		t.Fatalf("regrant after revoke failed: %v", err)
	}
}

// Status reflects saturation, not mere sharing: a resource with free slots
// stays available and only flips to assigned when the last slot is taken.
func TestGrantStatusTracksSaturation(t *testing.T) {
	repo := newFakeRepo()
	res := repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d.example.com", MaxTenants: 2})
	svc, _ := newService(repo)

	first, err := svc.Request(context.Background(), uuid.New(), transport.RequestResourceRequest{Type: "sending_domain"})
	if err != nil {
		t.Fatalf("first grant failed: %v", err)
	}
	stored, _ := repo.GetByID(context.Background(), res.ID)
	if stored.Status != domain.StatusAvailable {
		t.Errorf("half-shared resource must stay available, got %q", stored.Status)
	}

	if _, err := svc.Request(context.Background(), uuid.New(), transport.RequestResourceRequest{Type: "sending_domain"}); err != nil {
		t.Fatalf("second grant failed: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), res.ID)
	if stored.Status != domain.StatusAssigned {
		t.Errorf("saturated resource must be assigned, got %q", stored.Status)
	}

	if _, err := svc.Revoke(context.Background(), first[0].Grant.ID, first[0].Grant.TenantID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), res.ID)
	if stored.Status != domain.StatusAvailable {
		t.Errorf("freed slot must reopen the resource, got %q", stored.Status)
	}
}

func TestEffectiveDailyLimitFollowsWarmupAndHealth(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newService(repo)
	now := time.Now()

	cases := []struct {
		name string
		res  repository.Resource
		want int
	}{
		{"day 2 of ramp", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(1), Health: domain.HealthGood}, 5},
		{"day 9 of ramp", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(8), Health: domain.HealthGood}, 15},
		{"ramp complete", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(30), Health: domain.HealthGood}, 50},
		{"warning clamps", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(30), Health: domain.HealthWarning}, 35},
		{"critical pauses", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(30), Health: domain.HealthCritical}, 0},
		{"retired is zero", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(30), Health: domain.HealthGood, Status: domain.StatusRetired}, 0},
		{"never activated is zero", repository.Resource{Type: domain.TypeSendingDomain, Health: domain.HealthGood}, 0},
		{"override applies without activation", repository.Resource{Type: domain.TypeSendingDomain, Health: domain.HealthGood, DailyLimitOverride: intPtr(25)}, 25},
		{"override wins over critical", repository.Resource{Type: domain.TypeSendingDomain, ActivatedAt: daysAgo(30), Health: domain.HealthCritical, DailyLimitOverride: intPtr(10)}, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.EffectiveDailyLimit(tc.res, now); got != tc.want {
				t.Errorf("EffectiveDailyLimit = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRecomputeHealthPublishesTransitions(t *testing.T) {
	repo := newFakeRepo()
	res := repo.addResource(repository.Resource{Type: domain.TypeSendingDomain, Value: "d.example.com", Health: domain.HealthGood})
	repo.counts[res.ID] = domain.WindowCounts{Sends: 1000, Bounces: 60}
	svc, bus := newService(repo)

	updated, err := svc.RecomputeHealth(context.Background(), 10)
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 updated, got %d", updated)
	}

	stored, _ := repo.GetByID(context.Background(), res.ID)
	if stored.Health != domain.HealthCritical {
		t.Errorf("expected critical health, got %q", stored.Health)
	}

	var saw bool
	for _, e := range bus.events {
		if changed, ok := e.(events.ResourceHealthChanged); ok {
			saw = true
			if changed.From != "good" || changed.To != "critical" {
				t.Errorf("unexpected transition %s -> %s", changed.From, changed.To)
			}
		}
	}
	if !saw {
		t.Error("expected a health changed event")
	}

	// A second pass with unchanged counts emits no further transitions.
	bus.events = nil
	if _, err := svc.RecomputeHealth(context.Background(), 10); err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	for _, e := range bus.events {
		if _, ok := e.(events.ResourceHealthChanged); ok {
			t.Error("unexpected transition event on steady state")
		}
	}
}

func TestRegisterNormalizesPhoneNumbers(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newService(repo)

	res, err := svc.Register(context.Background(), transport.RegisterResourceRequest{
		Type:  "phone_number",
		Value: "06 12345678",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.Value != "+31612345678" {
		t.Errorf("expected E.164 value, got %q", res.Value)
	}
}
