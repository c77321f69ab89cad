package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"outreach_portal_backend/internal/campaigns/domain"
	"outreach_portal_backend/internal/campaigns/repository"
	"outreach_portal_backend/internal/campaigns/transport"
	"outreach_portal_backend/platform/apperr"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeRepo mirrors the SQL layer's budget check: the sum plus write happens
// under one lock, the way the real repository serializes allocation writes
// per tenant with an advisory lock.
type fakeRepo struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]repository.Campaign
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{campaigns: make(map[uuid.UUID]repository.Campaign)}
}

func (f *fakeRepo) allocationSum(tenantID, exclude uuid.UUID) int {
	sum := 0
	for _, c := range f.campaigns {
		if c.TenantID == tenantID && c.ID != exclude && !domain.Terminal(c.Status) {
			sum += c.LeadAllocationPct
		}
	}
	return sum
}

func (f *fakeRepo) GetByID(_ context.Context, id, tenantID uuid.UUID) (repository.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	return c, nil
}

func (f *fakeRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]repository.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Campaign
	for _, c := range f.campaigns {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateParams) (repository.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sum := f.allocationSum(params.TenantID, uuid.Nil); !domain.AllocationFits(sum, params.LeadAllocationPct) {
		return repository.Campaign{}, apperr.Conflict("campaign allocation exceeded")
	}
	c := repository.Campaign{
		ID:                uuid.New(),
		TenantID:          params.TenantID,
		Name:              params.Name,
		Status:            domain.StatusDraft,
		LeadAllocationPct: params.LeadAllocationPct,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	f.campaigns[c.ID] = c
	return c, nil
}

func (f *fakeRepo) UpdateAllocation(_ context.Context, id, tenantID uuid.UUID, pct int) (repository.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	if sum := f.allocationSum(tenantID, id); !domain.AllocationFits(sum, pct) {
		return repository.Campaign{}, apperr.Conflict("campaign allocation exceeded")
	}
	c.LeadAllocationPct = pct
	c.UpdatedAt = time.Now()
	f.campaigns[id] = c
	return c, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id, tenantID uuid.UUID, status domain.Status) (repository.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok || c.TenantID != tenantID {
		return repository.Campaign{}, apperr.NotFound("campaign not found")
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	f.campaigns[id] = c
	return c, nil
}

func newService(repo *fakeRepo) *Service {
	return New(repo, logger.New("test"))
}

func TestCreateRejectsWhenBudgetExceeded(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	tenantID := uuid.New()
	ctx := context.Background()

	if _, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "outbound q3", LeadAllocationPct: 60}); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "outbound q4", LeadAllocationPct: 40}); err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	_, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "overflow", LeadAllocationPct: 1})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict over budget, got %v", err)
	}
}

func TestBudgetIsPerTenant(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	ctx := context.Background()

	if _, err := svc.Create(ctx, uuid.New(), transport.CreateCampaignRequest{Name: "a", LeadAllocationPct: 100}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, uuid.New(), transport.CreateCampaignRequest{Name: "b", LeadAllocationPct: 100}); err != nil {
		t.Fatalf("other tenant must have its own budget: %v", err)
	}
}

func TestUpdateAllocationExcludesOwnRow(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	tenantID := uuid.New()
	ctx := context.Background()

	first, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "a", LeadAllocationPct: 60})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "b", LeadAllocationPct: 40}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Lowering the first campaign must not count its old 60 against itself.
	updated, err := svc.UpdateAllocation(ctx, first.ID, tenantID, transport.UpdateAllocationRequest{LeadAllocationPct: 55})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.LeadAllocationPct != 55 {
		t.Errorf("expected 55, got %d", updated.LeadAllocationPct)
	}

	// Raising it past the remaining headroom is rejected.
	_, err = svc.UpdateAllocation(ctx, first.ID, tenantID, transport.UpdateAllocationRequest{LeadAllocationPct: 61})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestTerminalCampaignsFreeAllocation(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	tenantID := uuid.New()
	ctx := context.Background()

	c, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "a", LeadAllocationPct: 100})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, c.ID, tenantID, transport.UpdateStatusRequest{Status: "active"}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, c.ID, tenantID, transport.UpdateStatusRequest{Status: "completed"}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if _, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "b", LeadAllocationPct: 100}); err != nil {
		t.Fatalf("completed campaign must free its share: %v", err)
	}
}

func TestInvalidStatusTransitions(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	tenantID := uuid.New()
	ctx := context.Background()

	c, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "a", LeadAllocationPct: 10})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Draft cannot pause or complete.
	for _, to := range []string{"paused", "completed"} {
		if _, err := svc.UpdateStatus(ctx, c.ID, tenantID, transport.UpdateStatusRequest{Status: to}); !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("draft -> %s: expected conflict, got %v", to, err)
		}
	}

	if _, err := svc.UpdateStatus(ctx, c.ID, tenantID, transport.UpdateStatusRequest{Status: "archived"}); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	// Terminal states are final.
	if _, err := svc.UpdateStatus(ctx, c.ID, tenantID, transport.UpdateStatusRequest{Status: "active"}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("archived -> active: expected conflict, got %v", err)
	}
}

// Two concurrent creates for a tenant with no campaigns must serialize on
// the allocation check: both see an empty sum only if nothing orders the
// check against the insert.
func TestConcurrentCreatesCannotExceedBudget(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	tenantID := uuid.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: "launch", LeadAllocationPct: 60})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}
	if sum := repo.allocationSum(tenantID, uuid.Nil); sum > domain.AllocationLimit {
		t.Fatalf("committed sum %d exceeds budget", sum)
	}
}

// Concurrent allocation changes against one tenant must never let the
// committed sum exceed the budget.
func TestConcurrentUpdatesCannotExceedBudget(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo)
	tenantID := uuid.New()
	ctx := context.Background()

	ids := make([]uuid.UUID, 0, 2)
	for _, name := range []string{"a", "b"} {
		c, err := svc.Create(ctx, tenantID, transport.CreateCampaignRequest{Name: name, LeadAllocationPct: 10})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		ids = append(ids, c.ID)
	}

	// Both race to grab 60 of the remaining 80. At most one can win.
	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, campaignID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.UpdateAllocation(ctx, campaignID, tenantID, transport.UpdateAllocationRequest{LeadAllocationPct: 60})
		}(i, id)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes)
	}

	if sum := repo.allocationSum(tenantID, uuid.Nil); sum > domain.AllocationLimit {
		t.Fatalf("committed sum %d exceeds budget", sum)
	}
}
