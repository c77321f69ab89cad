package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"outreach_portal_backend/internal/leadpool/repository"
	"outreach_portal_backend/platform/logger"

	"github.com/google/uuid"
)

// Service scores pool leads and persists the component breakdown for
// auditability and later re-weighting.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new scoring service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Result is the outcome of one scoring run.
type Result struct {
	LeadID     uuid.UUID
	Components Components
}

// Score computes and persists the composite score for one lead. A nil
// weights pointer uses the platform defaults; tenantID records whose weight
// vector produced the score.
func (s *Service) Score(ctx context.Context, leadID uuid.UUID, tenantID *uuid.UUID, weights *Weights) (Result, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return Result{}, err
	}

	w := DefaultWeights()
	if weights != nil {
		w = *weights
	}

	components := Compute(lead, w, time.Now())

	weightsJSON, err := json.Marshal(w)
	if err != nil {
		return Result{}, fmt.Errorf("marshal weights: %w", err)
	}

	record := repository.ScoreRecord{
		LeadID:       leadID,
		TenantID:     tenantID,
		DataQuality:  components.DataQuality,
		Authority:    components.Authority,
		CompanyFit:   components.CompanyFit,
		Timing:       components.Timing,
		Risk:         components.Risk,
		WeightsJSON:  weightsJSON,
		Total:        components.Total,
		Tier:         string(components.Tier),
		ScoreVersion: ScoreVersion,
	}
	if err := s.repo.PersistScore(ctx, record); err != nil {
		return Result{}, err
	}

	s.log.Debug("lead scored", "lead_id", leadID, "total", components.Total, "tier", components.Tier)
	return Result{LeadID: leadID, Components: components}, nil
}

// RescoreUnscored scores up to limit leads that have never been scored.
// Used by intake backfills and after scoring model changes.
func (s *Service) RescoreUnscored(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		limit = 100
	}

	leads, err := s.repo.ListUnscored(ctx, limit)
	if err != nil {
		return 0, err
	}

	scored := 0
	for _, lead := range leads {
		if _, err := s.Score(ctx, lead.ID, nil, nil); err != nil {
			s.log.Warn("rescore failed", "lead_id", lead.ID, "error", err)
			continue
		}
		scored++
	}
	return scored, nil
}
