// Package scoring computes the composite 0-100 lead priority score.
package scoring

import (
	"math"
	"strings"
	"time"

	"outreach_portal_backend/internal/leadpool/domain"
	"outreach_portal_backend/internal/leadpool/repository"
)

const (
	// ScoreVersion tracks the scoring model for debugging and analysis.
	// Bump this when changing scoring logic significantly.
	ScoreVersion = "2026-v1"

	// Maximum contribution from each factor category. The caps keep the
	// clamped total within 0-100 regardless of weight vectors.
	maxDataQualityContribution = 20.0
	maxAuthorityContribution   = 25.0
	maxCompanyFitContribution  = 25.0
	maxTimingContribution      = 15.0
	maxRiskDeduction           = 15.0
)

// Tier is the discretized priority bucket of a composite score.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCool Tier = "cool"
	TierCold Tier = "cold"
	TierDead Tier = "dead"
)

// TierFor maps a composite score to its tier using the fixed threshold table.
func TierFor(total int) Tier {
	switch {
	case total >= 85:
		return TierHot
	case total >= 60:
		return TierWarm
	case total >= 35:
		return TierCool
	case total >= 20:
		return TierCold
	default:
		return TierDead
	}
}

// Weights is a tenant-specific multiplier vector applied to each factor
// category before its cap. Values outside [0, 1.5] are clamped.
type Weights struct {
	DataQuality float64 `json:"dataQuality"`
	Authority   float64 `json:"authority"`
	CompanyFit  float64 `json:"companyFit"`
	Timing      float64 `json:"timing"`
	Risk        float64 `json:"risk"`
}

// DefaultWeights returns the neutral weight vector used when a tenant has
// not supplied one.
func DefaultWeights() Weights {
	return Weights{DataQuality: 1, Authority: 1, CompanyFit: 1, Timing: 1, Risk: 1}
}

func (w Weights) normalized() Weights {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1.5 {
			return 1.5
		}
		return v
	}
	return Weights{
		DataQuality: clamp(w.DataQuality),
		Authority:   clamp(w.Authority),
		CompanyFit:  clamp(w.CompanyFit),
		Timing:      clamp(w.Timing),
		Risk:        clamp(w.Risk),
	}
}

// Components is the per-category breakdown persisted alongside the total.
type Components struct {
	DataQuality float64
	Authority   float64
	CompanyFit  float64
	Timing      float64
	Risk        float64
	Total       int
	Tier        Tier
}

// Compute scores a lead from its enrichment attributes. Malformed or missing
// attributes lower the data-quality component; they are never an error.
func Compute(lead repository.PoolLead, w Weights, now time.Time) Components {
	w = w.normalized()

	c := Components{
		DataQuality: capAt(dataQualityScore(lead)*w.DataQuality, maxDataQualityContribution),
		Authority:   capAt(authorityScore(lead)*w.Authority, maxAuthorityContribution),
		CompanyFit:  capAt(companyFitScore(lead)*w.CompanyFit, maxCompanyFitContribution),
		Timing:      capAt(timingScore(lead, now)*w.Timing, maxTimingContribution),
		Risk:        capAt(riskDeduction(lead)*w.Risk, maxRiskDeduction),
	}

	total := c.DataQuality + c.Authority + c.CompanyFit + c.Timing - c.Risk
	c.Total = int(math.Round(math.Max(0, math.Min(100, total))))
	c.Tier = TierFor(c.Total)
	return c
}

func capAt(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	if v < 0 {
		return 0
	}
	return v
}

// dataQualityScore rewards verified contact data and profile completeness.
func dataQualityScore(lead repository.PoolLead) float64 {
	var score float64

	switch lead.Verification {
	case domain.VerificationVerified:
		score += 10
	case domain.VerificationCatchAll:
		score += 5
	case domain.VerificationGuessed:
		score += 3
	}

	if hasValue(lead.FirstName) && hasValue(lead.LastName) {
		score += 3
	}
	if hasValue(lead.Company) {
		score += 3
	}
	if hasValue(lead.Title) {
		score += 2
	}
	if hasValue(lead.Industry) {
		score += 1
	}
	if hasValue(lead.Country) {
		score += 1
	}

	return score
}

// authorityTitles maps title fragments to base authority points, strongest
// match wins.
var authorityTitles = []struct {
	fragment string
	points   float64
}{
	{"chief", 25},
	{"ceo", 25},
	{"cto", 25},
	{"cfo", 25},
	{"coo", 25},
	{"founder", 25},
	{"owner", 22},
	{"president", 22},
	{"vp", 20},
	{"vice president", 20},
	{"head of", 18},
	{"director", 16},
	{"lead", 10},
	{"manager", 10},
	{"senior", 6},
}

func authorityScore(lead repository.PoolLead) float64 {
	if !hasValue(lead.Title) {
		return 0
	}
	title := strings.ToLower(*lead.Title)
	for _, entry := range authorityTitles {
		if strings.Contains(title, entry.fragment) {
			return entry.points
		}
	}
	return 4
}

// companyFitScore rewards companies in the platform's sweet spot: known
// industry plus a mid-market headcount band.
func companyFitScore(lead repository.PoolLead) float64 {
	var score float64

	if lead.CompanySize != nil {
		switch size := *lead.CompanySize; {
		case size >= 50 && size <= 1000:
			score += 15
		case size >= 11 && size < 50:
			score += 11
		case size > 1000 && size <= 5000:
			score += 9
		case size >= 1 && size < 11:
			score += 5
		case size > 5000:
			score += 4
		}
	}

	if hasValue(lead.Industry) {
		score += 6
	}
	if hasValue(lead.Company) {
		score += 4
	}

	return score
}

// timingScore rewards a recent buying signal (funding round, hiring spike,
// tech change) recorded by enrichment.
func timingScore(lead repository.PoolLead, now time.Time) float64 {
	if lead.SignalAt == nil {
		return 0
	}
	age := now.Sub(*lead.SignalAt)
	switch {
	case age < 0:
		return 0
	case age <= 7*24*time.Hour:
		return 15
	case age <= 30*24*time.Hour:
		return 10
	case age <= 90*24*time.Hour:
		return 5
	default:
		return 0
	}
}

// riskDeduction penalizes signals that predict bounces or spam complaints.
func riskDeduction(lead repository.PoolLead) float64 {
	var risk float64

	switch lead.Verification {
	case domain.VerificationInvalid:
		risk += 10
	case domain.VerificationUnknown:
		risk += 5
	case domain.VerificationCatchAll:
		risk += 3
	}

	if lead.IsBounced {
		risk += 15
	}
	if lead.IsUnsubscribed {
		risk += 15
	}
	if !hasValue(lead.Company) && !hasValue(lead.Title) {
		risk += 3
	}

	return risk
}

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
