// Package domain provides core business rules for shared outreach resources.
package domain

// ResourceType identifies the kind of shared infrastructure a resource is.
type ResourceType string

const (
	TypeSendingDomain ResourceType = "sending_domain"
	TypePhoneNumber   ResourceType = "phone_number"
	TypeSocialSeat    ResourceType = "social_seat"
)

// ValidType reports whether t is a known resource type.
func ValidType(t ResourceType) bool {
	switch t {
	case TypeSendingDomain, TypePhoneNumber, TypeSocialSeat:
		return true
	}
	return false
}

// ResourceStatus is the provisioning lifecycle status of a resource.
type ResourceStatus string

const (
	StatusAvailable ResourceStatus = "available"
	StatusAssigned  ResourceStatus = "assigned"
	StatusWarming   ResourceStatus = "warming"
	StatusRetired   ResourceStatus = "retired"
)

// StatusAfterGrant returns the provisioning status once a grant has raised
// the tenant count to currentTenants. A shared resource stays available for
// further sharing until its capacity saturates.
func StatusAfterGrant(status ResourceStatus, currentTenants, maxTenants int) ResourceStatus {
	if status == StatusAvailable && currentTenants >= maxTenants {
		return StatusAssigned
	}
	return status
}

// StatusAfterRevoke returns the provisioning status once a revoke has
// lowered the tenant count to currentTenants. Freeing any slot on a
// saturated resource makes it available again.
func StatusAfterRevoke(status ResourceStatus, currentTenants, maxTenants int) ResourceStatus {
	if status == StatusAssigned && currentTenants < maxTenants {
		return StatusAvailable
	}
	return status
}

// HealthStatus is the derived deliverability health of a resource.
type HealthStatus string

const (
	HealthGood     HealthStatus = "good"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
)

// Deliverability thresholds over the trailing 30-day window. Industry
// guidance: keep bounces under 2% and complaints under 0.1%; past 5%
// bounces a sending identity is effectively burned.
const (
	bounceWarningRate     = 0.02
	bounceCriticalRate    = 0.05
	complaintWarningRate  = 0.0005
	complaintCriticalRate = 0.001
)

// WindowCounts are the trailing 30-day send outcome counters for a resource.
type WindowCounts struct {
	Sends      int64
	Bounces    int64
	Complaints int64
	Accepts    int64
}

// Rates are the derived ratios over the window. All zero when the window
// has no sends.
type Rates struct {
	Bounce    float64
	Complaint float64
	Accept    float64
}

// ComputeRates derives ratios from window counters.
func (c WindowCounts) ComputeRates() Rates {
	if c.Sends == 0 {
		return Rates{}
	}
	total := float64(c.Sends)
	return Rates{
		Bounce:    float64(c.Bounces) / total,
		Complaint: float64(c.Complaints) / total,
		Accept:    float64(c.Accepts) / total,
	}
}

// Classify maps window counters to a health status. A pure function of the
// window: an empty window is good, any sends are classified by their rates.
func Classify(counts WindowCounts) HealthStatus {
	rates := counts.ComputeRates()
	switch {
	case rates.Bounce > bounceCriticalRate || rates.Complaint > complaintCriticalRate:
		return HealthCritical
	case rates.Bounce > bounceWarningRate || rates.Complaint > complaintWarningRate:
		return HealthWarning
	default:
		return HealthGood
	}
}

// Throttled daily ceiling applied while a resource is in warning health.
const warningDailyCeiling = 35

// EffectiveDailyLimit computes the sends a resource may make today.
// warmupLimit is the ramp value for the resource's age. Health throttles
// the ramp: warning clamps to a reduced ceiling, critical pauses sending.
// A manual override takes precedence over both the ramp and the throttle.
func EffectiveDailyLimit(health HealthStatus, warmupLimit int, override *int) int {
	if override != nil {
		if *override < 0 {
			return 0
		}
		return *override
	}

	switch health {
	case HealthCritical:
		return 0
	case HealthWarning:
		if warmupLimit > warningDailyCeiling {
			return warningDailyCeiling
		}
	}
	if warmupLimit < 0 {
		return 0
	}
	return warmupLimit
}
