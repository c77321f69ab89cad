// Package warmup defines the gradual ramp-up schedule new outreach resources
// follow before reaching their full daily sending capacity.
package warmup

import (
	"fmt"
	"os"
	"sort"
	"time"

	"outreach_portal_backend/internal/resources/domain"

	"gopkg.in/yaml.v3"
)

// Stage is one step of a ramp: the daily limit that applies through the
// given warm-up day (inclusive).
type Stage struct {
	ThroughDay int `yaml:"throughDay"`
	Limit      int `yaml:"limit"`
}

// Ramp is the warm-up schedule for one resource type. Days past the last
// stage use the ceiling.
type Ramp struct {
	Stages  []Stage `yaml:"stages"`
	Ceiling int     `yaml:"ceiling"`
}

// Policy maps resource types to their ramps.
type Policy struct {
	ramps map[domain.ResourceType]Ramp
}

// Default returns the built-in warm-up policy. Sending domains ramp the
// slowest relative to their ceiling; provider reputation systems punish
// sudden volume from fresh identities.
func Default() *Policy {
	baseStages := []Stage{
		{ThroughDay: 3, Limit: 5},
		{ThroughDay: 7, Limit: 10},
		{ThroughDay: 11, Limit: 15},
	}
	return &Policy{
		ramps: map[domain.ResourceType]Ramp{
			domain.TypeSendingDomain: {Stages: baseStages, Ceiling: 50},
			domain.TypeSocialSeat:    {Stages: baseStages, Ceiling: 20},
			domain.TypePhoneNumber:   {Stages: baseStages, Ceiling: 30},
		},
	}
}

type policyFile struct {
	Ramps map[string]Ramp `yaml:"ramps"`
}

// Load reads a YAML policy file and overlays it on the defaults. Types not
// present in the file keep their built-in ramp.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read warmup policy: %w", err)
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse warmup policy: %w", err)
	}

	policy := Default()
	for name, ramp := range file.Ramps {
		resourceType := domain.ResourceType(name)
		if !domain.ValidType(resourceType) {
			return nil, fmt.Errorf("warmup policy: unknown resource type %q", name)
		}
		if err := validateRamp(ramp); err != nil {
			return nil, fmt.Errorf("warmup policy %q: %w", name, err)
		}
		policy.ramps[resourceType] = ramp
	}
	return policy, nil
}

func validateRamp(r Ramp) error {
	if r.Ceiling < 1 {
		return fmt.Errorf("ceiling must be positive, got %d", r.Ceiling)
	}
	if !sort.SliceIsSorted(r.Stages, func(i, j int) bool {
		return r.Stages[i].ThroughDay < r.Stages[j].ThroughDay
	}) {
		return fmt.Errorf("stages must be ordered by day")
	}
	prev := 0
	for _, stage := range r.Stages {
		if stage.ThroughDay < 1 {
			return fmt.Errorf("stage day must be positive, got %d", stage.ThroughDay)
		}
		if stage.Limit < prev {
			return fmt.Errorf("stage limits must not decrease")
		}
		if stage.Limit > r.Ceiling {
			return fmt.Errorf("stage limit %d exceeds ceiling %d", stage.Limit, r.Ceiling)
		}
		prev = stage.Limit
	}
	return nil
}

// DayNumber returns the 1-based warm-up day for a resource activated at the
// given time, evaluated in the scheduling location. Activation day is day 1.
func DayNumber(activatedAt, now time.Time, loc *time.Location) int {
	a := activatedAt.In(loc)
	n := now.In(loc)
	aDay := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	nDay := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	days := int(nDay.Sub(aDay).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

// LimitFor returns the warm-up daily limit for a resource of the given type
// on its warm-up day. Unknown types get the most conservative known ramp.
func (p *Policy) LimitFor(resourceType domain.ResourceType, day int) int {
	ramp, ok := p.ramps[resourceType]
	if !ok {
		ramp = p.ramps[domain.TypeSocialSeat]
	}
	if day < 1 {
		day = 1
	}
	for _, stage := range ramp.Stages {
		if day <= stage.ThroughDay {
			return stage.Limit
		}
	}
	return ramp.Ceiling
}

// RampDays returns the number of days the ramp runs before the ceiling
// applies for the given resource type.
func (p *Policy) RampDays(resourceType domain.ResourceType) int {
	ramp, ok := p.ramps[resourceType]
	if !ok || len(ramp.Stages) == 0 {
		return 0
	}
	return ramp.Stages[len(ramp.Stages)-1].ThroughDay
}

// Complete reports whether the resource has finished its ramp on the given day.
func (p *Policy) Complete(resourceType domain.ResourceType, day int) bool {
	ramp, ok := p.ramps[resourceType]
	if !ok {
		return false
	}
	if len(ramp.Stages) == 0 {
		return true
	}
	return day > ramp.Stages[len(ramp.Stages)-1].ThroughDay
}
