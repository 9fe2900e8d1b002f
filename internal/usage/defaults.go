package usage

import "time"

const (
	PlanFree      = "free"
	DefaultLimit  = 3
	DefaultWindow = 30 * 24 * time.Hour
)

// Policy sets the free-tier allowance.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) normalized() Policy {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Window <= 0 {
		p.Window = DefaultWindow
	}
	return p
}

func (p Policy) fresh(now time.Time) Usage {
	return Usage{
		Plan:     PlanFree,
		Limit:    p.Limit,
		Used:     0,
		ResetsAt: now.Add(p.Window),
	}
}
