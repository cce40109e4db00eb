package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ServiceLimits maps a service name to its revenue ceiling.
// The zero value has no services. Values are immutable once built.
type ServiceLimits struct {
	ceilings map[string]float64
	names    []string
}

// DefaultServiceLimits returns the ceiling table of the reference deployment.
func DefaultServiceLimits() ServiceLimits {
	limits, _ := NewServiceLimits(map[string]float64{
		"Airtel Money": 350000.00,
		"FNB":          80000.00,
		"MTN Money":    160000.00,
		"Zamtel Money": 70000.00,
		"Zanaco":       80000.00,
	})
	return limits
}

// NewServiceLimits copies the table. Negative or non-finite ceilings are rejected.
func NewServiceLimits(table map[string]float64) (ServiceLimits, error) {
	ceilings := make(map[string]float64, len(table))
	names := make([]string, 0, len(table))
	for name, ceiling := range table {
		name = strings.TrimSpace(name)
		if name == "" {
			return ServiceLimits{}, fmt.Errorf("empty service name in limits table")
		}
		if math.IsNaN(ceiling) || math.IsInf(ceiling, 0) || ceiling < 0 {
			return ServiceLimits{}, fmt.Errorf("invalid ceiling %v for service %q", ceiling, name)
		}
		if _, dup := ceilings[name]; dup {
			return ServiceLimits{}, fmt.Errorf("duplicate service %q in limits table", name)
		}
		ceilings[name] = ceiling
		names = append(names, name)
	}
	sort.Strings(names)
	return ServiceLimits{ceilings: ceilings, names: names}, nil
}

// Limit returns the ceiling for a service.
func (l ServiceLimits) Limit(service string) (float64, bool) {
	c, ok := l.ceilings[service]
	return c, ok
}

func (l ServiceLimits) Has(service string) bool {
	_, ok := l.ceilings[service]
	return ok
}

// Services returns the configured service names in lexical order.
func (l ServiceLimits) Services() []string {
	return append([]string(nil), l.names...)
}

func (l ServiceLimits) Len() int {
	return len(l.names)
}
