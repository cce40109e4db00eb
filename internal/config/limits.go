package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"boothmetrics/internal/core"
)

// limitsFile is the layout of SERVICE_LIMITS_FILE:
//
//	service_limits:
//	  Airtel Money: 350000
//	  FNB: 80000
type limitsFile struct {
	ServiceLimits map[string]float64 `yaml:"service_limits"`
}

// LoadServiceLimits reads the ceiling table. An empty path yields the
// built-in table.
func LoadServiceLimits(path string) (core.ServiceLimits, error) {
	if path == "" {
		return core.DefaultServiceLimits(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return core.ServiceLimits{}, fmt.Errorf("read service limits: %w", err)
	}

	var f limitsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return core.ServiceLimits{}, fmt.Errorf("parse service limits %s: %w", path, err)
	}
	if len(f.ServiceLimits) == 0 {
		return core.ServiceLimits{}, fmt.Errorf("service limits %s: no services defined", path)
	}

	limits, err := core.NewServiceLimits(f.ServiceLimits)
	if err != nil {
		return core.ServiceLimits{}, fmt.Errorf("service limits %s: %w", path, err)
	}
	return limits, nil
}
