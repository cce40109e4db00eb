package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	AlertRevenue      AlertType = "revenue"
	AlertServiceLimit AlertType = "service_limit"
	AlertPerformance  AlertType = "performance"
)

const (
	SeverityNone     Severity = ""
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type (
	AlertType string

	Severity string

	// TransactionInput is the raw ingestion payload. Revenue is never part of it.
	TransactionInput struct {
		Booth     string
		Service   string
		Amount    float64
		Rate      float64
		Timestamp time.Time
	}

	// Transaction is an immutable ledger record. Revenue is always Amount * Rate.
	Transaction struct {
		ID        int64     `json:"id"`
		Booth     string    `json:"booth"`
		Service   string    `json:"service"`
		Amount    float64   `json:"amount"`
		Rate      float64   `json:"rate"`
		Revenue   float64   `json:"revenue"`
		Timestamp time.Time `json:"timestamp"`
		CreatedAt time.Time `json:"created_at"`
	}

	Alert struct {
		ID        int64     `json:"id"`
		Type      AlertType `json:"type"`
		Message   string    `json:"message"`
		Severity  Severity  `json:"severity"`
		IsRead    bool      `json:"is_read"`
		CreatedAt time.Time `json:"created_at"`
	}
)

// Rank orders severities so the monitor can compare them.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

func (t AlertType) Valid() bool {
	switch t {
	case AlertRevenue, AlertServiceLimit, AlertPerformance:
		return true
	}
	return false
}

// Validate checks the input against the configured services.
func (in TransactionInput) Validate(limits ServiceLimits) error {
	if strings.TrimSpace(in.Booth) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyBooth)
	}
	if len(strings.TrimSpace(in.Booth)) > 50 {
		return fmt.Errorf("%w: booth too long (max 50 characters)", ErrValidation)
	}
	if strings.TrimSpace(in.Service) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyService)
	}
	if !limits.Has(strings.TrimSpace(in.Service)) {
		return fmt.Errorf("%w: %w %q", ErrValidation, ErrUnknownService, in.Service)
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) || in.Amount <= 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidAmount)
	}
	if math.IsNaN(in.Rate) || math.IsInf(in.Rate, 0) || in.Rate < 0 {
		return fmt.Errorf("%w: %w", ErrValidation, ErrInvalidRate)
	}
	// A stored infinite revenue would fail every later aggregate.
	if math.IsInf(in.Amount*in.Rate, 0) {
		return fmt.Errorf("%w: %w: revenue out of range", ErrValidation, ErrInvalidAmount)
	}
	return nil
}

// NewTransaction derives revenue from the input. A zero timestamp means now.
func NewTransaction(in TransactionInput, now time.Time) Transaction {
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return Transaction{
		Booth:     strings.TrimSpace(in.Booth),
		Service:   strings.TrimSpace(in.Service),
		Amount:    in.Amount,
		Rate:      in.Rate,
		Revenue:   in.Amount * in.Rate,
		Timestamp: ts.UTC(),
	}
}

// NewServiceLimitAlert builds the alert raised when a service crosses a threshold.
func NewServiceLimitAlert(status LimitStatus, severity Severity, now time.Time) Alert {
	var msg string
	if severity == SeverityCritical {
		msg = fmt.Sprintf("%s has reached its limit: %.2f of %.2f used (%.2f%%)",
			status.Service, status.CurrentUsage, status.Limit, status.UsagePercentage)
	} else {
		msg = fmt.Sprintf("%s is running low: %.2f remaining of %.2f (%.2f%% used)",
			status.Service, status.Remaining, status.Limit, status.UsagePercentage)
	}
	return Alert{
		Type:      AlertServiceLimit,
		Message:   msg,
		Severity:  severity,
		CreatedAt: now.UTC(),
	}
}
