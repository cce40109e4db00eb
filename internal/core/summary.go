package core

import "time"

// GroupKey selects the dimension transactions are grouped by.
type GroupKey string

const (
	GroupByBooth   GroupKey = "booth"
	GroupByService GroupKey = "service"
)

// Of returns the group value of a transaction for this key.
func (k GroupKey) Of(t Transaction) string {
	if k == GroupByService {
		return t.Service
	}
	return t.Booth
}

func (k GroupKey) Valid() bool {
	return k == GroupByBooth || k == GroupByService
}

// GroupTotal is the summed revenue of one group.
type GroupTotal struct {
	Group   string  `json:"group"`
	Revenue float64 `json:"revenue"`
}

// GroupCount is the transaction count of one group.
type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// Summary holds scalars over the whole ledger.
type Summary struct {
	TotalRevenue      float64 `json:"total_revenue"`
	TotalTransactions int     `json:"total_transactions"`
	UniqueServices    int     `json:"unique_services"`
	UniqueBooths      int     `json:"unique_booths"`
}

// TrendPoint is the revenue of one calendar day.
type TrendPoint struct {
	Date    time.Time `json:"date"`
	Revenue float64   `json:"revenue"`
}

// Benchmarks compares booths against each other and a fixed industry figure.
type Benchmarks struct {
	AverageRevenuePerBooth float64     `json:"average_revenue_per_booth"`
	TopPerformer           *GroupTotal `json:"top_performer"`
	IndustryAverage        float64     `json:"industry_average"`
}

// LimitStatus reports a service's usage against its ceiling.
type LimitStatus struct {
	Service         string  `json:"service"`
	CurrentUsage    float64 `json:"current_usage"`
	Limit           float64 `json:"limit"`
	Remaining       float64 `json:"remaining"`
	UsagePercentage float64 `json:"usage_percentage"`
	IsLow           bool    `json:"is_low"`
}
