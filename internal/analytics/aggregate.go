// Package analytics computes booth and service metrics over the transaction ledger.
//
// The functions in this file are pure: they only read the slice they are given.
// Groups keep the order in which they first appear in the input, and every
// ranking uses a stable sort, so equal values stay in first-seen order.
package analytics

import (
	"sort"
	"time"

	"boothmetrics/internal/core"
)

// IndustryAverage is the fixed per-booth revenue benchmark.
const IndustryAverage = 15000.00

const dateLayout = "2006-01-02"

// RevenueByGroup sums revenue per group in first-seen order.
func RevenueByGroup(txs []core.Transaction, key core.GroupKey) []core.GroupTotal {
	byGroup := map[string]float64{}
	order := make([]string, 0)
	for _, t := range txs {
		g := key.Of(t)
		if _, seen := byGroup[g]; !seen {
			order = append(order, g)
		}
		byGroup[g] += t.Revenue
	}

	list := make([]core.GroupTotal, 0, len(order))
	for _, g := range order {
		list = append(list, core.GroupTotal{Group: g, Revenue: byGroup[g]})
	}
	return list
}

// TopByRevenue ranks groups by summed revenue, highest first. n <= 0 keeps all groups.
func TopByRevenue(txs []core.Transaction, key core.GroupKey, n int) []core.GroupTotal {
	list := RevenueByGroup(txs, key)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Revenue > list[j].Revenue
	})
	return limit(list, n)
}

// TopByCount ranks groups by transaction count, highest first. n <= 0 keeps all groups.
func TopByCount(txs []core.Transaction, key core.GroupKey, n int) []core.GroupCount {
	byGroup := map[string]int{}
	order := make([]string, 0)
	for _, t := range txs {
		g := key.Of(t)
		if _, seen := byGroup[g]; !seen {
			order = append(order, g)
		}
		byGroup[g]++
	}

	list := make([]core.GroupCount, 0, len(order))
	for _, g := range order {
		list = append(list, core.GroupCount{Group: g, Count: byGroup[g]})
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Count > list[j].Count
	})
	return limit(list, n)
}

// Summarize returns ledger-wide scalars. An empty ledger yields zero values.
func Summarize(txs []core.Transaction) core.Summary {
	booths := map[string]struct{}{}
	services := map[string]struct{}{}
	var total float64
	for _, t := range txs {
		total += t.Revenue
		booths[t.Booth] = struct{}{}
		services[t.Service] = struct{}{}
	}
	return core.Summary{
		TotalRevenue:      total,
		TotalTransactions: len(txs),
		UniqueServices:    len(services),
		UniqueBooths:      len(booths),
	}
}

// MaxTrendDays bounds the trend window the engine accepts.
const MaxTrendDays = 36500

// Trends buckets revenue by UTC calendar date for transactions inside
// [now - days, now]. Days without transactions are omitted.
func Trends(txs []core.Transaction, days int, now time.Time) []core.TrendPoint {
	end := now.UTC()
	start := end.AddDate(0, 0, -days)

	byDay := map[string]float64{}
	for _, t := range txs {
		ts := t.Timestamp.UTC()
		if ts.Before(start) || ts.After(end) {
			continue
		}
		byDay[ts.Format(dateLayout)] += t.Revenue
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	// The layout sorts lexically in date order.
	sort.Strings(keys)

	points := make([]core.TrendPoint, 0, len(keys))
	for _, k := range keys {
		d, _ := time.Parse(dateLayout, k)
		points = append(points, core.TrendPoint{Date: d, Revenue: byDay[k]})
	}
	return points
}

// ComputeBenchmarks averages booth totals (not individual transactions) and
// picks the booth with the highest total.
func ComputeBenchmarks(txs []core.Transaction) core.Benchmarks {
	b := core.Benchmarks{IndustryAverage: IndustryAverage}

	booths := TopByRevenue(txs, core.GroupByBooth, 0)
	if len(booths) == 0 {
		return b
	}

	var sum float64
	for _, g := range booths {
		sum += g.Revenue
	}
	b.AverageRevenuePerBooth = sum / float64(len(booths))
	top := booths[0]
	b.TopPerformer = &top
	return b
}

func limit[T any](list []T, n int) []T {
	if n > 0 && len(list) > n {
		return list[:n]
	}
	return list
}
