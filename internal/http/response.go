package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"boothmetrics/internal/core"
	applog "boothmetrics/internal/log"
	"boothmetrics/internal/ratelimit"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Encode response failed", applog.FieldError, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps the error taxonomy to a status code. Server-side
// failures are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var limited *ratelimit.LimitedError
	switch {
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", retryAfterSeconds(limited.RetryAfter))
		writeError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
	case errors.Is(err, core.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
	case errors.Is(err, core.ErrValidation):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, core.ErrStoreUnavailable):
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger unavailable",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeError(w, r, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Server error",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// orderedObject encodes as a JSON object whose keys keep slice order.
type orderedObject []objectEntry

type objectEntry struct {
	key   string
	value any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func totalsObject(list []core.GroupTotal) orderedObject {
	o := make(orderedObject, 0, len(list))
	for _, g := range list {
		o = append(o, objectEntry{key: g.Group, value: g.Revenue})
	}
	return o
}

func countsObject(list []core.GroupCount) orderedObject {
	o := make(orderedObject, 0, len(list))
	for _, g := range list {
		o = append(o, objectEntry{key: g.Group, value: g.Count})
	}
	return o
}

type trendResponse struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

func trendsBody(points []core.TrendPoint) []trendResponse {
	out := make([]trendResponse, 0, len(points))
	for _, p := range points {
		out = append(out, trendResponse{Date: p.Date.Format(dateLayout), Revenue: p.Revenue})
	}
	return out
}

type performerResponse struct {
	Booth   *string `json:"booth"`
	Revenue float64 `json:"revenue"`
}

type benchmarksResponse struct {
	AverageRevenuePerBooth float64           `json:"average_revenue_per_booth"`
	TopPerformer           performerResponse `json:"top_performer"`
	IndustryAverage        float64           `json:"industry_average"`
}

func benchmarksBody(b core.Benchmarks) benchmarksResponse {
	out := benchmarksResponse{
		AverageRevenuePerBooth: b.AverageRevenuePerBooth,
		IndustryAverage:        b.IndustryAverage,
	}
	if b.TopPerformer != nil {
		booth := b.TopPerformer.Group
		out.TopPerformer = performerResponse{Booth: &booth, Revenue: b.TopPerformer.Revenue}
	}
	return out
}

type alertResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

func alertsBody(alerts []core.Alert) []alertResponse {
	out := make([]alertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertResponse{
			ID:        a.ID,
			Type:      string(a.Type),
			Message:   a.Message,
			Severity:  string(a.Severity),
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
