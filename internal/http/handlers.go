package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	applog "boothmetrics/internal/log"
)

func (s *Server) client(r *http.Request) string {
	return s.clientIPs.ClientIP(r)
}

func (s *Server) handleRevenueByBooth(w http.ResponseWriter, r *http.Request) {
	list, err := s.dashboard.GetRevenueByBooth(r.Context(), s.client(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, totalsObject(list))
}

func (s *Server) handleTopServices(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	list, err := s.dashboard.GetTopServices(r.Context(), s.client(r), n)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, countsObject(list))
}

func (s *Server) handleRevenueByService(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	list, err := s.dashboard.GetRevenueByService(r.Context(), s.client(r), n)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, totalsObject(list))
}

func (s *Server) handleTopBooths(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	list, err := s.dashboard.GetTopBooths(r.Context(), s.client(r), n)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, totalsObject(list))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.dashboard.GetSummary(r.Context(), s.client(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sum)
}

func (s *Server) handleServiceLimits(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.dashboard.GetServiceLimits(r.Context(), s.client(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statuses)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	points, err := s.dashboard.GetTrends(r.Context(), s.client(r), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, trendsBody(points))
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	b, err := s.dashboard.GetBenchmarks(r.Context(), s.client(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, benchmarksBody(b))
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	alerts, err := s.dashboard.ListUnreadAlerts(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, alertsBody(alerts))
}

func (s *Server) handleMarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "Resource not found")
		return
	}
	if err := s.dashboard.MarkAlertRead(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Alert marked as read"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	in, err := decodeIngest(w, r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	tx, err := s.dashboard.IngestTransaction(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Transaction accepted over HTTP",
		"id", tx.ID,
		applog.FieldClientIP, s.client(r))
	writeJSON(w, r, http.StatusCreated, tx)
}
