package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"boothmetrics/internal/core"
)

const maxBodyBytes = 1 << 20

// decimal accepts a JSON number or a decimal string such as "0,05".
type decimal struct {
	value float64
	set   bool
}

func (d *decimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseDecimal(s)
		if err != nil {
			return fmt.Errorf("%q is not a decimal number", s)
		}
		d.value, d.set = v, true
		return nil
	}
	if err := json.Unmarshal(b, &d.value); err != nil {
		return err
	}
	d.set = true
	return nil
}

type ingestRequest struct {
	Booth     string  `json:"booth"`
	Service   string  `json:"service"`
	Amount    decimal `json:"amount"`
	Rate      decimal `json:"rate"`
	Timestamp string  `json:"timestamp"`
}

// decodeIngest reads a transaction from the request body. Every decoding
// problem is a validation error.
func decodeIngest(w http.ResponseWriter, r *http.Request) (core.TransactionInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return core.TransactionInput{}, fmt.Errorf("%w: invalid request body: %v", core.ErrValidation, err)
	}
	if !req.Amount.set {
		return core.TransactionInput{}, fmt.Errorf("%w: amount is required", core.ErrValidation)
	}
	if !req.Rate.set {
		return core.TransactionInput{}, fmt.Errorf("%w: rate is required", core.ErrValidation)
	}

	in := core.TransactionInput{
		Booth:   req.Booth,
		Service: req.Service,
		Amount:  req.Amount.value,
		Rate:    req.Rate.value,
	}
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		t, err := parseTimestamp(ts)
		if err != nil {
			return core.TransactionInput{}, fmt.Errorf("%w: timestamp %q must be RFC 3339 or YYYY-MM-DD", core.ErrValidation, ts)
		}
		in.Timestamp = t
	}
	return in, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(dateLayout, s)
	}
	return t, err
}

// intParam reads a non-negative integer query parameter. Absent means 0,
// which the service replaces with its default.
func intParam(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", core.ErrValidation, name)
	}
	return n, nil
}
