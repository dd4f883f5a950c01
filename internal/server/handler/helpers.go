// Package handler contains the HTTP handlers for the conversion engine's
// API surface. Amount fields travel as decimal strings in request and
// response bodies.
package handler

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
)

// writeJSON marshals v as JSON and writes it with the given status. A
// marshal failure falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit reads a ?limit= query parameter with a default and a cap.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// parseAmount parses a decimal-string amount, requiring a positive value.
func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// newBig parses a decimal string, accepting zero.
func newBig(s string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

// bigString renders an amount for a response body; nil becomes "0".
func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
