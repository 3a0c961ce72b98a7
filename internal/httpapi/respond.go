// Package httpapi implements the HTTP load endpoints: a thin REST
// front end that triggers scanner runs, either synchronously
// (inline=true) or via the Scheduler Bridge (default), plus the
// replication webhook and a couple of small operational endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
