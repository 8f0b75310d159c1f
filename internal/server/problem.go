package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound     = "https://devicepulse.dev/problems/not-found"
	ProblemTypeBadRequest   = "https://devicepulse.dev/problems/bad-request"
	ProblemTypeUnauthorized = "https://devicepulse.dev/problems/unauthorized"
	ProblemTypeForbidden    = "https://devicepulse.dev/problems/forbidden"
	ProblemTypeRateLimited  = "https://devicepulse.dev/problems/rate-limited"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json with p.Status.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func writeStatusProblem(w http.ResponseWriter, typ string, status int, detail, instance string) {
	WriteProblem(w, Problem{
		Type:     typ,
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeNotFound, http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeBadRequest, http.StatusBadRequest, detail, instance)
}

// Unauthorized writes a 401 problem response with a Bearer challenge.
func Unauthorized(w http.ResponseWriter, detail, instance string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="devicepulse"`)
	writeStatusProblem(w, ProblemTypeUnauthorized, http.StatusUnauthorized, detail, instance)
}

// Forbidden writes a 403 problem response.
func Forbidden(w http.ResponseWriter, detail, instance string) {
	writeStatusProblem(w, ProblemTypeForbidden, http.StatusForbidden, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	w.Header().Set("Retry-After", "1")
	writeStatusProblem(w, ProblemTypeRateLimited, http.StatusTooManyRequests, detail, instance)
}
