package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/HerbHall/devicepulse/internal/liveness"
	"github.com/HerbHall/devicepulse/internal/version"
	"github.com/HerbHall/devicepulse/pkg/models"
	"go.uber.org/zap"
)

// LivenessEvaluator computes the liveness verdict of a tenant's device.
type LivenessEvaluator interface {
	Evaluate(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) liveness.Verdict
}

var _ LivenessEvaluator = (*liveness.Evaluator)(nil)

// handlePing answers GET /api/device/{deviceId}/ping. The verdict is always
// returned with 200, including for unknown devices and evaluation errors.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		Unauthorized(w, "unauthenticated", r.URL.Path)
		return
	}

	raw := r.PathValue("deviceId")
	if raw == "" {
		BadRequest(w, "deviceId is required", r.URL.Path)
		return
	}
	deviceID, err := models.ParseDeviceID(raw)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	verdict := s.evaluator.Evaluate(r.Context(), id.TenantID, deviceID)
	s.logger.Debug("ping",
		zap.String("tenant_id", id.TenantID.String()),
		zap.String("device_id", deviceID.String()),
		zap.Bool("online", verdict.Online),
		zap.Int64("last_seen", verdict.LastSeen),
	)
	writeVerdict(w, http.StatusOK, verdict)
}

// recoverPing turns a panic in the ping chain into a 500 verdict.
func (s *Server) recoverPing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.logger.Error("ping handler panicked",
				zap.String("device_id", r.PathValue("deviceId")),
				zap.Any("panic", rec),
			)
			writeVerdict(w, http.StatusInternalServerError, liveness.Verdict{
				Online:   false,
				LastSeen: 0,
				Message:  fmt.Sprintf("Ping error: %v", rec),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

func writeVerdict(w http.ResponseWriter, status int, v liveness.Verdict) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-DevicePulse-Version", version.Short())
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
