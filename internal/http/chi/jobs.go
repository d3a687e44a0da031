package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/tenants"
	"github.com/marcelsud/jobgate/webhook/payload"
)

const (
	defaultPeek = 10
	maxPeek     = 100
)

/* HTTP layer DTOs for the job API
 * Separate from domain entities to avoid leaking internal structure
 */

type acceptedResponse struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
}

type queuedJob struct {
	JobID       string    `json:"job_id"`
	TenantID    string    `json:"tenant_id"`
	Type        string    `json:"type"`
	Attempt     int       `json:"attempt"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type queueResponse struct {
	QueueKey string      `json:"queue_key"`
	Depth    int64       `json:"depth"`
	Jobs     []queuedJob `json:"jobs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

/* postJob handles POST /v1/tenants/{tenant_id}/jobs
 * The signature is checked over the exact bytes received, before the body is parsed
 * and before the response reveals whether the tenant exists
 */
func postJob(d Dependencies) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenant_id")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, d.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		defer r.Body.Close()

		tenant, lookupErr := d.Tenants.Get(tenantID)

		verifier := d.Verifier
		if lookupErr == nil {
			verifier = verifier.WithSecret(tenant.SigningSecret)
		}

		header := r.Header.Get(d.SignatureHeader)
		if !verifier.Check(body, header, r.RemoteAddr) {
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing signature header")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}

		if lookupErr != nil {
			if errors.Is(lookupErr, tenants.ErrNotFound) {
				writeError(w, http.StatusNotFound, "tenant not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "tenant lookup failed")
			return
		}
		if !tenant.Enabled {
			writeError(w, http.StatusForbidden, "tenant disabled")
			return
		}

		env, err := payload.Parse(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		j, err := d.Jobs.Submit(r.Context(), tenant.TenantID, tenant.QueueKey(d.QueueKeyPrefix), env.Type, env.Data)
		if err != nil {
			if errors.Is(err, job.ErrValidation) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			log := httplog.LogEntry(r.Context())
			log.Error().Err(err).Str("tenant_id", tenant.TenantID).Msg("enqueueing job")
			writeError(w, http.StatusServiceUnavailable, "queue unavailable")
			return
		}

		writeJSON(w, http.StatusAccepted, acceptedResponse{
			JobID:    j.ID,
			TenantID: j.TenantID,
			Status:   "accepted",
		})
	})
}

// getQueue handles GET /v1/queues/{queue_class}?peek=N
func getQueue(jobs job.UseCase, prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := job.QueueKey(prefix, chi.URLParam(r, "queue_class"))

		peek := defaultPeek
		if raw := r.URL.Query().Get("peek"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "peek must be a non-negative integer")
				return
			}
			peek = min(n, maxPeek)
		}

		depth, list, err := jobs.Inspect(r.Context(), key, peek)
		if err != nil {
			log := httplog.LogEntry(r.Context())
			log.Error().Err(err).Str("queue_key", key).Msg("inspecting queue")
			writeError(w, http.StatusServiceUnavailable, "queue unavailable")
			return
		}

		resp := queueResponse{QueueKey: key, Depth: depth, Jobs: make([]queuedJob, 0, len(list))}
		for _, j := range list {
			resp.Jobs = append(resp.Jobs, queuedJob{
				JobID:       j.ID,
				TenantID:    j.TenantID,
				Type:        j.Type,
				Attempt:     j.Attempt,
				SubmittedAt: j.SubmittedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
