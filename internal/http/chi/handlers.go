package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/jobgate/job"
	"github.com/marcelsud/jobgate/tenants"
	"github.com/marcelsud/jobgate/webhook/signature"
)

// TenantDirectory looks tenants up by id
type TenantDirectory interface {
	Get(tenantID string) (*tenants.Tenant, error)
}

// Dependencies wires the ingress API
type Dependencies struct {
	Jobs     job.UseCase
	Tenants  TenantDirectory
	Verifier *signature.Verifier

	SignatureHeader string
	MaxBodyBytes    int64
	QueueKeyPrefix  string
	LogLevel        string

	// Metrics is mounted at /metrics when set
	Metrics http.Handler
}

// Handlers sets up the job ingress API routes
func Handlers(d Dependencies) *chi.Mux {
	logger := httplog.NewLogger("jobgate-api", httplog.Options{
		JSON:     true,
		LogLevel: d.LogLevel,
	})

	if d.SignatureHeader == "" {
		d.SignatureHeader = "X-Signature-256"
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}
	if d.QueueKeyPrefix == "" {
		d.QueueKeyPrefix = "jobs"
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/tenants/{tenant_id}/jobs", postJob(d).ServeHTTP)
		r.Get("/queues/{queue_class}", getQueue(d.Jobs, d.QueueKeyPrefix).ServeHTTP)
	})

	return r
}
