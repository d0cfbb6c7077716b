package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/psantana5/stratum/pkg/auth"
	"github.com/psantana5/stratum/pkg/backfill"
	"github.com/psantana5/stratum/pkg/executor"
	"github.com/psantana5/stratum/pkg/logging"
	"github.com/psantana5/stratum/pkg/metrics"
	"github.com/psantana5/stratum/pkg/models"
	"github.com/psantana5/stratum/pkg/ratelimit"
	"github.com/psantana5/stratum/pkg/tracing"
)

// maxBodyBytes bounds request bodies of the POST endpoints
const maxBodyBytes = 1 << 20

// HealthChecker is a dependency whose health is reported by /health
type HealthChecker interface {
	HealthCheck() error
}

// Config wires the handler to its dependencies. Recovery is required.
// Keys guards the POST routes; a nil or empty set disables authentication.
type Config struct {
	Recovery   *executor.Recovery
	Store      HealthChecker
	Backfiller *backfill.Backfiller
	Metrics    *metrics.Collector
	Logger     *logging.Logger
	Limiter    *ratelimit.Limiter
	Tracer     trace.Tracer
	Keys       *auth.KeySet
}

// Handler serves read-only inspection of recovered tasks and schema backfill
type Handler struct {
	recovery   *executor.Recovery
	store      HealthChecker
	backfiller *backfill.Backfiller
	metrics    *metrics.Collector
	log        *logging.Logger
	limiter    *ratelimit.Limiter
	tracer     trace.Tracer
	keys       *auth.KeySet
}

// NewHandler creates a new handler
func NewHandler(cfg Config) *Handler {
	h := &Handler{
		recovery:   cfg.Recovery,
		store:      cfg.Store,
		backfiller: cfg.Backfiller,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		limiter:    cfg.Limiter,
		tracer:     cfg.Tracer,
		keys:       cfg.Keys,
	}
	if h.backfiller == nil {
		h.backfiller = backfill.New(nil)
	}
	if h.log == nil {
		h.log = logging.Nop()
	}
	if h.keys == nil {
		h.keys = auth.NewKeySet()
	}
	if h.tracer == nil {
		h.tracer = noop.NewTracerProvider().Tracer("stratum/api")
	}
	return h
}

// Router returns a router with every route registered
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all routes and middleware on r
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Use(tracing.HTTPMiddleware(h.tracer, routeName))
	if h.limiter != nil {
		r.Use(h.limiter.Middleware(ratelimit.ClientKey))
	}

	r.HandleFunc("/health", h.Health).Methods("GET")
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	}

	r.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	r.Handle("/tasks/rescan", h.keys.Middleware(http.HandlerFunc(h.Rescan))).Methods("POST")
	r.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")
	r.Handle("/tasks/{id}", h.keys.Middleware(http.HandlerFunc(h.ForgetTask))).Methods("DELETE")

	r.Handle("/quota/validate", h.keys.Middleware(http.HandlerFunc(h.ValidateQuota))).Methods("POST")
	r.Handle("/updates/backfill", h.keys.Middleware(http.HandlerFunc(h.BackfillUpdate))).Methods("POST")
}

// routeName names spans after the matched route template
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return r.Method + " " + tpl
		}
	}
	return r.Method + " " + r.URL.Path
}

// TaskView is the JSON form of a dead task
type TaskView struct {
	ID         string                `json:"id"`
	Status     models.ScheduleStatus `json:"status"`
	Job        string                `json:"job,omitempty"`
	SlaveHost  string                `json:"slaveHost,omitempty"`
	Root       string                `json:"root"`
	DiskBytes  *int64                `json:"diskBytes,omitempty"`
	DiskError  string                `json:"diskError,omitempty"`
	Assignment *models.AssignedTask  `json:"assignment,omitempty"`
}

func newTaskView(t *executor.DeadTask, detailed bool) TaskView {
	assigned := t.AssignedTask()
	v := TaskView{
		ID:        t.ID(),
		Status:    t.ScheduleStatus(),
		SlaveHost: assigned.SlaveHost,
		Root:      t.Root(),
	}
	if assigned.Task != nil {
		v.Job = assigned.Task.Job.String()
	}
	if n, err := t.DiskConsumed(); err != nil {
		v.DiskError = err.Error()
	} else {
		v.DiskBytes = &n
	}
	if detailed {
		v.Assignment = assigned
	}
	return v
}

// Health reports liveness, and the store's health when one is configured
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := h.store.HealthCheck(); err != nil {
			h.log.Warn("Store health check failed", logging.Fields{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListTasks lists every recovered dead task
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.recovery.List()
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, newTaskView(t, false))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": views,
		"count": len(views),
	})
}

// GetTask returns one dead task with its full assignment
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, ok := h.recovery.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, newTaskView(t, true))
}

// ForgetTask drops a task from the recovered index. Its directory is left alone.
func (h *Handler) ForgetTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !h.recovery.Evict(id) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	h.log.Info("Forgot recovered task", logging.Fields{"task_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// Rescan re-reads the executor root
func (h *Handler) Rescan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	report, err := h.recovery.Recover(r.Context())
	if err != nil {
		h.log.WithError(err).Error("Rescan failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	failures := make([]map[string]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, map[string]string{"dir": f.Dir, "error": f.Err.Error()})
	}
	pruned := report.Pruned
	if pruned == nil {
		pruned = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recovered":   len(report.Recovered),
		"failures":    failures,
		"pruned":      pruned,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// ValidateQuota checks a quota aggregate against the canonical resource set
func (h *Handler) ValidateQuota(w http.ResponseWriter, r *http.Request) {
	var agg models.ResourceAggregate
	if !decodeBody(w, r, &agg) {
		return
	}
	out, err := h.backfiller.BackfillResourceAggregate(&agg)
	if err != nil {
		h.metrics.Rejected("quota")
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.metrics.Backfilled("quota")
	writeJSON(w, http.StatusOK, out)
}

// BackfillUpdate returns the canonical form of a job update
func (h *Handler) BackfillUpdate(w http.ResponseWriter, r *http.Request) {
	var update models.JobUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	out, err := h.backfiller.BackfillJobUpdate(&update)
	if err != nil {
		h.metrics.Rejected("update")
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.metrics.Backfilled("update")
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func statusFor(err error) int {
	if errors.Is(err, backfill.ErrInvalidArgument) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
