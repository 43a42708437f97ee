package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sitskillbridge/skillbridge-backend/internal/config"
	"github.com/sitskillbridge/skillbridge-backend/internal/response"
)

const healthTimeout = 2 * time.Second

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// SystemHandler reports liveness and runtime statistics.
type SystemHandler struct {
	rdb       *redis.Client
	checks    map[string]CheckFunc
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. checks are run by Health in
// addition to a Redis ping.
func NewSystemHandler(rdb *redis.Client, checks map[string]CheckFunc, log zerolog.Logger) *SystemHandler {
	all := map[string]CheckFunc{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	for name, fn := range checks {
		all[name] = fn
	}
	return &SystemHandler{
		rdb:       rdb,
		checks:    all,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks"`
}

// Health godoc
// GET /health
// 200 when every dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	report := healthReport{
		Status: "ok",
		Uptime: formatDuration(time.Since(h.startTime)),
		Checks: make(map[string]string, len(h.checks)),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn().Err(err).Str("check", name).Msg("Health check failed")
			report.Checks[name] = "down"
			report.Status = "degraded"
			continue
		}
		report.Checks[name] = "up"
	}

	code := http.StatusOK
	if report.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

type systemStats struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// Worker Queues
	QueueViolations int64 `json:"queue_violations"`
	QueueDocuments  int64 `json:"queue_documents"`
}

// Stats godoc
// GET /api/system/stats
// Go runtime figures and worker queue depths.
func (h *SystemHandler) Stats(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

func (h *SystemHandler) collect(ctx context.Context) systemStats {
	s := systemStats{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.Goroutines = runtime.NumGoroutine()
	s.HeapAlloc = ms.HeapAlloc
	s.HeapSys = ms.Sys
	s.StackInuse = ms.StackInuse
	s.NumGC = ms.NumGC

	// pipelined LLEN
	pipe := h.rdb.Pipeline()
	violationsCmd := pipe.LLen(ctx, config.WorkerKey.PersistViolationsQueue)
	documentsCmd := pipe.LLen(ctx, config.WorkerKey.PersistDocumentsQueue)
	if _, err := pipe.Exec(ctx); err == nil {
		s.QueueViolations, _ = violationsCmd.Result()
		s.QueueDocuments, _ = documentsCmd.Result()
	}

	return s
}

func formatDuration(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
