package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/rotation/internal/database"
	"github.com/aristath/rotation/internal/di"
	"github.com/aristath/rotation/internal/reliability"
	"github.com/aristath/rotation/internal/scheduler"
	"github.com/aristath/rotation/internal/utils"
)

// RunMetricsSource exposes aggregated backtest timings
type RunMetricsSource interface {
	Metrics() utils.PerformanceMetrics
}

// JobLister lists registered scheduler jobs
type JobLister interface {
	Jobs() []string
	RunNow(job scheduler.Job) error
}

// BackupLister lists stored database backups
type BackupLister interface {
	ListBackups(ctx context.Context) ([]reliability.BackupInfo, error)
}

// SystemHandlers serves system monitoring and job trigger endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	databases   []*database.DB
	runs        RunMetricsSource
	scheduler   JobLister
	jobs        *di.JobInstances
	backups     BackupLister
	startupTime time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	databases []*database.DB,
	runs RunMetricsSource,
	scheduler JobLister,
	jobs *di.JobInstances,
	backups BackupLister,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		databases:   databases,
		runs:        runs,
		scheduler:   scheduler,
		jobs:        jobs,
		backups:     backups,
		startupTime: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string                    `json:"status"`
	UptimeSeconds float64                   `json:"uptime_seconds"`
	CPUPercent    float64                   `json:"cpu_percent"`
	MemoryPercent float64                   `json:"memory_percent"`
	DiskPercent   float64                   `json:"disk_percent"`
	Goroutines    int                       `json:"goroutines"`
	HeapAllocMB   float64                   `json:"heap_alloc_mb"`
	Jobs          []string                  `json:"jobs"`
	Backtests     *utils.PerformanceMetrics `json:"backtests,omitempty"`
	Timestamp     string                    `json:"timestamp"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	response := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskPercent:   h.getDiskUsage(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(memStats.HeapAlloc) / 1024 / 1024,
		Jobs:          []string{},
		Timestamp:     time.Now().Format(time.RFC3339),
	}
	if h.scheduler != nil {
		response.Jobs = h.scheduler.Jobs()
	}
	if h.runs != nil {
		metrics := h.runs.Metrics()
		response.Backtests = &metrics
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats handles GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]*database.Stats, 0, len(h.databases))
	for _, db := range h.databases {
		s, err := db.GetStats(r.Context())
		if err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			http.Error(w, "Failed to get database stats", http.StatusInternalServerError)
			return
		}
		stats = append(stats, s)
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// HandleTriggerBacktest runs every configured strategy in the background
// POST /api/system/jobs/backtest
func (h *SystemHandlers) HandleTriggerBacktest(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.jobs.Backtest == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Backtest job not registered",
		})
		return
	}
	h.trigger(w, h.jobs.Backtest)
}

// HandleTriggerCheckDatabases runs the database check in the background
// POST /api/system/jobs/check-databases
func (h *SystemHandlers) HandleTriggerCheckDatabases(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.jobs.CheckDatabases == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Database check job not registered",
		})
		return
	}
	h.trigger(w, h.jobs.CheckDatabases)
}

// HandleTriggerBackup uploads a database backup in the background
// POST /api/system/jobs/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil || h.jobs.Backup == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Backups are not configured",
		})
		return
	}
	h.trigger(w, h.jobs.Backup)
}

// HandleListBackups handles GET /api/system/backups
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backups == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "error",
			"message": "Backups are not configured",
		})
		return
	}

	backups, err := h.backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		http.Error(w, "Failed to list backups", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, backups)
}

func (h *SystemHandlers) trigger(w http.ResponseWriter, job scheduler.Job) {
	h.log.Info().Str("job", job.Name()).Msg("Manual job triggered")

	go func() {
		if err := h.scheduler.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", job.Name()).Msg("Manual job failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": job.Name() + " triggered",
	})
}

// getSystemStats calculates CPU and RAM usage percentages over a short
// sampling window so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// getDiskUsage returns the used percentage of the volume holding the databases
func (h *SystemHandlers) getDiskUsage() float64 {
	if len(h.databases) == 0 {
		return 0
	}
	usage, err := disk.Usage(filepath.Dir(h.databases[0].Path()))
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
		return 0
	}
	return usage.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
