package httpapi

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

var startedAt = time.Now()

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	MemoryUsedPct float64 `json:"memory_used_pct,omitempty"`
	ProcessRSS    uint64  `json:"process_rss_bytes,omitempty"`
}

// health reports liveness plus basic process statistics. Stat collection is
// best effort; a failing probe never fails the endpoint.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(startedAt).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryUsedPct = vm.UsedPercent
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			resp.ProcessRSS = info.RSS
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
