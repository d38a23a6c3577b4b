package middleware

import (
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
)

// ProfilingConfig controls the pprof endpoints. Enabled must never be set in
// production; Environment backs a second guard against that.
type ProfilingConfig struct {
	Enabled     bool
	Environment string
}

// Profiling exposes the runtime profiles under /debug/pprof/ when enabled.
// Disabled, it passes requests straight through. Enabling it with a
// production environment logs an error and stays disabled, since the
// profiles leak memory contents and internals.
func Profiling(config ProfilingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled {
			return next
		}
		if config.Environment == "production" || config.Environment == "prod" {
			slog.Error("refusing to enable profiling in production", "environment", config.Environment)
			return next
		}

		slog.Warn("profiling endpoints enabled",
			"environment", config.Environment, "endpoints", "/debug/pprof/*")

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/debug/pprof") {
				next.ServeHTTP(w, r)
				return
			}
			switch r.URL.Path {
			case "/debug/pprof/cmdline":
				pprof.Cmdline(w, r)
			case "/debug/pprof/profile":
				pprof.Profile(w, r)
			case "/debug/pprof/symbol":
				pprof.Symbol(w, r)
			case "/debug/pprof/trace":
				pprof.Trace(w, r)
			default:
				// Index also serves the named runtime profiles
				// (heap, goroutine, block, mutex, allocs).
				pprof.Index(w, r)
			}
		})
	}
}
