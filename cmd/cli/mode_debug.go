//go:build debug

package main

import (
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"
)

const pprofAddr = "127.0.0.1:6060"

// debug builds always trace and never pop desktop notifications.
func applyTagsOverrides(cfg *action) {
	cfg.verbose = true
	cfg.notify = false

	go func() {
		srv := &http.Server{Addr: pprofAddr, ReadHeaderTimeout: 10 * time.Second}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = os.Stderr.WriteString("pprof: " + err.Error() + "\n")
		}
	}()
}
