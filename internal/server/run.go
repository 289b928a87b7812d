package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultRetryDelay is the pause before rebinding after a listen failure.
// The field unit may come up before its network does; the daemon keeps
// trying rather than exiting.
const DefaultRetryDelay = 10 * time.Second

// Runner binds the RPC server to the network and keeps it bound. If the
// listen address has no host part, the interface facing probeAddr is
// discovered first, so the server binds the field network rather than
// every interface.
type Runner struct {
	listen    string
	probeAddr string
	handler   http.Handler
	retry     time.Duration

	mu   sync.Mutex
	srv  *http.Server
	stop bool
}

// NewRunner creates a Runner for the given handler.
func NewRunner(listen, probeAddr string, handler http.Handler) *Runner {
	return &Runner{
		listen:    listen,
		probeAddr: probeAddr,
		handler:   handler,
		retry:     DefaultRetryDelay,
	}
}

// Run serves until Stop is called. Bind failures are retried forever; only
// a Stop makes Run return nil.
func (r *Runner) Run() error {
	for {
		r.mu.Lock()
		if r.stop {
			r.mu.Unlock()
			return nil
		}
		addr, err := r.resolveAddr()
		if err == nil {
			r.srv = &http.Server{Addr: addr, Handler: r.handler}
		}
		srv := r.srv
		r.mu.Unlock()

		if err != nil {
			log.Printf("server: resolve listen address: %v, retrying in %s", err, r.retry)
			time.Sleep(r.retry)
			continue
		}

		log.Printf("server: listening on %s", addr)
		err = srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Printf("server: %v, retrying in %s", err, r.retry)
		time.Sleep(r.retry)
	}
}

// Stop shuts the server down and makes Run return.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stop = true
	srv := r.srv
	r.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func (r *Runner) resolveAddr() (string, error) {
	host, port, err := net.SplitHostPort(r.listen)
	if err != nil {
		return "", fmt.Errorf("listen address %q: %w", r.listen, err)
	}
	if host != "" || r.probeAddr == "" {
		return r.listen, nil
	}
	ip, err := LocalIP(r.probeAddr)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(ip, port), nil
}

// LocalIP discovers the local address used to reach remote. No packets are
// sent: a UDP "connection" only consults the routing table.
func LocalIP(remote string) (string, error) {
	conn, err := net.Dial("udp", remote)
	if err != nil {
		return "", fmt.Errorf("probe route to %s: %w", remote, err)
	}
	defer conn.Close()

	addr := conn.LocalAddr().String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// LocalAddr on a UDP conn always carries a port, but don't crash
		// on an unexpected form.
		return strings.Split(addr, ":")[0], nil
	}
	return host, nil
}
