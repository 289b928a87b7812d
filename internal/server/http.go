package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// namesRequest is the body of the bulk switching endpoints.
type namesRequest struct {
	Names []string `json:"names"`
}

// resultsResponse carries positional results: null marks an unknown name.
type resultsResponse struct {
	Results []*bool `json:"results"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type readingJSON struct {
	State     string  `json:"state"`
	Volts     float64 `json:"volts"`
	Milliamps float64 `json:"ma"`
}

type readingsResponse struct {
	Timestamp string                 `json:"timestamp"`
	Outputs   map[string]readingJSON `json:"outputs"`
}

type environmentResponse struct {
	Humidity float64 `json:"humidity"`
	TempC    float64 `json:"temperature"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the RPC routing table around the service.
func NewRouter(svc *Service) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	if svc.met != nil {
		r.Use(rpcCountMiddleware(svc.met))
	}

	r.HandleFunc("/ping", handlePing(svc)).Methods(http.MethodGet)
	r.HandleFunc("/version", handleVersion(svc)).Methods(http.MethodGet)
	r.HandleFunc("/readings", handleReadings(svc)).Methods(http.MethodGet)
	r.HandleFunc("/environment", handleEnvironment(svc)).Methods(http.MethodGet)

	r.HandleFunc("/outputs/on", handleSwitch(svc, svc.TurnOn)).Methods(http.MethodPost)
	r.HandleFunc("/outputs/off", handleSwitch(svc, svc.TurnOff)).Methods(http.MethodPost)
	r.HandleFunc("/outputs/ison", handleSwitch(svc, svc.IsOn)).Methods(http.MethodPost)
	r.HandleFunc("/outputs/all/on", handleAll(svc.TurnAllOn)).Methods(http.MethodPost)
	r.HandleFunc("/outputs/all/off", handleAll(svc.TurnAllOff)).Methods(http.MethodPost)

	r.HandleFunc("/reboot", handleAction(svc.RequestReboot)).Methods(http.MethodPost)
	r.HandleFunc("/shutdown", handleAction(svc.RequestShutdown)).Methods(http.MethodPost)

	if svc.met != nil {
		r.Handle("/metrics", svc.met.Handler()).Methods(http.MethodGet)
	}
	return r
}

func handlePing(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, okResponse{OK: svc.Ping()})
	}
}

func handleVersion(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": svc.Version()})
	}
}

func handleReadings(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readings, ts := svc.Readings()
		resp := readingsResponse{
			Timestamp: ts.UTC().Format(time.RFC3339),
			Outputs:   make(map[string]readingJSON, len(readings)),
		}
		for name, rd := range readings {
			resp.Outputs[name] = readingJSON{State: rd.State(), Volts: rd.Volts, Milliamps: rd.Milliamps}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleEnvironment(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, err := svc.Environment()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, environmentResponse{Humidity: env.Humidity, TempC: env.TempC})
	}
}

func handleSwitch(svc *Service, op func([]string) []*bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req namesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		writeJSON(w, http.StatusOK, resultsResponse{Results: op(req.Names)})
	}
}

func handleAll(op func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, okResponse{OK: op()})
	}
}

func handleAction(queue func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		queue()
		writeJSON(w, http.StatusAccepted, okResponse{OK: true})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

// requestIDMiddleware tags every request with an ID for log correlation,
// honoring one supplied by the caller.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		log.Printf("server: %s %s id=%s from=%s", r.Method, r.URL.Path, id, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response code for the RPC counter.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.code = code
	sr.ResponseWriter.WriteHeader(code)
}

func rpcCountMiddleware(met *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)
			met.ObserveRPC(r.URL.Path, rec.code)
		})
	}
}
