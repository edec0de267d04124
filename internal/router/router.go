package router

import (
	"fmt"
	"net/http"
	"time"

	"example.com/devserve/v2/internal/logger"
	"example.com/devserve/v2/internal/metrics"
	"example.com/devserve/v2/internal/server"
)

// Router holds the ordered stage chain and dispatches requests through it.
// Every request walks the stages in order; the first stage that returns a
// response wins and the remaining stages are skipped.
type Router struct {
	stages  []server.Stage
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewRouter creates and initializes a new Router. The order of stages is the
// precedence order. m may be nil to disable metrics.
func NewRouter(stages []server.Stage, lg *logger.Logger, m *metrics.Metrics) (*Router, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("router needs at least one stage")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("stage %d is nil", i)
		}
	}

	return &Router{
		stages:  stages,
		log:     lg,
		metrics: m,
	}, nil
}

// Stages returns the stage names in precedence order.
func (r *Router) Stages() []string {
	names := make([]string, len(r.stages))
	for i, s := range r.stages {
		names[i] = s.Name()
	}
	return names
}

// Resolve walks the chain and returns the first response along with the name
// of the stage that produced it. A stage error other than ErrNotHandled stops
// the walk and is returned.
//
// If every stage declines, Resolve answers with the default 404.
func (r *Router) Resolve(req *http.Request) (*server.Response, string, error) {
	for _, stage := range r.stages {
		resp, err := stage.Attempt(req)
		if err != nil {
			if server.IsNotHandled(err) {
				r.log.Debug("Stage declined request", logger.LogFields{
					"stage":  stage.Name(),
					"path":   req.URL.Path,
					"reason": err.Error(),
				})
				continue
			}
			return nil, stage.Name(), err
		}
		if resp == nil {
			continue
		}
		return resp, stage.Name(), nil
	}
	return server.ErrorResponse(http.StatusNotFound, ""), "default", nil
}

// ServeHTTP dispatches the request through the chain.
// Only GET and HEAD are served; anything else receives 405.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		n, _ := server.WriteErrorResponse(w, http.StatusMethodNotAllowed, "")
		r.metrics.ObserveStage("method", http.StatusMethodNotAllowed, time.Since(start), int(n))
		return
	}

	resp, stageName, err := r.Resolve(req)
	if err != nil {
		r.log.Error("Stage failed while handling request", logger.LogFields{
			"stage": stageName,
			"path":  req.URL.Path,
			"error": err.Error(),
		})
		resp = server.ErrorResponse(http.StatusInternalServerError, "")
	}

	r.log.Debug("Request resolved", logger.LogFields{
		"stage":  stageName,
		"path":   req.URL.Path,
		"status": resp.Status,
	})

	if _, werr := resp.Write(w); werr != nil {
		r.log.Warn("Failed to write response", logger.LogFields{
			"stage": stageName,
			"path":  req.URL.Path,
			"error": werr.Error(),
		})
	}
	r.metrics.ObserveStage(stageName, resp.Status, time.Since(start), len(resp.Body))
}
