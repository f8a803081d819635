// File: internal/swcache/server.go (complete file)

package swcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"
)

const (
	MessagePath = "/_connscope/message"
	MetricsPath = "/_connscope/metrics"
)

// Server puts the controller in front of the origin: requests it declines
// or misses are proxied through untouched.
type Server struct {
	Controller *Controller
	// Metrics serves the metrics endpoint; nil answers 404.
	Metrics http.Handler

	proxy *httputil.ReverseProxy
}

func NewServer(c *Controller, metrics http.Handler) (*Server, error) {
	origin, err := url.Parse(c.opt.Origin)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("swcache: bad origin %q", c.opt.Origin)
	}
	proxy := httputil.NewSingleHostReverseProxy(origin)
	proxy.Transport = c.opt.HTTP.Transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("origin unreachable", "path", r.URL.Path, "err", err)
		http.Error(w, "origin unreachable", http.StatusBadGateway)
	}
	return &Server{Controller: c, Metrics: metrics, proxy: proxy}, nil
}

func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.HandleMethodNotAllowed = false
	r.POST(MessagePath, s.serveMessage)
	r.GET(MetricsPath, s.serveMetrics)
	r.NotFound = http.HandlerFunc(s.serveAsset)
	return r
}

func (s *Server) serveMessage(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var m Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&m); err != nil {
		http.Error(w, "bad message: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Controller.HandleMessage(r.Context(), m); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrUnrecognizedMessage) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.Metrics.ServeHTTP(w, r)
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	res, err := s.Controller.Handle(r.Context(), r)
	if err != nil {
		log.Warn("cache failed, falling back to origin", "path", r.URL.Path, "err", err)
		s.proxy.ServeHTTP(w, r)
		return
	}
	if res.Outcome.Fallback() || res.Response == nil {
		s.proxy.ServeHTTP(w, r)
		return
	}

	a := res.Response
	for k, vs := range a.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Connscope-Cache", string(res.Outcome))
	if w.Header().Get("Content-Length") == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(a.Body)))
	}
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(a.Body)
}
