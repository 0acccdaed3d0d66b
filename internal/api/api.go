// Package api serves the question pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"call-insights-go/internal/evaluation"
	"call-insights-go/internal/logger"
	"call-insights-go/internal/pipeline"
)

var (
	errMethod      = errors.New("method not allowed")
	errNoEvaluator = errors.New("report evaluation is not enabled")
)

// Answerer is the part of the pipeline the handlers drive.
type Answerer interface {
	Plan(ctx context.Context, question string) (pipeline.Plan, error)
	Answer(ctx context.Context, question string) (pipeline.Result, error)
}

// Evaluator judges a finished report.
type Evaluator interface {
	Evaluate(ctx context.Context, question, report string) (evaluation.Report, error)
}

// Server exposes the pipeline over HTTP.
type Server struct {
	pipe    Answerer
	ready   func(context.Context) error
	judge   Evaluator
	timeout time.Duration
	log     *logger.Logger
}

// New builds a Server. ready may be nil, in which case /readyz always passes.
func New(pipe Answerer, ready func(context.Context) error, timeout time.Duration, log *logger.Logger) *Server {
	return &Server{pipe: pipe, ready: ready, timeout: timeout, log: log}
}

// WithEvaluator enables /evaluate and the evaluate option of /ask.
func (s *Server) WithEvaluator(e Evaluator) *Server {
	s.judge = e
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/readyz", s.readyz)
	mux.HandleFunc("/ask", s.ask)
	mux.HandleFunc("/plan", s.plan)
	mux.HandleFunc("/evaluate", s.evaluate)
	return mux
}

type askRequest struct {
	Question string `json:"question"`
	Evaluate bool   `json:"evaluate"`
}

type evaluateRequest struct {
	Question string `json:"question"`
	Report   string `json:"report"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Debug("health check")
	fmt.Fprint(w, "ok")
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil {
		fmt.Fprint(w, "ready")
		return
	}
	if err := s.ready(r.Context()); err != nil {
		s.log.WithRequest(r).WithField("error", err.Error()).Warn("not ready")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "ready")
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "ask")
	req, err := readAsk(r)
	if err != nil {
		reqLog.WithField("error", err.Error()).Warn("bad request")
		writeJSON(w, requestStatus(err), errorResponse{err.Error()})
		return
	}
	if req.Evaluate && s.judge == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{errNoEvaluator.Error()})
		return
	}
	question := req.Question
	reqLog = reqLog.WithField("question", question)
	reqLog.Info("ask request received")

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.pipe.Answer(ctx, question)
	if err != nil {
		status := statusFor(err)
		reqLog.WithField("error", err.Error()).WithField("status", status).Warn("pipeline returned error")
		writeJSON(w, status, errorResponse{err.Error()})
		return
	}
	if req.Evaluate {
		// a failed judgement does not withdraw the report
		ev, err := s.judge.Evaluate(ctx, question, res.Report)
		if err != nil {
			reqLog.WithField("error", err.Error()).Warn("evaluation failed")
			ev = evaluation.Failed(err)
		}
		res.Evaluation = &ev
	}
	reqLog.WithField("duration_ms", res.DurationMs).Info("ask finished")
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "evaluate")
	if s.judge == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{errNoEvaluator.Error()})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{errMethod.Error()})
		return
	}
	var body evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{fmt.Sprintf("decode body: %v", err)})
		return
	}
	body.Question = strings.TrimSpace(body.Question)
	body.Report = strings.TrimSpace(body.Report)
	if body.Question == "" || body.Report == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{"question and report are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	ev, err := s.judge.Evaluate(ctx, body.Question, body.Report)
	if err != nil {
		status := statusFor(err)
		reqLog.WithField("error", err.Error()).WithField("status", status).Warn("evaluation failed")
		writeJSON(w, status, errorResponse{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "plan")
	req, err := readAsk(r)
	if err != nil {
		writeJSON(w, requestStatus(err), errorResponse{err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	p, err := s.pipe.Plan(ctx, req.Question)
	if err != nil {
		status := statusFor(err)
		reqLog.WithField("error", err.Error()).WithField("status", status).Warn("planning failed")
		writeJSON(w, status, errorResponse{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// readAsk accepts ?q= and ?evaluate= on GET and POST, or a JSON body on
// POST when q is absent.
func readAsk(r *http.Request) (askRequest, error) {
	query := r.URL.Query()
	req := askRequest{Question: query.Get("q")}
	if v := query.Get("evaluate"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return askRequest{}, fmt.Errorf("evaluate %q: %w", v, err)
		}
		req.Evaluate = b
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if req.Question == "" {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return askRequest{}, fmt.Errorf("decode body: %w", err)
			}
		}
	default:
		return askRequest{}, fmt.Errorf("%s: %w", r.Method, errMethod)
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return askRequest{}, pipeline.ErrEmptyQuestion
	}
	return req, nil
}

func requestStatus(err error) int {
	if errors.Is(err, errMethod) {
		return http.StatusMethodNotAllowed
	}
	return http.StatusBadRequest
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
