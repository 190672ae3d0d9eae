package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"counseling-intake/internal/app"
	"counseling-intake/internal/domain"
)

// AdminPasswordHeader carries the shared admin secret on admin endpoints.
const AdminPasswordHeader = "X-Admin-Password"

// API serves the REST surface of the intake service.
type API struct {
	service *app.IntakeService
	logger  *slog.Logger
}

func NewAPI(service *app.IntakeService, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger}
}

// NewRouter mounts health, REST and websocket routes on one mux.
func NewRouter(service *app.IntakeService, logger *slog.Logger) *http.ServeMux {
	api := NewAPI(service, logger)
	ws := NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	api.Register(mux)
	mux.HandleFunc("/ws/session", ws.ServeSession)
	mux.HandleFunc("/ws/admin", ws.ServeAdmin)
	return mux
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/instruments", a.listInstruments)
	mux.HandleFunc("GET /api/instruments/{id}", a.getInstrument)
	mux.HandleFunc("POST /api/instruments/{id}/score", a.scoreAnswers)

	mux.HandleFunc("POST /api/respondents", a.registerRespondent)
	mux.HandleFunc("GET /api/respondents/{id}/summary", a.summary)
	mux.HandleFunc("POST /api/respondents/{id}/sessions", a.startSession)

	mux.HandleFunc("GET /api/sessions/{id}", a.getSession)
	mux.HandleFunc("PUT /api/sessions/{id}/answers/{index}", a.answer)
	mux.HandleFunc("POST /api/sessions/{id}/complete", a.complete)

	mux.HandleFunc("POST /api/admin/verify", a.verifyAdmin)
	mux.HandleFunc("GET /api/admin/records", a.admin(a.records))
	mux.HandleFunc("DELETE /api/admin/records", a.admin(a.clearRecords))
	mux.HandleFunc("GET /api/admin/counselors", a.admin(a.counselors))
}

type instrumentSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	QuestionCount int      `json:"questionCount"`
	MaxScore      float64  `json:"maxScore"`
	Levels        []string `json:"levels"`
}

func (a *API) listInstruments(w http.ResponseWriter, r *http.Request) {
	instruments := a.service.Catalog().Instruments()
	out := make([]instrumentSummary, 0, len(instruments))
	for _, in := range instruments {
		out = append(out, instrumentSummary{
			ID:            in.ID,
			Name:          in.Name,
			QuestionCount: len(in.Questions),
			MaxScore:      in.MaxScore(),
			Levels:        a.service.Classifier().Labels(in.ID),
		})
	}
	a.respondJSON(w, http.StatusOK, map[string]any{
		"version":     a.service.Catalog().Version(),
		"instruments": out,
	})
}

func (a *API) getInstrument(w http.ResponseWriter, r *http.Request) {
	in, err := a.service.Catalog().Get(r.PathValue("id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, in)
}

type scoreRequest struct {
	Answers []string `json:"answers"`
}

type scoreResponse struct {
	Score domain.Score `json:"score"`
	Level domain.Level `json:"level"`
}

func (a *API) scoreAnswers(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !a.decode(w, r, &req) {
		return
	}
	score, level, err := a.service.ScoreAnswers(r.PathValue("id"), req.Answers)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, scoreResponse{Score: score, Level: level})
}

func (a *API) registerRespondent(w http.ResponseWriter, r *http.Request) {
	var consent domain.Consent
	if !a.decode(w, r, &consent) {
		return
	}
	respondent, err := a.service.RegisterRespondent(r.Context(), consent)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusCreated, respondent)
}

func (a *API) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := a.service.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, sum)
}

type startSessionRequest struct {
	Instruments []string `json:"instruments"`
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !a.decode(w, r, &req) {
		return
	}
	snap, err := a.service.StartSession(r.Context(), r.PathValue("id"), req.Instruments)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusCreated, snap)
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := a.service.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, snap)
}

type answerRequest struct {
	Value string `json:"value"`
}

func (a *API) answer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		a.respondJSON(w, http.StatusBadRequest, errorBody{Error: "question index must be an integer"})
		return
	}
	var req answerRequest
	if !a.decode(w, r, &req) {
		return
	}
	snap, err := a.service.Answer(r.Context(), r.PathValue("id"), index, req.Value)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, snap)
}

func (a *API) complete(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, result)
}

type verifyRequest struct {
	Password string `json:"password"`
}

func (a *API) verifyAdmin(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.service.VerifyAdminPassword(req.Password); err != nil {
		a.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// admin guards a handler with the shared admin password header.
func (a *API) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.service.VerifyAdminPassword(r.Header.Get(AdminPasswordHeader)); err != nil {
			a.respondError(w, r, err)
			return
		}
		next(w, r)
	}
}

func (a *API) records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := app.RecordFilter{
		Counselor: q.Get("counselor"),
		Level:     q.Get("level"),
	}
	var err error
	if filter.MinOverall, err = optionalInt(q.Get("min")); err != nil {
		a.respondJSON(w, http.StatusBadRequest, errorBody{Error: "min must be an integer"})
		return
	}
	if filter.MaxOverall, err = optionalInt(q.Get("max")); err != nil {
		a.respondJSON(w, http.StatusBadRequest, errorBody{Error: "max must be an integer"})
		return
	}

	list, err := a.service.Records(r.Context(), filter)
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, list)
}

func (a *API) counselors(w http.ResponseWriter, r *http.Request) {
	names, err := a.service.Counselors(r.Context())
	if err != nil {
		a.respondError(w, r, err)
		return
	}
	a.respondJSON(w, http.StatusOK, names)
}

func (a *API) clearRecords(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearAll(r.Context()); err != nil {
		a.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorBody struct {
	Error string `json:"error"`
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		a.logger.DebugContext(r.Context(), "request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	a.respondJSON(w, status, errorBody{Error: err.Error()})
}

func (a *API) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("encode response", "error", err)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownInstrument),
		errors.Is(err, domain.ErrRespondentNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrQuestionOutOfRange),
		errors.Is(err, domain.ErrInvalidConsent),
		errors.Is(err, domain.ErrNoInstruments):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotNormalizable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionFinished):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAdminNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
