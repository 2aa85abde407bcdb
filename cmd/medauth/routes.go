package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/meddevice/medauth"
	"github.com/meddevice/medauth/audit"
	"github.com/meddevice/medauth/middleware"
	"github.com/meddevice/medauth/permission"
	"github.com/meddevice/medauth/ratelimit"
)

const maxBodyBytes = 1 << 20

type routerOptions struct {
	trustProxy     bool
	metricsHandler http.Handler
	requestTimeout time.Duration
	// limiter throttles the public auth endpoints when set.
	limiter *ratelimit.Limiter
}

type api struct {
	engine *medauth.Engine
	logger *slog.Logger
}

func newRouter(engine *medauth.Engine, logger *slog.Logger, opts routerOptions) http.Handler {
	h := &api{engine: engine, logger: logger}
	guard := middleware.Guard(engine)
	throttle := func(rule ratelimit.Rule) func(http.Handler) http.Handler {
		if opts.limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(opts.limiter, rule, engine.Audit(), logger)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestInfo(opts.trustProxy))
	if opts.requestTimeout > 0 {
		r.Use(chimw.Timeout(opts.requestTimeout))
	}

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.metricsHandler)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(throttle(ratelimit.Register)).Post("/register", h.register)
		r.With(throttle(ratelimit.Login)).Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/verify", h.verify)
		r.With(throttle(ratelimit.PasswordReset)).Post("/forgot-password", h.forgotPassword)
		r.With(throttle(ratelimit.PasswordReset)).Post("/reset-password", h.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Post("/logout", h.logout)
			r.Post("/change-password", h.changePassword)
			r.Post("/mfa/setup", h.setupTOTP)
			r.Post("/mfa/verify", h.enableTOTP)
			r.Delete("/mfa", h.disableTOTP)
		})
	})

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", h.me)
		r.Get("/activity", h.myActivity)
	})

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(guard)
		r.Use(middleware.RequirePermission(engine, permission.UserCreate))
		r.Post("/", h.createUser)
	})

	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(guard)
		r.Use(middleware.RequirePermission(engine, permission.AuditRead))
		r.Get("/", h.auditQuery)
		r.Get("/security", h.securityLogs)
	})

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(guard)
		r.Use(middleware.RequirePermission(engine, permission.SystemManage))
		r.Get("/security-report", h.securityReport)
	})

	return r
}

// --- Public auth endpoints ---

func (h *api) register(w http.ResponseWriter, r *http.Request) {
	var req medauth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.engine.Register(r.Context(), req)
	h.respond(w, r, http.StatusCreated, resp, err)
}

func (h *api) login(w http.ResponseWriter, r *http.Request) {
	var req medauth.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.engine.Login(r.Context(), req)
	h.respond(w, r, http.StatusOK, resp, err)
}

func (h *api) refresh(w http.ResponseWriter, r *http.Request) {
	var req medauth.RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.engine.Refresh(r.Context(), req)
	h.respond(w, r, http.StatusOK, resp, err)
}

func (h *api) verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.engine.VerifyToken(r.Context(), req.Token)
	h.respond(w, r, http.StatusOK, resp, err)
}

func (h *api) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req medauth.PasswordResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.engine.RequestPasswordReset(r.Context(), req)
	h.respond(w, r, http.StatusOK, map[string]string{"message": msg}, err)
}

func (h *api) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req medauth.PasswordResetConfirmation
	if !h.decode(w, r, &req) {
		return
	}
	err := h.engine.ConfirmPasswordReset(r.Context(), req)
	h.respond(w, r, http.StatusOK, map[string]string{"message": "Password has been reset"}, err)
}

// --- Authenticated endpoints ---

func (h *api) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	err := h.engine.Logout(r.Context(), claims)
	h.respond(w, r, http.StatusOK, map[string]string{"message": "Logged out"}, err)
}

func (h *api) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	profile, err := h.engine.Me(r.Context(), claims)
	h.respond(w, r, http.StatusOK, profile, err)
}

func (h *api) myActivity(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	limit, err := intParam(r, "limit")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	entries, err := h.engine.Audit().UserActivity(r.Context(), claims.UserID(), limit)
	h.respond(w, r, http.StatusOK, entries, err)
}

func (h *api) changePassword(w http.ResponseWriter, r *http.Request) {
	var req medauth.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	err := h.engine.ChangePassword(r.Context(), claims, req)
	h.respond(w, r, http.StatusOK, map[string]string{"message": "Password changed"}, err)
}

func (h *api) setupTOTP(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	setup, err := h.engine.SetupTOTP(r.Context(), claims)
	h.respond(w, r, http.StatusOK, setup, err)
}

func (h *api) enableTOTP(w http.ResponseWriter, r *http.Request) {
	var req medauth.TOTPCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	err := h.engine.EnableTOTP(r.Context(), claims, req)
	h.respond(w, r, http.StatusOK, map[string]bool{"two_factor_enabled": true}, err)
}

func (h *api) disableTOTP(w http.ResponseWriter, r *http.Request) {
	var req medauth.TOTPCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	err := h.engine.DisableTOTP(r.Context(), claims, req)
	h.respond(w, r, http.StatusOK, map[string]bool{"two_factor_enabled": false}, err)
}

// --- Audit and admin endpoints ---

func (h *api) createUser(w http.ResponseWriter, r *http.Request) {
	var req medauth.CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	profile, err := h.engine.CreateUser(r.Context(), claims, req)
	h.respond(w, r, http.StatusCreated, profile, err)
}

func (h *api) auditQuery(w http.ResponseWriter, r *http.Request) {
	q, err := parseAuditQuery(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	entries, err := h.engine.Audit().Query(r.Context(), q)
	h.respond(w, r, http.StatusOK, entries, err)
}

func (h *api) securityLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	entries, err := h.engine.Audit().SecurityLogs(r.Context(), limit, offset)
	h.respond(w, r, http.StatusOK, entries, err)
}

func (h *api) securityReport(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.engine.SecurityReport())
}

// --- Helpers ---

func (h *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteError(w, badRequest("Invalid request body", err))
		return false
	}
	return true
}

func (h *api) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err != nil {
		if medauth.KindOf(err) == medauth.KindInternal {
			h.logger.ErrorContext(r.Context(), "request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, status, body)
}

func badRequest(message string, cause error) *medauth.Error {
	return &medauth.Error{Kind: medauth.KindValidation, Message: message, Err: cause}
}

func fieldError(field, message string, cause error) *medauth.Error {
	return &medauth.Error{
		Kind:    medauth.KindValidation,
		Message: "Invalid query parameters",
		Fields:  map[string]string{field: message},
		Err:     cause,
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fieldError(name, "must be a non-negative integer", err)
	}
	return n, nil
}

func parseAuditQuery(r *http.Request) (audit.Query, error) {
	values := r.URL.Query()
	var (
		q   audit.Query
		err error
	)

	if q.Start, err = timeParam(values.Get("start"), "start"); err != nil {
		return q, err
	}
	if q.End, err = timeParam(values.Get("end"), "end"); err != nil {
		return q, err
	}
	if q.UserID, err = uuidParam(values.Get("user_id"), "user_id"); err != nil {
		return q, err
	}
	if q.ResourceID, err = uuidParam(values.Get("resource_id"), "resource_id"); err != nil {
		return q, err
	}
	for _, raw := range values["action"] {
		action, err := audit.ParseAction(raw)
		if err != nil {
			return q, fieldError("action", fmt.Sprintf("unknown action %q", raw), err)
		}
		q.Actions = append(q.Actions, action)
	}
	if raw := values.Get("severity"); raw != "" {
		sev, err := audit.ParseSeverity(raw)
		if err != nil {
			return q, fieldError("severity", "must be info, warning, error or critical", err)
		}
		q.Severity = &sev
	}
	q.ResourceType = values.Get("resource_type")
	q.IPAddress = values.Get("ip_address")
	if q.Limit, err = intParam(r, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(r, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func timeParam(raw, name string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fieldError(name, "must be an RFC 3339 timestamp", err)
	}
	return t, nil
}

func uuidParam(raw, name string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fieldError(name, "must be a UUID", err)
	}
	return id, nil
}
