// Package authapi is the HTTP surface of the authentication subsystem.
//
// It wires the session, reset, CSRF, MFA, and OAuth services behind a JSON
// API, applies the single-use CSRF check to state-changing requests, and
// exposes the role guard as middleware for resource routes.
package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"waybill/cmd/identity"
	"waybill/cmd/internal/auth/csrf"
	"waybill/cmd/internal/auth/mfa"
	"waybill/cmd/internal/auth/oauth"
	"waybill/cmd/internal/auth/reset"
	"waybill/cmd/internal/auth/session"
)

// Deps collects the services the handler fronts.
type Deps struct {
	Identity identity.Store
	Sessions *session.Service
	Resets   *reset.Service
	CSRF     *csrf.Manager
	MFA      *mfa.Service
	States   *oauth.StateManager
	Provider oauth.Provider
}

// Handler serves the /auth API.
type Handler struct {
	log  *slog.Logger
	cfg  Config
	pool *pgxpool.Pool

	identity identity.Store
	sessions *session.Service
	resets   *reset.Service
	csrf     *csrf.Manager
	mfa      *mfa.Service
	states   *oauth.StateManager
	provider oauth.Provider

	guard   *RoleGuard
	metrics *Metrics

	now func() time.Time

	// dummyHash keeps login timing flat for unknown accounts: the password is
	// verified against this hash when no credential row exists.
	dummyHash string
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) { h.log = log }
}

// WithPool enables audit logging through the given database pool.
func WithPool(pool *pgxpool.Pool) HandlerOption {
	return func(h *Handler) { h.pool = pool }
}

// WithMetrics enables outcome counters.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithGuard replaces the default resource policy.
func WithGuard(g *RoleGuard) HandlerOption {
	return func(h *Handler) { h.guard = g }
}

// WithClock overrides the time source. Tests use this.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler constructs the auth API handler.
func NewHandler(cfg Config, deps Deps, opts ...HandlerOption) *Handler {
	h := &Handler{
		cfg:      cfg,
		identity: deps.Identity,
		sessions: deps.Sessions,
		resets:   deps.Resets,
		csrf:     deps.CSRF,
		mfa:      deps.MFA,
		states:   deps.States,
		provider: deps.Provider,
		guard:    NewRoleGuard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if h.provider == nil {
		h.provider = oauth.NoopProvider{}
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = slog.Default()
	}

	if plain, err := identity.NewOpaqueTokenHex(24); err == nil {
		if dummy, err := identity.HashPassword(plain); err == nil {
			h.dummyHash = dummy
		}
	}

	return h
}

// Register mounts the auth routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.csrfProtect(h.handleRegister))
	mux.HandleFunc("POST /auth/login", h.csrfProtect(h.handleLogin))
	mux.HandleFunc("POST /auth/logout", h.csrfProtect(h.handleLogout))
	mux.HandleFunc("GET /auth/csrf-token", h.handleCSRFToken)
	mux.HandleFunc("GET /me", h.handleMe)

	mux.HandleFunc("POST /forgot-password", h.csrfProtect(h.handleForgotPassword))
	mux.HandleFunc("POST /forgot-password/questions", h.csrfProtect(h.handleForgotQuestions))
	mux.HandleFunc("POST /reset-password", h.csrfProtect(h.handleResetPassword))
	mux.HandleFunc("POST /change-password", h.csrfProtect(h.handleChangePassword))

	mux.HandleFunc("POST /mfa/initiate", h.csrfProtect(h.handleMFAInitiate))
	mux.HandleFunc("POST /mfa/verify", h.csrfProtect(h.handleMFAVerify))

	mux.HandleFunc("GET /auth/oauth/start", h.handleOAuthStart)
	mux.HandleFunc("GET /auth/oauth/callback", h.handleOAuthCallback)
}

// csrfProtect enforces the single-use token on state-changing requests.
func (h *Handler) csrfProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.cfg.CSRFEnabled {
			next(w, r)
			return
		}
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(w, r)
			return
		}
		if !h.csrf.Validate(r.Context(), r.Header.Get(h.cfg.CSRFHeaderName)) {
			h.metrics.csrfRejected()
			writeError(w, http.StatusForbidden, "csrf_rejected", "missing or invalid CSRF token")
			return
		}
		next(w, r)
	}
}

// GuardResource wraps next with the role allow-list for resource. Denials
// carry the caller's role and landing resource so the client can redirect.
func (h *Handler) GuardResource(resource string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		row, ok := h.requireSession(w, r, false)
		if !ok {
			return
		}
		u, err := h.identity.GetUserByID(r.Context(), row.UserID)
		if err != nil {
			h.log.ErrorContext(r.Context(), "auth.guard.lookup_error", "err", err)
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		if !h.guard.Allowed(resource, u.Role) {
			h.metrics.accessDenied()
			h.auditAccessDenied(r.Context(), u.ID, string(u.Role), resource)
			writeJSON(w, http.StatusForbidden, deniedResponse{
				Error:   apiError{Code: "forbidden", Message: "your role does not grant access to this resource"},
				Role:    string(u.Role),
				Landing: h.guard.Landing(u.Role),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	role := identity.RoleCustomer
	if req.Role != "" {
		// Elevated roles are provisioned by administrators only.
		parsed, ok := identity.ParseRole(req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_input", "unknown role")
			return
		}
		if parsed != identity.RoleCustomer {
			caller, ok := h.requireSession(w, r, false)
			if !ok {
				return
			}
			u, err := h.identity.GetUserByID(r.Context(), caller.UserID)
			if err != nil || u.Role != identity.RoleAdmin {
				writeError(w, http.StatusForbidden, "forbidden", "only administrators can assign roles")
				return
			}
		}
		role = parsed
	}

	res, err := h.identity.CreateUser(r.Context(), identity.CreateUserInput{
		Email:            req.Email,
		Password:         req.Password,
		FullName:         trimPtr(req.FullName),
		Role:             role,
		SecurityQuestion: trimPtr(req.SecurityQuestion),
		SecurityAnswer:   trimPtr(req.SecurityAnswer),
		Now:              h.now(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_input", "registration input rejected")
		default:
			h.log.ErrorContext(r.Context(), "auth.register.error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "registration failed")
		}
		return
	}

	h.insertAudit(r.Context(), "auth.register", &res.User.ID, map[string]any{"role": string(res.User.Role)})
	writeJSON(w, http.StatusCreated, toUserResponse(res.User))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := h.clientIP(r)

	auth, err := h.identity.GetUserAuthByEmail(ctx, req.Email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.ErrorContext(ctx, "auth.login.lookup_error", "err", err)
		}
		// Burn a verification anyway so unknown accounts cost the same.
		identity.VerifyPassword(req.Password, h.dummyHash)
		h.loginRejected(ctx, w, req.Email, ip)
		return
	}

	if !identity.VerifyPassword(req.Password, auth.PasswordHash) {
		h.loginRejected(ctx, w, req.Email, ip)
		return
	}

	mfaPending := h.cfg.MFAEnabled
	issued, err := h.sessions.Issue(ctx, now, auth.User.ID, mfaPending, session.DeviceContext{
		UserAgent: r.UserAgent(),
		IP:        parseIP(ip),
	})
	if err != nil {
		h.log.ErrorContext(ctx, "auth.login.session_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}

	h.metrics.loginOutcome("ok")
	h.auditLoginOK(ctx, auth.User.ID, ip)
	h.setSessionCookie(w, issued.Token, h.sessions.IdleTimeout())
	writeJSON(w, http.StatusOK, loginResponse{
		User:       toUserResponse(auth.User),
		MFAPending: mfaPending,
	})
}

func (h *Handler) loginRejected(ctx context.Context, w http.ResponseWriter, email, ip string) {
	h.metrics.loginOutcome("failed")
	h.auditLoginFailed(ctx, email, ip)
	writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tok := h.sessionTokenFromRequest(r)
	if tok != "" {
		if row, err := h.sessions.Resolve(ctx, h.now(), tok); err == nil {
			h.auditLogout(ctx, row.UserID)
		}
		if err := h.sessions.Destroy(ctx, tok); err != nil {
			h.log.ErrorContext(ctx, "auth.logout.error", "err", err)
		}
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (h *Handler) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	tok, err := h.csrf.Issue(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "auth.csrf.issue_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, csrfTokenResponse{Token: tok})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	row, ok := h.requireSession(w, r, false)
	if !ok {
		return
	}
	u, err := h.identity.GetUserByID(r.Context(), row.UserID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "auth.me.lookup_error", "err", err)
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	h.metrics.resetRequested()
	h.resets.Request(r.Context(), h.now(), req.Email)

	// Always the same acknowledgment, known account or not.
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (h *Handler) handleForgotQuestions(w http.ResponseWriter, r *http.Request) {
	var req forgotQuestionsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	h.metrics.resetRequested()
	issued, err := h.resets.RequestWithAnswer(r.Context(), h.now(), req.Email, req.Answer)
	if err != nil {
		if errors.Is(err, reset.ErrContactAdministrator) {
			writeError(w, http.StatusForbidden, "contact_administrator",
				"password resets for this account are handled by an administrator")
			return
		}
		writeError(w, http.StatusForbidden, "answer_rejected", "the answer was not accepted")
		return
	}

	writeJSON(w, http.StatusOK, resetIssuedResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	res, err := h.resets.Redeem(r.Context(), h.now(), req.Token, req.NewPassword)
	if err != nil {
		// Invalid tokens and rejected passwords share one body so a
		// caller cannot learn whether a guessed token was valid.
		writeError(w, http.StatusBadRequest, "reset_rejected", "the reset could not be completed")
		return
	}

	h.metrics.resetRedeemed()
	h.auditResetRedeemed(r.Context(), res.UserID, res.SessionsRemoved)
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

// handleChangePassword is the in-session counterpart of the reset flow.
// Proving the current password stands in for the reset token; the session
// purge afterwards matches the redeem semantics, so a stolen password stops
// working everywhere the moment it is rotated.
func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	row, ok := h.requireSession(w, r, false)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	ctx := r.Context()
	u, err := h.identity.GetUserByID(ctx, row.UserID)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.password.lookup_error", "err", err)
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	auth, err := h.identity.GetUserAuthByEmail(ctx, u.Email)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.password.lookup_error", "err", err)
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	if !identity.VerifyPassword(req.CurrentPassword, auth.PasswordHash) {
		writeError(w, http.StatusForbidden, "password_incorrect", "the current password is incorrect")
		return
	}

	newHash, err := identity.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusBadRequest, "weak_password", "the new password does not meet policy")
		return
	}
	if err := h.identity.UpdatePassword(ctx, row.UserID, newHash, h.now()); err != nil {
		h.log.ErrorContext(ctx, "auth.password.update_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "password change failed")
		return
	}

	removed, err := h.sessions.DestroyForUser(ctx, row.UserID)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.password.purge_error", "err", err)
	}
	h.clearSessionCookie(w)

	h.insertAudit(ctx, "auth.password.changed", &row.UserID, map[string]any{"sessions_removed": removed})
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (h *Handler) handleMFAInitiate(w http.ResponseWriter, r *http.Request) {
	// Identity comes from the session row only. A body naming another user
	// is ignored outright because the route accepts none.
	row, ok := h.requireSession(w, r, true)
	if !ok {
		return
	}

	code, err := h.mfa.Initiate(r.Context(), h.now(), row.UserID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "auth.mfa.initiate_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not start verification")
		return
	}

	resp := mfaInitiateResponse{OK: true}
	if !h.cfg.Production {
		resp.DevCode = code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMFAVerify(w http.ResponseWriter, r *http.Request) {
	row, ok := h.requireSession(w, r, true)
	if !ok {
		return
	}

	var req mfaVerifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	if err := h.mfa.Verify(r.Context(), h.now(), row.UserID, req.Code); err != nil {
		h.metrics.mfaOutcome("failed")
		writeError(w, http.StatusUnauthorized, "code_invalid", "the code was not accepted")
		return
	}

	if err := h.sessions.PromoteMFA(r.Context(), h.now(), row.ID); err != nil {
		h.log.ErrorContext(r.Context(), "auth.mfa.promote_error", "err", err)
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}

	h.metrics.mfaOutcome("ok")
	h.insertAudit(r.Context(), "auth.mfa.verified", &row.UserID, nil)
	writeJSON(w, http.StatusOK, ackResponse{OK: true})
}

func (h *Handler) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "auth.oauth.state_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "could not start sign-in")
		return
	}

	url := h.provider.AuthURL(state)
	if url == "" {
		writeError(w, http.StatusServiceUnavailable, "oauth_unavailable", "external sign-in is not configured")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()
	q := r.URL.Query()

	if err := h.states.Consume(ctx, q.Get("state")); err != nil {
		writeError(w, http.StatusBadRequest, "state_invalid", "sign-in request expired or was already used")
		return
	}

	ident, err := h.provider.Exchange(ctx, q.Get("code"))
	if err != nil {
		h.log.ErrorContext(ctx, "auth.oauth.exchange_error", "err", err)
		writeError(w, http.StatusBadGateway, "exchange_failed", "external sign-in failed")
		return
	}

	auth, err := h.identity.GetUserAuthByEmail(ctx, ident.Email)
	var user identity.User
	switch {
	case err == nil:
		user = auth.User
	case identity.IsNotFound(err):
		user, err = h.provisionOAuthUser(ctx, now, ident)
		if err != nil {
			h.log.ErrorContext(ctx, "auth.oauth.provision_error", "err", err)
			writeError(w, http.StatusInternalServerError, "internal", "sign-in failed")
			return
		}
	default:
		h.log.ErrorContext(ctx, "auth.oauth.lookup_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "sign-in failed")
		return
	}

	issued, err := h.sessions.Issue(ctx, now, user.ID, h.cfg.MFAEnabled, session.DeviceContext{
		UserAgent: r.UserAgent(),
		IP:        parseIP(h.clientIP(r)),
	})
	if err != nil {
		h.log.ErrorContext(ctx, "auth.oauth.session_error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "sign-in failed")
		return
	}

	h.metrics.loginOutcome("ok")
	h.auditLoginOK(ctx, user.ID, h.clientIP(r))
	h.setSessionCookie(w, issued.Token, h.sessions.IdleTimeout())
	http.Redirect(w, r, h.guard.Landing(user.Role), http.StatusFound)
}

// provisionOAuthUser creates a customer account for a provider identity the
// directory has never seen. The account gets an unguessable local password;
// the user can replace it through the reset flow.
func (h *Handler) provisionOAuthUser(ctx context.Context, now time.Time, ident oauth.Identity) (identity.User, error) {
	pw, err := identity.NewOpaqueTokenHex(24)
	if err != nil {
		return identity.User{}, err
	}
	res, err := h.identity.CreateUser(ctx, identity.CreateUserInput{
		Email:    ident.Email,
		Password: pw,
		FullName: trimPtr(ident.FullName),
		Role:     identity.RoleCustomer,
		Now:      now,
	})
	if err != nil {
		return identity.User{}, err
	}
	h.insertAudit(ctx, "auth.oauth.provisioned", &res.User.ID, nil)
	return res.User, nil
}

// requireSession resolves the cookie session, sliding its expiry. When
// allowPending is false an mfa_pending session is treated as absent authority.
func (h *Handler) requireSession(w http.ResponseWriter, r *http.Request, allowPending bool) (session.Row, bool) {
	row, err := h.sessions.Resolve(r.Context(), h.now(), h.sessionTokenFromRequest(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return session.Row{}, false
	}
	if row.MFAPending && !allowPending {
		writeError(w, http.StatusUnauthorized, "mfa_required", "second-factor verification required")
		return session.Row{}, false
	}
	return row, true
}

func toUserResponse(u identity.User) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
	if u.FullName != nil {
		resp.FullName = *u.FullName
	}
	return resp
}
