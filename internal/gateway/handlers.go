package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/onestopcrm/crmgate/internal/account"
	"github.com/onestopcrm/crmgate/internal/auth"
	"github.com/onestopcrm/crmgate/internal/observability"
	"github.com/onestopcrm/crmgate/internal/reset"
	"github.com/onestopcrm/crmgate/internal/session"
	"github.com/onestopcrm/crmgate/internal/token"
	"github.com/onestopcrm/crmgate/internal/util"
)

const (
	minLoginPasswordLen = 6
	minPasswordLen      = 8
)

// AuthHandler serves the authentication endpoints: login, register,
// logout, refresh, me, forgot-password, and reset-password.
type AuthHandler struct {
	accounts      account.Store
	sessions      session.Store
	tokens        *token.Service
	resets        *reset.Service
	logger        observability.Logger
	tokenCookie   string
	sessionCookie string
	secureCookies bool
}

// AuthHandlerOption configures an AuthHandler.
type AuthHandlerOption func(*AuthHandler)

// WithAuthLogger sets the logger.
func WithAuthLogger(logger observability.Logger) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.logger = logger
	}
}

// WithCookieNames overrides the credential cookie names.
func WithCookieNames(tokenCookie, sessionCookie string) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.tokenCookie = tokenCookie
		h.sessionCookie = sessionCookie
	}
}

// WithSecureCookies marks issued cookies Secure. Enable behind TLS.
func WithSecureCookies(secure bool) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.secureCookies = secure
	}
}

// NewAuthHandler creates the authentication endpoint handler.
func NewAuthHandler(
	accounts account.Store,
	sessions session.Store,
	tokens *token.Service,
	resets *reset.Service,
	opts ...AuthHandlerOption,
) *AuthHandler {
	h := &AuthHandler{
		accounts:      accounts,
		sessions:      sessions,
		tokens:        tokens,
		resets:        resets,
		logger:        observability.NopLogger(),
		tokenCookie:   auth.DefaultTokenCookie,
		sessionCookie: auth.DefaultSessionCookie,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// sanitizedAccount is the account representation returned to clients.
// The password hash never leaves the server.
type sanitizedAccount struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func sanitize(acc *account.Account) sanitizedAccount {
	out := sanitizedAccount{
		ID:        acc.ID,
		Email:     acc.Email,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
		Role:      acc.Role,
		Status:    acc.Status,
		CreatedAt: acc.CreatedAt,
	}
	if !acc.LastLogin.IsZero() {
		last := acc.LastLogin
		out.LastLogin = &last
	}
	return out
}

func decodeBody(r *http.Request, dst any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates email and password, issues a token, and opens a
// server session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	decodeBody(r, &req)

	fields := map[string]string{}
	if !validEmail(req.Email) {
		fields["email"] = "valid email is required"
	}
	if len(req.Password) < minLoginPasswordLen {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		util.RespondValidationError(w, fields)
		return
	}

	acc, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil || !acc.IsActive() {
		util.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		util.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.accounts.UpdateLastLogin(r.Context(), acc.ID, time.Now()); err != nil {
		h.logger.Warn("update last login", observability.Error(err))
	}

	tokenString := h.tokens.Issue(acc)
	h.openSession(w, r, tokenString)

	h.logger.WithContext(r.Context()).Info("user logged in",
		observability.String("account_id", acc.ID),
	)

	util.RespondSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"user":  sanitize(acc),
		"token": tokenString,
	})
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Register creates a new active account. The role defaults to
// team_member when omitted.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	decodeBody(r, &req)

	fields := map[string]string{}
	if !validEmail(req.Email) {
		fields["email"] = "valid email is required"
	}
	if len(req.Password) < minPasswordLen {
		fields["password"] = "password must be at least 8 characters"
	}
	if req.FirstName == "" {
		fields["first_name"] = "first name is required"
	}
	if req.LastName == "" {
		fields["last_name"] = "last name is required"
	}
	if len(fields) > 0 {
		util.RespondValidationError(w, fields)
		return
	}

	role := req.Role
	if role == "" {
		role = account.RoleTeamMember
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		util.RespondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	acc := &account.Account{
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		Status:       account.StatusActive,
		CreatedAt:    time.Now(),
	}
	if err := h.accounts.Create(r.Context(), acc); err != nil {
		if errors.Is(err, account.ErrEmailExists) {
			util.RespondError(w, http.StatusBadRequest, "Email already exists")
			return
		}
		util.RespondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.logger.WithContext(r.Context()).Info("user registered",
		observability.String("account_id", acc.ID),
	)

	util.RespondSuccess(w, http.StatusCreated, "Registration successful", sanitize(acc))
}

// Logout tears down the server session and expires both credential
// cookies. Always succeeds, authenticated or not.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.sessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("delete session", observability.Error(err))
		}
	}

	h.expireCookie(w, h.sessionCookie)
	h.expireCookie(w, h.tokenCookie)

	util.RespondSuccess(w, http.StatusOK, "Logout successful", nil)
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContextOrError(r.Context())
	if err != nil {
		util.RespondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	acc, err := h.accounts.GetByID(r.Context(), identity.ID)
	if err != nil {
		util.RespondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	util.RespondSuccess(w, http.StatusOK, "User retrieved", sanitize(acc))
}

// Refresh issues a fresh token for the authenticated caller and
// rebinds the server session to it.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContextOrError(r.Context())
	if err != nil {
		util.RespondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	acc, err := h.accounts.GetByID(r.Context(), identity.ID)
	if err != nil || !acc.IsActive() {
		util.RespondError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	tokenString := h.tokens.Issue(acc)
	h.openSession(w, r, tokenString)

	util.RespondSuccess(w, http.StatusOK, "Token refreshed", map[string]any{
		"user":  sanitize(acc),
		"token": tokenString,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a reset token. The response does not reveal
// whether the email belongs to an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	decodeBody(r, &req)

	if !validEmail(req.Email) {
		util.RespondValidationError(w, map[string]string{
			"email": "valid email is required",
		})
		return
	}

	if _, err := h.resets.GenerateToken(r.Context(), req.Email); err != nil {
		h.logger.Error("generate reset token", observability.Error(err))
		util.RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	util.RespondSuccess(w, http.StatusOK, "Password reset link sent", map[string]any{
		"message": "Please check your email for password reset instructions",
	})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ResetPassword redeems a reset token for a password change.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	decodeBody(r, &req)

	fields := map[string]string{}
	if req.Token == "" {
		fields["token"] = "token is required"
	}
	if len(req.Password) < minPasswordLen {
		fields["password"] = "password must be at least 8 characters"
	}
	if req.ConfirmPassword == "" {
		fields["confirm_password"] = "confirmation is required"
	}
	if len(fields) > 0 {
		util.RespondValidationError(w, fields)
		return
	}

	if req.Password != req.ConfirmPassword {
		util.RespondError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	if err := h.resets.Redeem(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, reset.ErrInvalidOrExpiredToken) {
			util.RespondError(w, http.StatusBadRequest, "Invalid or expired token")
			return
		}
		h.logger.Error("redeem reset token", observability.Error(err))
		util.RespondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	util.RespondSuccess(w, http.StatusOK, "Password reset successful", nil)
}

// openSession stores the token server-side and sets both the session
// and token cookies.
func (h *AuthHandler) openSession(w http.ResponseWriter, r *http.Request, tokenString string) {
	sessionID, err := session.NewSessionID()
	if err != nil {
		h.logger.Error("generate session id", observability.Error(err))
		return
	}
	if err := h.sessions.Put(r.Context(), sessionID, tokenString, h.tokens.TTL()); err != nil {
		h.logger.Error("store session", observability.Error(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.tokenCookie,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
	})
}
