package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/auth"
	"github.com/sakif/cardbook/internal/service"
	"github.com/sakif/cardbook/internal/validation"
)

const stateCookie = "oauth_state"

// GoogleAuth is the part of auth.GoogleProvider the handler uses.
type GoogleAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

type UserHandler struct {
	users    *service.UserService
	google   GoogleAuth
	validate *validation.Validator
	res      *Responder
	logger   *slog.Logger
}

// NewUserHandler builds the account handler. google may be nil when Google
// sign-in is not configured.
func NewUserHandler(users *service.UserService, google GoogleAuth, v *validation.Validator, res *Responder, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, google: google, validate: v, res: res, logger: logger}
}

type signUpRequest struct {
	Name            string `json:"name"            validate:"required,max=50"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,password,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetMailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"           validate:"required"`
	Password        string `json:"password"        validate:"required,password,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type changePasswordRequest struct {
	Password        string `json:"password"        validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,password,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

type profileRequest struct {
	Name   string `json:"name"   validate:"required,max=50"`
	Avatar string `json:"avatar" validate:"omitempty,url"`
}

// bind decodes and validates a request body in one step.
func bind(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst any) error {
	if err := decode(w, r, dst); err != nil {
		return err
	}
	return v.Validate(dst)
}

// callerID is only called behind RequireAuth, which guarantees the id.
func callerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// HandleSignUp handles POST /api/users/sign-up.
func (h *UserHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	result, err := h.users.SignUp(r.Context(), service.SignUpInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.created(w, result)
}

// HandleLogin handles POST /api/users/login.
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	result, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, result)
}

// HandleGoogleLogin redirects to Google with a random state remembered in
// a short-lived cookie.
func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback checks the state, exchanges the code and signs the
// user in.
func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		h.res.error(w, r, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if e := r.URL.Query().Get("error"); e != "" {
		h.res.error(w, r, apperror.Unauthorized("Google sign-in was cancelled"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		h.res.error(w, r, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("google callback: exchange failed", slog.String("error", err.Error()))
		h.res.error(w, r, apperror.Unauthorized("Google sign-in failed"))
		return
	}
	result, err := h.users.LoginWithGoogle(r.Context(), gu)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, result)
}

// HandleSendResetMail answers the same way whether or not the email exists.
func (h *UserHandler) HandleSendResetMail(w http.ResponseWriter, r *http.Request) {
	var req resetMailRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	if err := h.users.SendResetMail(r.Context(), req.Email); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "if the email is registered, a reset link has been sent")
}

// HandleResetPassword handles PUT /api/users/reset-password.
func (h *UserHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	if err := h.users.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "password has been reset")
}

// HandleChangePassword handles PUT /api/users/password.
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	if err := h.users.ChangePassword(r.Context(), callerID(r), req.Password, req.NewPassword); err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.message(w, "password updated")
}

// HandleUpdateProfile handles PATCH /api/users/profile.
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := bind(w, r, h.validate, &req); err != nil {
		h.res.error(w, r, err)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), callerID(r), req.Name, req.Avatar)
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, user)
}

// HandleMe handles GET /api/users/me.
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), callerID(r))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, user)
}

// HandleNavbar handles GET /api/users/navbar.
func (h *UserHandler) HandleNavbar(w http.ResponseWriter, r *http.Request) {
	nav, err := h.users.Navbar(r.Context(), callerID(r))
	if err != nil {
		h.res.error(w, r, err)
		return
	}
	h.res.ok(w, nav)
}
