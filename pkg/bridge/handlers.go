package bridge

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/erpbridge/pkg/httputil"
	"github.com/platinummonkey/erpbridge/pkg/identity"
	"github.com/platinummonkey/erpbridge/pkg/observability"
)

// Handlers exposes the bridge flows over HTTP.
type Handlers struct {
	bridge       *Bridge
	dashboardURL string
	loginURL     string
	logger       *observability.Logger
}

// NewHandlers creates the HTTP surface for bridge. dashboardURL and loginURL
// are the browser destinations for successful and failed inbound logins.
func NewHandlers(bridge *Bridge, dashboardURL, loginURL string, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Handlers{
		bridge:       bridge,
		dashboardURL: dashboardURL,
		loginURL:     loginURL,
		logger:       logger,
	}
}

// RegisterRoutes registers the ERP bridge routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// API routes called by the ERP side
	router.HandleFunc("/erp/validate-token", h.validateToken).Methods("POST")
	router.HandleFunc("/erp/api-login", h.apiLogin).Methods("POST")

	// Browser routes reached via ERP-side redirects
	router.HandleFunc("/erp/auth-user", h.authUser).Methods("GET")
	router.HandleFunc("/erp/login", h.tokenLogin).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})
}

// userPayload is the resolved identity shape shared by the JSON endpoints.
type userPayload struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

func toUserPayload(user *identity.User) *userPayload {
	return &userPayload{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}
}

// authResponse is the JSON envelope of the validate-token and api-login
// endpoints. Failures keep HTTP 200 with status=false; the message never
// reveals which internal reason occurred.
type authResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message,omitempty"`
	AuthURL string       `json:"auth_url,omitempty"`
	User    *userPayload `json:"user,omitempty"`
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

// validateToken handles POST /erp/validate-token, the wire operation the ERP
// calls to redeem a token.
func (h *Handlers) validateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Token == "" {
		httputil.WriteJSON(w, http.StatusOK, authResponse{
			Status:  false,
			Message: "token is required",
		})
		return
	}

	user, err := h.bridge.ValidateForERP(r.Context(), req.Token)
	if err != nil {
		httputil.WriteJSON(w, http.StatusOK, authResponse{
			Status:  false,
			Message: "invalid or expired token",
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, authResponse{
		Status: true,
		User:   toUserPayload(user),
	})
}

type apiLoginRequest struct {
	Email string `json:"email"`
}

// apiLogin handles POST /erp/api-login: issue an outbound token for the
// caller's identity and return the ERP auth URL.
func (h *Handlers) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	authURL, user, err := h.bridge.OutboundLogin(r.Context(), req.Email)
	if err != nil {
		h.writeLoginFailure(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, authResponse{
		Status:  true,
		Message: "authentication successful",
		AuthURL: authURL,
		User:    toUserPayload(user),
	})
}

// writeLoginFailure maps a flow error to the wire contract. Issuance trouble
// is a retriable service condition; everything else collapses to a generic
// denial.
func (h *Handlers) writeLoginFailure(w http.ResponseWriter, err error) {
	var fe *FlowError
	if errors.As(err, &fe) {
		switch fe.Reason {
		case ReasonMalformedInput:
			httputil.WriteJSON(w, http.StatusOK, authResponse{
				Status:  false,
				Message: "invalid email address",
			})
			return
		case ReasonIssuanceFailed:
			httputil.WriteJSON(w, http.StatusServiceUnavailable, authResponse{
				Status:  false,
				Message: "service temporarily unavailable",
			})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, authResponse{
		Status:  false,
		Message: "authentication failed",
	})
}

// authUser handles GET /erp/auth-user?user_email=, the browser path carrying
// a bare email claim from the trusted ERP network.
func (h *Handlers) authUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("user_email")

	if _, err := h.bridge.LoginWithEmail(r.Context(), email); err != nil {
		h.redirectFailure(w, r)
		return
	}

	http.Redirect(w, r, h.dashboardURL, http.StatusFound)
}

// tokenLogin handles GET /erp/login?sso_token=, the browser completion of the
// inbound token flow.
func (h *Handlers) tokenLogin(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("sso_token")

	if _, err := h.bridge.LoginWithToken(r.Context(), tok); err != nil {
		h.redirectFailure(w, r)
		return
	}

	http.Redirect(w, r, h.dashboardURL, http.StatusFound)
}

// redirectFailure sends the browser to the login page with a short-lived
// flash cookie. The cookie carries a generic message only; specific reasons
// stay in the logs.
func (h *Handlers) redirectFailure(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "sso_flash",
		Value:    "authentication_failed",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
	http.Redirect(w, r, h.loginURL, http.StatusFound)
}
