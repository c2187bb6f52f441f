package handlers

import (
	"net/http"
	"time"

	"github.com/username/soldrip/backend/src/logger"
	"github.com/username/soldrip/backend/src/security"
	"github.com/username/soldrip/backend/src/security/validation"
	"github.com/username/soldrip/backend/src/utils"
)

type AuthHandler struct {
	authService *security.AuthService
}

func NewAuthHandler(authService *security.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginBody struct {
	Account   string `json:"account"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// HandleGetLoginMessage returns the message an account must sign to log in.
func (h *AuthHandler) HandleGetLoginMessage(w http.ResponseWriter, r *http.Request) {
	account, err := validation.ValidateAccountKey(r.URL.Query().Get("account"), "account")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": security.LoginMessage(account, time.Now()),
	})
}

// HandleLogin exchanges a signed login message for a bearer token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeJSON(w, r, &body); err != nil {
		sendServiceError(w, r, err)
		return
	}
	account, err := validation.ValidateAccountKey(body.Account, "account")
	if err != nil {
		sendServiceError(w, r, err)
		return
	}

	token, err := h.authService.Login(account, body.Message, body.Signature)
	if err != nil {
		logger.FromContext(r.Context()).Warn("Login failed", "account", account.String(), "error", err)
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "Bearer"})
}
