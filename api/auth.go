package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/medveille/medveille/internal/session"
)

type AuthHandler struct {
	guard         *session.Guard
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(guard *session.Guard, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{guard: guard, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type unlockRequest struct {
	PIN string `json:"pin"`
}

type changePINRequest struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

type authResponse struct {
	Token string `json:"token"`
}

// Unlock verifies the PIN and opens the session, issuing a token whose
// lifetime matches the idle timeout. A wrong PIN (or one tried during the
// mismatch cooldown) reads as a plain 401.
func (h *AuthHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.PIN == "" {
		http.Error(w, "Missing pin", http.StatusBadRequest)
		return
	}

	if !h.guard.Unlock(r.Context(), req.PIN) {
		http.Error(w, "Invalid pin", http.StatusUnauthorized)
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(h.tokenDuration).Unix(),
	})
	tokenStr, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		http.Error(w, "Error signing token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(authResponse{Token: tokenStr})
}

// Lock closes the session immediately.
func (h *AuthHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.guard.Lock()
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"locked"}`)
}

// ChangePIN rotates the credential after verifying the current one.
func (h *AuthHandler) ChangePIN(w http.ResponseWriter, r *http.Request) {
	var req changePINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if !h.guard.ChangePIN(r.Context(), req.Current, req.Next) {
		http.Error(w, "Pin change refused", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"message":"pin updated"}`)
}
