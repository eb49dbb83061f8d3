package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tycoon/internal/auth"
)

// handleGuestToken issues a token for a fresh guest identity and sets it as the auth cookie.
// A caller that already holds a valid token gets it echoed back.
func (gs *GameServer) handleGuestToken(w http.ResponseWriter, r *http.Request) {
	if userID, err := auth.FromRequest(r); err == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"user_id": userID})
		return
	}
	userID := uuid.New()
	token, err := auth.CreateJWT(userID)
	if err != nil {
		gs.Logger.WithError(err).Error("failed to create guest token")
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusCreated, map[string]interface{}{"user_id": userID, "token": token})
}
