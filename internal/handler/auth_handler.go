/*
Package handler provides the HTTP handlers and routing for the server.

This file holds the login handler. Login is the opaque identity
assignment the websocket handshake trusts: it validates a username,
mints a user id, and issues the session token the client presents in its
hello frame.
*/
package handler

import (
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"parley/internal/pkg/auth/jwt"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/randx"
	"parley/internal/pkg/req"
	"parley/internal/pkg/resp"
)

// maxUsernameLength bounds display names.
const maxUsernameLength = 32

// LoginInput is the login request body.
type LoginInput struct {
	Username string `json:"username"`
}

// HandleLogin assigns an opaque user id to the given username and
// returns a signed session token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput

		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		username := strings.TrimSpace(input.Username)
		if !isValidUsername(username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		userID := randx.UserID()

		token, err := jwt.GenerateToken(&jwt.Payload{
			ID:       userID,
			Username: username,
		}, deps.Config.JWTSecret, jwt.SessionTokenExpiration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"userId":   userID,
			"username": username,
			"token":    token,
		})
	}
}

// isValidUsername accepts 1..32 printable runes with no interior
// control characters.
func isValidUsername(username string) bool {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return false
	}

	for _, r := range username {
		if !unicode.IsPrint(r) {
			return false
		}
	}

	return true
}
