package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set carried by a session token. Login issues one
// per identity; the websocket handshake presents it to bind the
// connection to that identity.
type Payload struct {
	// StandardClaims embeds Exp, Iat, and Iss for validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the opaque user identifier assigned at login.
	ID string `json:"id"`

	// Username is the display name chosen at login. It is denormalized
	// into every message the user sends.
	Username string `json:"username"`
}
