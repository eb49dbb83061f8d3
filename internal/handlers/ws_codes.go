// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the game stream.
const (
	BadSubprotocolError   = 3000 // client did not negotiate the "game" subprotocol
	InvalidAuthTokenError = 3001 // a token was supplied but could not be verified
	GameOverError         = 3002 // the game finished or was cancelled while streaming
)
