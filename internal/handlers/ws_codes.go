// internal/handlers/ws_codes.go
package handlers

// BadSubprotocolError is the close code for a client that connected without
// the friends subprotocol.
const BadSubprotocolError = 3000
