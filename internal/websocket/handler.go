package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/atomickids/internal/auth"
)

// HandleWebSocket upgrades the request and runs it as a Hub client for the
// caller's account. originPatterns lists extra hosts allowed to connect
// besides the server's own origin.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, auth.AccountID(r.Context()))
		client.Run(r.Context())
	}
}
