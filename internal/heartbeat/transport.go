package heartbeat

import (
	"context"
	"fmt"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WebsocketSend is the production Sender: it opens a short-lived websocket
// connection, writes snap as one JSON text message, and closes cleanly.
// One connection per push keeps the collector side stateless and avoids
// holding a socket open across the (typically minutes-long) heartbeat
// period.
func WebsocketSend(ctx context.Context, url string, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "heartbeat sent")

	if err := wsjson.Write(ctx, conn, snap); err != nil {
		return fmt.Errorf("write snapshot to %s: %w", url, err)
	}

	return nil
}
