package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/oauth2"
)

// EventUploaded is the Event.Type the server sends after storing a file.
const EventUploaded = "uploaded"

// Event is one message on the /events websocket feed.
type Event struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// WatchUploads subscribes to the server's upload feed and calls fn for every
// event until ctx is canceled or the server closes the connection. A
// rejected token yields ErrUnauthorized before fn is ever called.
func (c *Client) WatchUploads(ctx context.Context, tok *oauth2.Token, fn func(Event)) error {
	header := make(http.Header)
	header.Set("User-Agent", userAgent)

	if tok != nil && tok.AccessToken != "" {
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	conn, resp, err := websocket.Dial(ctx, c.baseURL+"/events", &websocket.DialOptions{
		HTTPClient: c.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &Error{
				StatusCode: resp.StatusCode,
				Err:        classifyStatus(resp.StatusCode),
			}
		}

		return fmt.Errorf("api: dialing event feed: %w", err)
	}
	defer conn.CloseNow() //nolint:errcheck // close after normal shutdown is a no-op

	c.logger.Info("subscribed to upload events")

	for {
		var ev Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil {
				conn.Close(websocket.StatusNormalClosure, "")

				return nil
			}

			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				c.logger.Info("event feed closed by server")
				return nil
			}

			if errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("api: reading event feed: %w", err)
		}

		c.logger.Debug("upload event",
			slog.String("type", ev.Type),
			slog.String("name", ev.Name),
		)

		fn(ev)
	}
}
