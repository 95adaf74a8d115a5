package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"crimewatch/backend/internal/hub"
	"crimewatch/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func watchCommand(c *cli.Context) error {
	ctx, stop := signalContext()
	defer stop()

	token, err := serverToken(ctx, c)
	if err != nil {
		return err
	}
	endpoint, err := socketURL(c.GlobalString("server"), token)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("connect: %v", err), 1)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	markAll := c.Bool("mark-all-read")
	for {
		var m hub.Message
		if err := conn.ReadJSON(&m); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return cli.NewExitError(fmt.Sprintf("read: %v", err), 1)
		}
		printFrame(c.App.Writer, m)

		if markAll && m.Type == hub.MessageFeed && m.Feed != nil && m.Feed.Unread > 0 {
			markAll = false
			if err := conn.WriteJSON(hub.Action{Action: hub.ActionMarkAllRead}); err != nil {
				return cli.NewExitError(fmt.Sprintf("write: %v", err), 1)
			}
		}
	}
}

// socketURL turns the API base URL into the /ws endpoint with the token as a query parameter.
func socketURL(server, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", errors.Wrap(err, "parse server url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func printFrame(w io.Writer, m hub.Message) {
	switch m.Type {
	case hub.MessageFeed:
		if m.Feed == nil {
			return
		}
		stale := ""
		if m.Feed.Stale {
			stale = " (offline copy)"
		}
		fmt.Fprintf(w, "notifications: %d unread%s\n", m.Feed.Unread, stale)
		for _, n := range m.Feed.Items {
			mark := " "
			if !n.IsRead {
				mark = "*"
			}
			fmt.Fprintf(w, " %s %s  %s  %s\n", mark, n.CreatedAt.Format("15:04:05"), n.Type, n.Message)
		}
	case hub.MessageAlert:
		var a models.SOSAlert
		if err := json.Unmarshal(m.Alert, &a); err != nil {
			fmt.Fprintf(w, "alert %s: %s\n", m.Event, string(m.Alert))
			return
		}
		fmt.Fprintf(w, "alert %s: %s [%s] %s\n", m.Event, a.AlertID, a.Status, a.Location)
	case hub.MessageError:
		fmt.Fprintf(w, "error [%s]: %s\n", m.Code, m.Error)
	}
}
