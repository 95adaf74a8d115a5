// Package hub fans change-feed events out to connected clients.
package hub

import (
	"crimewatch/backend/internal/changefeed"
	"crimewatch/backend/internal/models"
)

var (
	alertsTable  = models.SOSAlert{}.TableName()
	officerTable = models.OfficerNotification{}.TableName()
	userTable    = models.UserNotification{}.TableName()
)

// Client is any connection the hub delivers events to (WebSocket, Telegram relay).
type Client interface {
	// GetID identifies the connection. One user may hold several.
	GetID() string
	// GetFeed says which events the client receives.
	GetFeed() models.Feed
	// GetSendChannel is where the hub pushes matching events. The hub never closes it.
	GetSendChannel() chan<- changefeed.Event
	// Run starts the client's goroutines.
	Run()
	// Close shuts the connection down. Safe to call more than once.
	Close()
}

// Wants reports whether a client on feed f should receive e.
// Officers get every alert and officer notification; citizens get their own notifications
// and updates to alerts they reported.
func Wants(f models.Feed, e changefeed.Event) bool {
	switch f.Role {
	case models.RoleOfficer:
		return e.Table == alertsTable || e.Table == officerTable
	case models.RoleCitizen:
		if f.UserID == "" {
			return false
		}
		switch e.Table {
		case userTable:
			return changefeed.Filter{Table: e.Table, Column: "user_id", Value: f.UserID}.Match(e)
		case alertsTable:
			return changefeed.Filter{Table: e.Table, Column: "reporter_id", Value: f.UserID}.Match(e)
		}
	}
	return false
}
