package config

import "time"

const (
	// Alert lifecycle
	StatusNew        = "New"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"

	UrgencyHigh = "High"

	UnknownLocation   = "Unknown location"
	AnonymousReporter = "Anonymous User"

	// Recording
	RecordingContentType = "audio/mp3"
	RecordingExtension   = ".mp3"
	RecordingBucket      = "voice-messages"
	AnonymousFolder      = "anonymous"

	// Notification feed
	NotificationFeedLimit = 5
	SeenWindowSize        = 1024
	SnapshotMaxAge        = 24 * time.Hour

	// Session
	SuccessDisplayWindow = 3 * time.Second

	// Change feed
	SubscriptionMaxFailures = 5
	ChangeChannelPrefix     = "changes:"
	PGNotifyChannel         = "crimewatch_changes"
	// Postgres rejects NOTIFY payloads of 8000 bytes or more.
	PGNotifyMaxPayload      = 7900

	// Orphan recordings older than this with no referencing row get removed by the sweep.
	OrphanGracePeriod = time.Hour
)

// Notification types
const (
	NotificationSOSAlert        = "sos_alert"
	NotificationNewReport       = "new_report"
	NotificationKYCVerification = "kyc_verification"
	NotificationReportUpdate    = "report_update"
	NotificationOfficerAction   = "officer_action"
)

// AlertStatuses lists the statuses an officer may set.
var AlertStatuses = map[string]bool{
	StatusNew:        true,
	StatusInProgress: true,
	StatusResolved:   true,
}
