// Package errs holds the error taxonomy shared by the SOS flow.
// Callers wrap these with context and match them with errors.Is.
package errs

import "errors"

var (
	// ErrLocationUnavailable is returned when an alert is sent without coordinates.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrEmptyPayload is returned when neither a message nor a recording is present.
	ErrEmptyPayload = errors.New("alert needs a message or a voice recording")
	// ErrMicrophonePermissionDenied is returned when the capture device cannot be opened.
	ErrMicrophonePermissionDenied = errors.New("microphone permission denied")
	// ErrUploadFailed is returned when the recording upload to blob storage fails.
	ErrUploadFailed = errors.New("recording upload failed")
	// ErrDispatchFailed is returned when the alert row could not be written.
	ErrDispatchFailed = errors.New("alert dispatch failed")
	// ErrFetchFailed is returned when a notification feed could not be read and no snapshot exists.
	ErrFetchFailed = errors.New("notification fetch failed")
	// ErrSubscription is surfaced after the change feed repeatedly failed to reconnect.
	ErrSubscription = errors.New("change feed subscription failed")

	ErrInFlight          = errors.New("an alert is already being sent")
	ErrRecordingCaptured = errors.New("a recording is already captured, discard it first")
	ErrUpdateFailed      = errors.New("notification update failed")
	ErrInvalidStatus     = errors.New("invalid alert status")
	ErrNotFound          = errors.New("record not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrVideoURLRequired  = errors.New("video url is required")
	ErrRecordingTooLarge = errors.New("recording exceeds the size limit")
	ErrForbidden         = errors.New("forbidden")
)

// IsValidation reports whether err blocks submission before any write happens.
func IsValidation(err error) bool {
	return errors.Is(err, ErrLocationUnavailable) || errors.Is(err, ErrEmptyPayload)
}

var codes = []struct {
	code string
	err  error
}{
	{"location_unavailable", ErrLocationUnavailable},
	{"empty_payload", ErrEmptyPayload},
	{"microphone_permission_denied", ErrMicrophonePermissionDenied},
	{"upload_failed", ErrUploadFailed},
	{"dispatch_failed", ErrDispatchFailed},
	{"fetch_failed", ErrFetchFailed},
	{"subscription_error", ErrSubscription},
	{"in_flight", ErrInFlight},
	{"update_failed", ErrUpdateFailed},
	{"invalid_status", ErrInvalidStatus},
	{"not_found", ErrNotFound},
	{"unauthorized", ErrUnauthorized},
	{"video_url_required", ErrVideoURLRequired},
	{"recording_too_large", ErrRecordingTooLarge},
	{"forbidden", ErrForbidden},
}

// Code returns the wire code of the first sentinel err wraps, or "internal".
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// FromCode maps a wire code back to its sentinel. Unknown codes yield nil.
func FromCode(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
