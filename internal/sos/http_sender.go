package sos

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crimewatch/backend/internal/dispatch"
	"crimewatch/backend/internal/errs"
	"crimewatch/backend/internal/models"

	"github.com/pkg/errors"
)

// Multipart field names of POST /api/sos.
const (
	FieldLatitude     = "latitude"
	FieldLongitude    = "longitude"
	FieldMessage      = "message"
	FieldStationID    = "station_id"
	FieldReporterName = "reporter_name"
	FieldContactInfo  = "contact_info"
	FieldRecording    = "recording"
)

// SendResponse is the JSON body of a successful POST /api/sos.
type SendResponse struct {
	AlertID      string           `json:"alert_id"`
	RecordingURL string           `json:"recording_url,omitempty"`
	Warning      string           `json:"warning,omitempty"`
	WarningCode  string           `json:"warning_code,omitempty"`
	Alert        *models.SOSAlert `json:"alert"`
}

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPSender posts requests to the SOS endpoint of a server.
type HTTPSender struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPSender(baseURL, token string) *HTTPSender {
	return &HTTPSender{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Send issues exactly one request; failures are not retried.
func (h *HTTPSender) Send(ctx context.Context, req dispatch.Request) (*dispatch.Result, error) {
	if err := dispatch.Validate(req); err != nil {
		return nil, err
	}

	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/api/sos", body)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.Header.Set("Content-Type", contentType)
	if h.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.Token)
	}

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrDispatchFailed, "post alert: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrDispatchFailed, "read response: %v", err)
	}
	if resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, raw)
	}

	var out SendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrapf(errs.ErrDispatchFailed, "decode response: %v", err)
	}
	res := &dispatch.Result{AlertID: out.AlertID, RecordingURL: out.RecordingURL, Alert: out.Alert}
	if out.Warning != "" {
		sentinel := errs.FromCode(out.WarningCode)
		if sentinel == nil {
			sentinel = errs.ErrUploadFailed
		}
		res.Warning = errors.Wrap(sentinel, out.Warning)
	}
	return res, nil
}

func encodeRequest(req dispatch.Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		FieldLatitude:     strconv.FormatFloat(req.Location.Lat, 'f', -1, 64),
		FieldLongitude:    strconv.FormatFloat(req.Location.Lng, 'f', -1, 64),
		FieldMessage:      req.Message,
		FieldReporterName: req.Reporter.Name,
		FieldContactInfo:  req.Reporter.Contact,
	}
	if req.Station != nil {
		fields[FieldStationID] = req.Station.ID
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, "", errors.Wrapf(err, "write %s", k)
		}
	}

	if rec := req.Recording; rec != nil && len(rec.Data) > 0 {
		part, err := w.CreateFormFile(FieldRecording, "recording.mp3")
		if err != nil {
			return nil, "", errors.Wrap(err, "create recording part")
		}
		if _, err := part.Write(rec.Data); err != nil {
			return nil, "", errors.Wrap(err, "write recording")
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "close multipart")
	}
	return &buf, w.FormDataContentType(), nil
}

func decodeError(status int, raw []byte) error {
	var body ErrorResponse
	_ = json.Unmarshal(raw, &body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	if sentinel := errs.FromCode(body.Code); sentinel != nil {
		return errors.Wrap(sentinel, msg)
	}
	if status == http.StatusUnauthorized {
		return errors.Wrap(errs.ErrUnauthorized, msg)
	}
	return errors.Wrapf(errs.ErrDispatchFailed, "status %d: %s", status, msg)
}
