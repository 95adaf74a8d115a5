package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"crimewatch/backend/internal/sos"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// fetchToken asks the server for a citizen token, or an officer token when officerKey is set.
// Token requests are retried; the SOS post itself never is.
func fetchToken(ctx context.Context, server, officerKey string, log *logrus.Entry) (*tokenResponse, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = log

	base := strings.TrimRight(server, "/")
	method, path := http.MethodGet, "/token"
	if officerKey != "" {
		method, path = http.MethodPost, "/token/officer"
	}
	req, err := retryablehttp.NewRequest(method, base+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build token request")
	}
	req = req.WithContext(ctx)
	if officerKey != "" {
		req.Header.Set("X-Officer-Key", officerKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request token")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read token response")
	}
	if resp.StatusCode != http.StatusOK {
		var e sos.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return nil, errors.Errorf("token request failed (%d): %s", resp.StatusCode, e.Error)
		}
		return nil, errors.Errorf("token request failed with status %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, errors.Wrap(err, "decode token response")
	}
	if tok.Token == "" {
		return nil, errors.New("empty token in response")
	}
	return &tok, nil
}
