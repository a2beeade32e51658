package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sic_device_agent/internal/common"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/profile"

	"go.uber.org/zap"
)

// Client talks to the SIC backend. Registration is the one call on the
// critical path; location reporting is best-effort.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	registerPath string
	locationPath string
	logger       *zap.Logger
}

// New creates a new backend client. No request timeout is set on the
// registration call; the transport default applies.
func New(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{},
		baseURL:      cfg.APIBaseURL,
		registerPath: cfg.RegisterPath,
		locationPath: cfg.LocationPath,
		logger:       logger.Named("api"),
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	FCMToken string `json:"fcmToken"`
}

// errorBody is the failure shape the backend may send.
type errorBody struct {
	Message string `json:"message"`
}

// LocationReport is the payload posted to the location-ingestion endpoint.
type LocationReport struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	MessageID string            `json:"messageId,omitempty"`
	Data      map[string]string `json:"data"`
}

// Register posts {email, fcmToken} to the registration endpoint and decodes
// the response as a Profile. Any non-success status becomes a remote failure
// carrying the server message when one is parsable; a 404 is categorized as
// route-not-found for diagnostics, though callers handle it identically.
func (c *Client) Register(ctx context.Context, email, token string) (*profile.Profile, error) {
	url := c.baseURL + c.registerPath
	body, err := json.Marshal(registerRequest{Email: email, FCMToken: token})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registration request: %w", err)
	}

	c.logger.Info("Registering user", zap.String("url", url), zap.Bool("has_token", token != ""))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Registration request failed", zap.Error(err))
		return nil, common.NewClientError(common.CategoryRemote, "network error, please check your connection")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.remoteFailure(resp)
	}

	var p profile.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		c.logger.Error("Failed to decode registration response", zap.Error(err))
		return nil, common.NewClientError(common.CategoryRemote, "registration succeeded but the response could not be read")
	}

	c.logger.Info("Registration succeeded")
	return &p, nil
}

// ReportLocation posts a location fix to the backend. Best-effort: callers
// log failures and move on, never retry, never surface them to the user.
func (c *Client) ReportLocation(ctx context.Context, report LocationReport) error {
	url := c.baseURL + c.locationPath
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode location report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build location report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.NewClientError(common.CategoryRemote, fmt.Sprintf("location report failed: %v", err))
	}
	defer resp.Body.Close()

	// Response body is ignored beyond success/failure.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return common.NewClientError(common.CategoryRemote,
			fmt.Sprintf("location report rejected with status %d", resp.StatusCode)).
			WithStatus(resp.StatusCode)
	}

	c.logger.Debug("Location report accepted",
		zap.Float64("latitude", report.Latitude),
		zap.Float64("longitude", report.Longitude),
		zap.String("message_id", report.MessageID))
	return nil
}

// remoteFailure builds the error for a non-success registration response,
// preferring the server-supplied message.
func (c *Client) remoteFailure(resp *http.Response) error {
	category := common.CategoryRemote
	if resp.StatusCode == http.StatusNotFound {
		category = common.CategoryRouteNotFound
	}

	message := fmt.Sprintf("registration failed with status %d", resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	if err == nil && len(raw) > 0 {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
			message = eb.Message
		}
	}

	c.logger.Warn("Registration rejected",
		zap.Int("status", resp.StatusCode),
		zap.String("category", string(category)),
		zap.String("message", message))

	return common.NewClientError(category, message).WithStatus(resp.StatusCode)
}
