package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"sic_device_agent/internal/common"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Relay receives pushes as JSON POSTs from a push relay on a local listener
// and dispatches them to the registered foreground or background handler.
type Relay struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpClient *http.Client
	httpServer *http.Server
	router     *gin.Engine

	mu           sync.RWMutex
	token        string
	onMessage    Handler
	onBackground Handler

	foreground atomic.Bool
}

// NewRelay creates the relay-backed messaging capability.
func NewRelay(cfg *config.Config, logger *zap.Logger) *Relay {
	if cfg.AppEnv == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Relay{
		cfg:        cfg,
		logger:     logger.Named("messaging"),
		httpClient: &http.Client{},
	}

	router := gin.New()
	router.Use(middleware.ZapLogger(r.logger, cfg))
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	router.POST("/push", r.handlePush)

	r.router = router
	return r
}

type relayTokenRequest struct {
	Address string `json:"address"`
}

type relayTokenResponse struct {
	Token string `json:"token"`
}

// RequestToken obtains a delivery token from the relay, or mints a local one
// when no relay endpoint is configured. The token is cached until deleted.
func (r *Relay) RequestToken(ctx context.Context) (string, error) {
	r.mu.RLock()
	token := r.token
	r.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	if r.cfg.PushRelayURL == "" {
		token = uuid.NewString()
	} else {
		fetched, err := r.fetchRelayToken(ctx)
		if err != nil {
			return "", err
		}
		token = fetched
	}

	r.mu.Lock()
	r.token = token
	r.mu.Unlock()

	r.logger.Info("Delivery token obtained", zap.String("token_prefix", tokenPrefix(token)))
	return token, nil
}

func (r *Relay) fetchRelayToken(ctx context.Context) (string, error) {
	url := r.cfg.PushRelayURL + "/token"
	body, err := json.Marshal(relayTokenRequest{Address: r.cfg.PushListenAddr})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", common.NewClientError(common.CategoryUnavailable,
			fmt.Sprintf("push relay unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", common.NewClientError(common.CategoryUnavailable,
			fmt.Sprintf("push relay refused token request with status %d", resp.StatusCode)).
			WithStatus(resp.StatusCode)
	}

	var tr relayTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.Token == "" {
		return "", common.NewClientError(common.CategoryUnavailable, "push relay returned no token")
	}
	return tr.Token, nil
}

// DeleteToken drops the cached delivery token. The relay stops routing to
// dead listeners on its own, so no remote call is made.
func (r *Relay) DeleteToken(ctx context.Context) error {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
	r.logger.Info("Delivery token deleted")
	return nil
}

func (r *Relay) OnMessage(h Handler) {
	r.mu.Lock()
	r.onMessage = h
	r.mu.Unlock()
}

func (r *Relay) OnBackgroundMessage(h Handler) {
	r.mu.Lock()
	r.onBackground = h
	r.mu.Unlock()
}

func (r *Relay) SetForeground(foreground bool) {
	r.foreground.Store(foreground)
}

// handlePush accepts one delivered message and dispatches it off the request
// goroutine. The relay always sees 202 once the payload parses; handler
// outcomes never propagate back through delivery.
func (r *Relay) handlePush(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid push payload"})
		return
	}
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	r.mu.RLock()
	handler := r.onBackground
	background := true
	if r.foreground.Load() {
		handler = r.onMessage
		background = false
	}
	r.mu.RUnlock()

	if handler == nil {
		r.logger.Warn("Push received but no handler registered",
			zap.String("message_id", msg.MessageID), zap.Bool("background", background))
		c.JSON(http.StatusAccepted, gin.H{"status": "dropped"})
		return
	}

	r.logger.Info("Push received",
		zap.String("message_id", msg.MessageID), zap.Bool("background", background))

	go handler(context.Background(), msg)

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// Start begins listening for pushes in the background.
func (r *Relay) Start() error {
	r.httpServer = &http.Server{
		Addr:    r.cfg.PushListenAddr,
		Handler: r.router,
	}

	go func() {
		r.logger.Info("Push listener starting", zap.String("addr", r.cfg.PushListenAddr))
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("Push listener failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the push listener down gracefully.
func (r *Relay) Stop(ctx context.Context) error {
	if r.httpServer == nil {
		return nil
	}
	r.logger.Info("Push listener stopping")
	return r.httpServer.Shutdown(ctx)
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}

var _ Service = (*Relay)(nil)
