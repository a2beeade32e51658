// pushsim sends a test push either through Firebase Cloud Messaging to a
// real device token, or directly to a local agent's push listener. It is a
// development tool for exercising the background delivery path end to end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	fcm "firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func main() {
	var (
		agentURL    = flag.String("agent", "", "base URL of a local agent push listener (e.g. http://127.0.0.1:9090)")
		deviceToken = flag.String("token", "", "FCM device token to send to (ignored when -agent is set)")
		credentials = flag.String("credentials", os.Getenv("FIREBASE_SERVICE_ACCOUNT_KEY_PATH"), "path to a Firebase service account key")
		projectID   = flag.String("project", os.Getenv("FIREBASE_PROJECT_ID"), "Firebase project ID (optional, inferred from credentials)")
		title       = flag.String("title", "Test Notification", "notification title")
		body        = flag.String("body", "Hello from pushsim", "notification body")
		dataPairs   = flag.String("data", "", "comma-separated key=value data payload")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	data := parseData(*dataPairs)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch {
	case *agentURL != "":
		err = sendToAgent(ctx, *agentURL, *title, *body, data, logger)
	case *deviceToken != "":
		err = sendViaFCM(ctx, *credentials, *projectID, *deviceToken, *title, *body, data, logger)
	default:
		fmt.Fprintln(os.Stderr, "pushsim: either -agent or -token is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("Push send failed", zap.Error(err))
	}
}

func parseData(pairs string) map[string]string {
	data := map[string]string{}
	if pairs == "" {
		return data
	}
	for _, pair := range strings.Split(pairs, ",") {
		key, value, found := strings.Cut(pair, "=")
		if found {
			data[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return data
}

// sendToAgent posts the message straight to a local agent's push listener,
// the same shape the relay delivers.
func sendToAgent(ctx context.Context, baseURL, title, body string, data map[string]string, logger *zap.Logger) error {
	payload := map[string]interface{}{
		"messageId":    uuid.NewString(),
		"notification": map[string]string{"title": title, "body": body},
		"data":         data,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + "/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent rejected push with status %d", resp.StatusCode)
	}
	logger.Info("Push delivered to local agent", zap.String("url", url))
	return nil
}

// sendViaFCM initializes the Firebase Admin SDK and sends the message to a
// real device token.
func sendViaFCM(ctx context.Context, credentialsPath, projectID, token, title, body string, data map[string]string, logger *zap.Logger) error {
	if credentialsPath == "" {
		return fmt.Errorf("firebase service account key path is required (flag -credentials or FIREBASE_SERVICE_ACCOUNT_KEY_PATH)")
	}
	opt := option.WithCredentialsFile(filepath.Clean(credentialsPath))

	var app *firebase.App
	var err error
	if projectID != "" {
		app, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opt)
	} else {
		// Let the SDK infer the project from the credentials.
		app, err = firebase.NewApp(ctx, nil, opt)
	}
	if err != nil {
		return fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("error getting Firebase Messaging client: %w", err)
	}

	id, err := client.Send(ctx, &fcm.Message{
		Token:        token,
		Notification: &fcm.Notification{Title: title, Body: body},
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("failed to send FCM message: %w", err)
	}

	logger.Info("Push sent via FCM", zap.String("message_id", id))
	return nil
}
