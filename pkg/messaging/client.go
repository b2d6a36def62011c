package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"wablast/pkg/messaging/types"
)

const defaultTimeout = 30 * time.Second

// GatewayClient talks to the external messaging gateway over HTTP. One
// client is bound to one tenant's session on the gateway.
type GatewayClient struct {
	baseURL  string
	apiKey   string
	tenantID string
	client   *http.Client
}

// NewClient creates a gateway client for one tenant.
func NewClient(cfg types.ClientConfig) types.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &GatewayClient{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		tenantID: cfg.TenantID,
		client:   &http.Client{Timeout: timeout},
	}
}

// StartSession asks the gateway to begin authenticating this tenant's
// connection. Challenge and ready events arrive later via the webhook.
func (c *GatewayClient) StartSession(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/sessions/%s/start", c.baseURL, c.tenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to start session, status: %d", resp.StatusCode)
	}
	return nil
}

// Logout destroys the tenant's connection on the gateway side.
func (c *GatewayClient) Logout(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/sessions/%s/logout", c.baseURL, c.tenantID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to logout session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to logout session, status: %d", resp.StatusCode)
	}
	return nil
}

// SendText sends a plain text message to one recipient.
func (c *GatewayClient) SendText(ctx context.Context, recipient, body string) (*types.SendMessageResponse, error) {
	payload := map[string]interface{}{
		"recipient": recipient,
		"text":      body,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/%s/sendText", c.baseURL, c.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	return c.doSend(req)
}

// SendMedia sends a captioned media message to one recipient.
func (c *GatewayClient) SendMedia(ctx context.Context, recipient, mediaPath, caption string) (*types.SendMessageResponse, error) {
	file, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(mediaPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy file content: %w", err)
	}

	if err := writer.WriteField("recipient", recipient); err != nil {
		return nil, fmt.Errorf("failed to write recipient field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return nil, fmt.Errorf("failed to write caption field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/api/%s/sendMedia", c.baseURL, c.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.doSend(req)
}

func (c *GatewayClient) doSend(req *http.Request) (*types.SendMessageResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var result types.SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &result, fmt.Errorf("send failed with status %d: %s", resp.StatusCode, result.Error)
	}

	return &result, nil
}

func (c *GatewayClient) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
