// Package whatsapp is a minimal WhatsApp Cloud API client for text and
// document messages. Document sends upload the file as media first, then
// reference the returned media ID in the message.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"
)

// Config holds Cloud API access settings.
type Config struct {
	APIBaseURL    string
	AccessToken   string
	PhoneNumberID string
}

// Client talks to the WhatsApp Cloud API. The underlying HTTP client has no
// timeout: a pass send over a slow network is allowed to run to completion,
// and cancellation is the caller's context's job.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a WhatsApp client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: &http.Client{}, logger: logger}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.AccessToken != "" && c.cfg.PhoneNumberID != ""
}

type mediaUploadResponse struct {
	ID string `json:"id"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText sends a plain text message to an E.164 phone number.
func (c *Client) SendText(ctx context.Context, phone, text string) error {
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	return c.postMessage(ctx, body)
}

// SendDocument uploads the document bytes as media and sends it with a caption.
func (c *Client) SendDocument(ctx context.Context, phone, filename, caption string, doc []byte) error {
	mediaID, err := c.uploadMedia(ctx, filename, "application/pdf", doc)
	if err != nil {
		return fmt.Errorf("upload media: %w", err)
	}
	body := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "document",
		"document": map[string]string{
			"id":       mediaID,
			"filename": filename,
			"caption":  caption,
		},
	}
	if err := c.postMessage(ctx, body); err != nil {
		return err
	}
	c.logger.Debug("document sent", zap.String("phone", phone), zap.String("media_id", mediaID))
	return nil
}

func (c *Client) uploadMedia(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := mw.WriteField("type", contentType); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/media", c.cfg.APIBaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(resp.StatusCode, raw)
	}
	var out mediaUploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode media response: %w", err)
	}
	return out.ID, nil
}

func (c *Client) postMessage(ctx context.Context, body map[string]interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp.StatusCode, respBody)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) error {
	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Error.Message != "" {
		return fmt.Errorf("whatsapp api %d: %s (code %d)", status, ae.Error.Message, ae.Error.Code)
	}
	return fmt.Errorf("whatsapp api status %d", status)
}
