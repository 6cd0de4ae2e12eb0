// Package imagehost uploads menu images to an unsigned Cloudinary-style endpoint.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"restrobook/config"
	"restrobook/pkg/logger"
)

var ErrNotConfigured = errors.New("imagehost: IMAGE_UPLOAD_URL not set")

type Client struct {
	url    string
	preset string
	http   *http.Client
	log    logger.ILogger
}

func New(cfg config.Config, log logger.ILogger) *Client {
	return &Client{
		url:    cfg.ImageUploadURL,
		preset: cfg.ImageUploadPreset,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Upload posts the file and returns the public https URL of the stored image.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if c.url == "" {
		return "", ErrNotConfigured
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", err
	}
	if err := w.WriteField("upload_preset", c.preset); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("image upload failed", logger.String("file", filename), logger.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("imagehost: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.SecureURL == "" {
		msg := resp.Status
		if out.Error != nil {
			msg = out.Error.Message
		}
		c.log.Error("image upload rejected", logger.String("file", filename), logger.String("reason", msg))
		return "", fmt.Errorf("imagehost: upload rejected: %s", msg)
	}
	return out.SecureURL, nil
}
