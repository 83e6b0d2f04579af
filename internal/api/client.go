package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/circuitlab/racesim/internal/storage"
)

var errRejected = errors.New("upload rejected")

// UploadPath is where generation exports are posted.
const UploadPath = "/api/v1/generations"

// Client handles communication with a race replay server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// UploadMetadata describes one exported generation.
type UploadMetadata struct {
	Generation  int
	Reason      string
	EndTick     int
	BestFitness float64
	Tag         string
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the replay server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload streams the export of meta.Generation as a multipart form.
func (c *Client) Upload(ctx context.Context, exp storage.Exporter, filename string, meta UploadMetadata) error {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		// form fields
		_ = writer.WriteField("secret", c.apiKey)
		_ = writer.WriteField("filename", filename)
		_ = writer.WriteField("generation", strconv.Itoa(meta.Generation))
		_ = writer.WriteField("reason", meta.Reason)
		_ = writer.WriteField("endTick", strconv.Itoa(meta.EndTick))
		_ = writer.WriteField("bestFitness", strconv.FormatFloat(meta.BestFitness, 'f', -1, 64))
		_ = writer.WriteField("tag", meta.Tag)

		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			err = fmt.Errorf("failed to create form file: %w", err)
			pw.CloseWithError(err)
			errCh <- err
			return
		}
		if err := exp.Export(part, meta.Generation); err != nil {
			err = fmt.Errorf("failed to export generation %d: %w", meta.Generation, err)
			pw.CloseWithError(err)
			errCh <- err
			return
		}
		errCh <- writer.Close()
		pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		if writeErr := <-errCh; writeErr != nil && !errors.Is(writeErr, err) {
			return writeErr
		}
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// the server may answer before reading the whole body
		pr.CloseWithError(errRejected)
		if writeErr := <-errCh; writeErr != nil && !errors.Is(writeErr, errRejected) {
			return writeErr
		}
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return <-errCh
}
