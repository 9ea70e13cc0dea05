package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/drblury/socketbus/internal/runtime"
	"github.com/drblury/socketbus/internal/runtime/jsoncodec"
)

const clientTimeout = 10 * time.Second

// apiClient talks to the inspection API of a running service.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: clientTimeout},
	}
}

func (c *apiClient) Sockets(ctx context.Context) ([]runtime.SocketInfo, error) {
	var sockets []runtime.SocketInfo
	err := c.do(ctx, http.MethodGet, "/api/sockets", nil, &sockets)
	return sockets, err
}

func (c *apiClient) Status(ctx context.Context) (runtime.ServiceStatus, error) {
	var status runtime.ServiceStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

// Post queues req on the named socket.
func (c *apiClient) Post(ctx context.Context, socket string, req runtime.PostRequest) error {
	body, err := jsoncodec.Marshal(req)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/sockets/"+url.PathEscape(socket)+"/messages", body, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if jsoncodec.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return jsoncodec.Unmarshal(raw, out)
}
