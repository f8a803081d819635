// File: internal/metadata/client.go (complete file)

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/logging"
)

var log = logging.Logger("metadata")

// ErrNetwork marks a request that never produced a record: the transport
// failed or the origin answered with a non-2xx status.
var ErrNetwork = errors.New("metadata: network failure")

const (
	ContentType = "application/protobuf"

	// HeadersParam asks the origin to echo request header flags.
	HeadersParam = "h"

	maxBody = 1 << 20
)

type Client struct {
	BaseURL      string
	MetadataPath string
	AirportPath  string
	HTTP         *http.Client
	Now          func() time.Time
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// Fetch asks the origin for the current connection record. A Message with a
// nil Info is a soft failure and is returned without error.
func (c *Client) Fetch(ctx context.Context, withHeaders bool) (conninfo.Message, error) {
	u := c.url(c.MetadataPath)
	if withHeaders {
		u += "?" + HeadersParam
	}

	body, err := c.get(ctx, u, ContentType)
	if err != nil {
		return conninfo.Message{}, err
	}

	msg, err := conninfo.DecodeMessage(body)
	if err != nil {
		return conninfo.Message{}, fmt.Errorf("metadata: decode: %w", err)
	}
	if msg.Info != nil {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		msg.Info.ReceivedAt = now().UTC()
		msg.Info.Source = u
	}
	log.Debug("fetched", "url", u, "info", msg.Info != nil, "headers", msg.Headers != nil)
	return msg, nil
}

// Airport resolves a datacenter code to coordinates. Unknown codes resolve to
// 0,0, as the origin reports them.
func (c *Client) Airport(ctx context.Context, code string) (lat, lng float64, err error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, 0, nil
	}
	body, err := c.get(ctx, c.url(c.AirportPath)+"?code="+url.QueryEscape(code), "application/json")
	if err != nil {
		return 0, 0, err
	}

	var pair []float64
	if err := json.Unmarshal(body, &pair); err != nil {
		return 0, 0, fmt.Errorf("metadata: airport %q: %w", code, err)
	}
	if len(pair) != 2 {
		return 0, 0, nil
	}
	return pair[0], pair[1], nil
}

func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("%w: %s: status %d", ErrNetwork, u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	return body, nil
}
