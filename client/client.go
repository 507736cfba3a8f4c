// Package client talks to the product API: it resolves version names to
// internal identifiers and fetches the raw artifacts a snapshot is built
// from. It performs no retries; retry policy belongs to the caller.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/iriusrisk/iriusrisk-cli-sub001/model"
	modelerrors "github.com/iriusrisk/iriusrisk-cli-sub001/pkg/errors"
)

// Config holds the connection settings for the product API.
type Config struct {
	BaseURL  string
	APIToken string
	Product  string
	Timeout  time.Duration
}

// VersionHandle is a resolved version identifier. Current marks the live
// model state rather than a stored version.
type VersionHandle struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Current bool   `json:"-"`
}

// Label returns the human-readable label for the handle.
func (h VersionHandle) Label() string {
	if h.Current {
		return model.CurrentVersionLabel
	}
	if h.Name != "" {
		return h.Name
	}
	return h.ID
}

// CurrentVersion addresses the live current state of the model.
var CurrentVersion = VersionHandle{Current: true}

// Artifacts are the three raw documents a snapshot is assembled from.
type Artifacts struct {
	DiagramMarkup      []byte
	ThreatsRaw         []byte
	CountermeasuresRaw []byte
}

// Client is the HTTP client for the product API.
type Client struct {
	baseURL    string
	token      string
	product    string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a product API client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("client: base URL is required")
	}
	if cfg.Product == "" {
		return nil, fmt.Errorf("client: product reference is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.APIToken,
		product:    cfg.Product,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With().Str("component", "api-client").Logger(),
	}, nil
}

type versionListing struct {
	Versions []VersionHandle `json:"versions"`
}

// ListVersions returns every stored version of the product.
func (c *Client) ListVersions(ctx context.Context) ([]VersionHandle, error) {
	body, err := c.get(ctx, c.productPath("versions"), "")
	if err != nil {
		return nil, err
	}
	var listing versionListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, modelerrors.NewParseError("malformed version listing", err)
	}
	return listing.Versions, nil
}

// ResolveVersion resolves a version name or internal id to a handle.
// Internal ids take precedence when a name happens to collide with one.
func (c *Client) ResolveVersion(ctx context.Context, nameOrID string) (VersionHandle, error) {
	versions, err := c.ListVersions(ctx)
	if err != nil {
		return VersionHandle{}, err
	}
	for _, v := range versions {
		if v.ID == nameOrID {
			return v, nil
		}
	}
	for _, v := range versions {
		if v.Name == nameOrID {
			return v, nil
		}
	}
	return VersionHandle{}, modelerrors.NewVersionNotFound(nameOrID)
}

// FetchArtifacts retrieves the diagram markup, threat list and
// countermeasure list for the resolved version.
func (c *Client) FetchArtifacts(ctx context.Context, handle VersionHandle) (*Artifacts, error) {
	diagram, err := c.fetchArtifact(ctx, handle, "diagram")
	if err != nil {
		return nil, err
	}
	threats, err := c.fetchArtifact(ctx, handle, "threats")
	if err != nil {
		return nil, err
	}
	countermeasures, err := c.fetchArtifact(ctx, handle, "countermeasures")
	if err != nil {
		return nil, err
	}
	return &Artifacts{
		DiagramMarkup:      diagram,
		ThreatsRaw:         threats,
		CountermeasuresRaw: countermeasures,
	}, nil
}

func (c *Client) fetchArtifact(ctx context.Context, handle VersionHandle, artifact string) ([]byte, error) {
	var path string
	if handle.Current {
		path = c.productPath(artifact)
	} else {
		path = c.productPath("versions", handle.ID, artifact)
	}
	return c.get(ctx, path, handle.Label())
}

func (c *Client) productPath(parts ...string) string {
	path := c.baseURL + "/api/v2/products/" + url.PathEscape(c.product)
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	return path
}

// get performs one GET. Transport failures and 5xx responses map to
// retryable fetch errors; 4xx responses are not retryable.
func (c *Client) get(ctx context.Context, rawURL, version string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, modelerrors.NewFetchError(version, false, err)
	}
	if c.token != "" {
		req.Header.Set("api-token", c.token)
	}
	req.Header.Set("Accept", "application/json, application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, modelerrors.NewFetchError(version, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, modelerrors.NewFetchError(version, true,
			fmt.Errorf("server returned %s", resp.Status))
	}
	if resp.StatusCode >= 400 {
		return nil, modelerrors.NewFetchError(version, false,
			fmt.Errorf("server returned %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, modelerrors.NewFetchError(version, true, err)
	}

	c.log.Debug().Str("url", rawURL).Int("bytes", len(body)).Msg("artifact fetched")
	return body, nil
}
