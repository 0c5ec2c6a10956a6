package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"riskquery-backend/internal/cache"
	"riskquery-backend/internal/config"
)

var (
	// ErrAuthNotConfigured means tenant/client credentials are missing.
	ErrAuthNotConfigured = errors.New("drive credentials are not configured")
	// ErrFolderNotConfigured means no remote folder path is set.
	ErrFolderNotConfigured = errors.New("drive folder path is not configured")
	// ErrFileNotFoundRemote means the requested name is absent from the listing.
	ErrFileNotFoundRemote = errors.New("file not found in drive folder")
	// ErrUpstream wraps non-2xx responses from the drive API.
	ErrUpstream = errors.New("drive request failed")
)

const (
	graphScope    = "https://graph.microsoft.com/.default"
	defaultLogin  = "https://login.microsoftonline.com"
	defaultGraph  = "https://graph.microsoft.com/v1.0"
	tokenCacheTTL = 3500 * time.Second // under the real 3600s expiry, tolerates clock skew

	tokenTimeout    = 10 * time.Second
	listTimeout     = 10 * time.Second
	downloadTimeout = 30 * time.Second
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File is one entry of the remote folder listing.
type File struct {
	Name         string `json:"name"`
	DownloadURL  string `json:"@microsoft.graph.downloadUrl"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModifiedDateTime"`
}

// Client wraps the minimal Microsoft Graph drive calls the service needs:
// token exchange, folder listing and file download into a local cache dir.
type Client struct {
	httpClient *http.Client

	tenantID     string
	clientID     string
	clientSecret string
	driveID      string
	folderPath   string

	cacheDir   string
	listingTTL time.Duration

	tokens   *cache.TTL[string, string]
	listings *cache.TTL[string, []File]

	// Overridable in tests.
	loginBase string
	graphBase string
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient:   &http.Client{},
		tenantID:     cfg.TenantID,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		driveID:      cfg.DriveID,
		folderPath:   cfg.FolderPath,
		cacheDir:     cfg.CacheDir,
		listingTTL:   cfg.GraphCacheTTL,
		tokens:       cache.NewTTL[string, string](tokenCacheTTL),
		listings:     cache.NewTTL[string, []File](cfg.GraphCacheTTL),
		loginBase:    defaultLogin,
		graphBase:    defaultGraph,
	}
}

// Authenticate returns a bearer token, exchanging client credentials only
// when the cached token has expired.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get("token"); ok {
		return token, nil
	}

	if c.tenantID == "" || c.clientID == "" || c.clientSecret == "" {
		return "", ErrAuthNotConfigured
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"client_credentials"},
		"scope":         {graphScope},
	}

	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	tokenURL := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.loginBase, c.tenantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token endpoint returned %s", ErrUpstream, resp.Status)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", ErrUpstream)
	}

	c.tokens.Set("token", payload.AccessToken)
	return payload.AccessToken, nil
}

// ListFiles returns the remote folder listing, cached for the listing TTL.
// A cache hit performs no network call, not even re-authentication.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	if files, ok := c.listings.Get("files"); ok {
		return files, nil
	}

	if c.folderPath == "" {
		return nil, ErrFolderNotConfigured
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var listURL string
	if c.driveID != "" {
		listURL = fmt.Sprintf("%s/drives/%s/root:%s:/children", c.graphBase, c.driveID, c.folderPath)
	} else {
		listURL = fmt.Sprintf("%s/me/drive/root:%s:/children", c.graphBase, c.folderPath)
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("folder listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: listing returned %s", ErrUpstream, resp.Status)
	}

	var payload struct {
		Value []File `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("folder listing: %w", err)
	}

	files := make([]File, 0, len(payload.Value))
	for _, f := range payload.Value {
		if f.Name == "" || f.DownloadURL == "" {
			continue
		}
		files = append(files, f)
	}

	c.listings.Set("files", files)
	return files, nil
}

// FileNames returns just the names from the current listing.
func (c *Client) FileNames(ctx context.Context) ([]string, error) {
	files, err := c.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names, nil
}

// EnsureLocal returns a local path for name, downloading only when no fresh
// local copy exists. Freshness is bounded by the listing TTL; a hit performs
// zero network calls, accepting staleness to bound latency.
func (c *Client) EnsureLocal(ctx context.Context, name string) (string, error) {
	target := filepath.Join(c.cacheDir, name)
	if info, err := os.Stat(target); err == nil && time.Since(info.ModTime()) < c.listingTTL {
		return target, nil
	}

	files, err := c.ListFiles(ctx)
	if err != nil {
		return "", err
	}

	var match *File
	for i := range files {
		if files[i].Name == name {
			match = &files[i]
			break
		}
	}
	if match == nil {
		return "", fmt.Errorf("%s: %w", name, ErrFileNotFoundRemote)
	}

	if err := os.MkdirAll(c.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, match.DownloadURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: download of %s returned %s", ErrUpstream, name, resp.Status)
	}

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	return target, nil
}
