package cloud

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// Official cloud API endpoints.
const (
	DefaultAPIBaseURL = "https://apis.cleargrass.com/v1/apis"
	DefaultOAuthURL   = "https://oauth.cleargrass.com/oauth2/token"

	oauthScope = "device_full_access"

	defaultCloudTimeout = 30 * time.Second

	// tokenSlack renews the token slightly before its reported expiry.
	tokenSlack = time.Minute
)

// Logger is the minimal logging interface the cloud clients use.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// ClientConfig configures the official cloud API client.
type ClientConfig struct {
	// AppKey and AppSecret come from the Qingping+ developer account.
	// Both required.
	AppKey    string
	AppSecret string

	// BaseURL overrides the API endpoint, for tests. Empty means the
	// production URL.
	BaseURL string

	// OAuthURL overrides the token endpoint, for tests.
	OAuthURL string

	// Timeout bounds every request. Zero means 30s.
	Timeout time.Duration

	// Logger is optional.
	Logger Logger
}

// Client talks to the official Qingping cloud API using OAuth2
// client-credentials. Tokens are acquired lazily and refreshed on
// expiry or on a 401.
type Client struct {
	http      *resty.Client
	oauthURL  string
	appKey    string
	appSecret string
	logger    Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// Device is one device as reported by the cloud API.
type Device struct {
	MAC     string
	Name    string
	Version string
	Offline bool
}

// NewClient builds a cloud API client. No network traffic happens
// until the first call.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, fmt.Errorf("%w: app key and secret are required", ErrMissingCredentials)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = DefaultOAuthURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCloudTimeout
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:      http,
		oauthURL:  cfg.OAuthURL,
		appKey:    cfg.AppKey,
		appSecret: cfg.AppSecret,
		logger:    cfg.Logger,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate acquires a fresh access token. Callers normally never
// need this; every API call fetches a token on demand.
func (c *Client) Authenticate(ctx context.Context) error {
	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.appKey, c.appSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      oauthScope,
		}).
		SetResult(&tok).
		Post(c.oauthURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if resp.IsError() || tok.AccessToken == "" {
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode())
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenSlack)
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("cloud api authenticated", "expires_in_s", tok.ExpiresIn)
	}
	return nil
}

func (c *Client) currentToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	expired := c.token == "" || time.Now().After(c.expiresAt)
	c.mu.Unlock()

	if !expired {
		return token, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// authed runs one request with a valid bearer token, retrying exactly
// once through a fresh token when the API answers 401.
func (c *Client) authed(ctx context.Context, do func(token string) (*resty.Response, error)) (*resty.Response, error) {
	token, err := c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := do(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode() != 401 {
		return resp, nil
	}

	if c.logger != nil {
		c.logger.Info("cloud api token rejected, re-authenticating")
	}
	c.clearToken()
	token, err = c.currentToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = do(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return resp, nil
}

type wireDevice struct {
	Info struct {
		MAC     string `json:"mac"`
		Name    string `json:"name"`
		Version string `json:"version"`
		Status  struct {
			Offline bool `json:"offline"`
		} `json:"status"`
	} `json:"info"`
}

type devicesResponse struct {
	Total   int          `json:"total"`
	Devices []wireDevice `json:"devices"`
}

// Devices lists the account's devices as the cloud sees them.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var body devicesResponse
	resp, err := c.authed(ctx, func(token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetQueryParam("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10)).
			SetResult(&body).
			Get("/devices")
	})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: listing devices, status %d", ErrRequestFailed, resp.StatusCode())
	}

	devices := make([]Device, 0, len(body.Devices))
	for _, d := range body.Devices {
		mac, err := qingping.NormalizeMAC(d.Info.MAC)
		if err != nil {
			continue
		}
		devices = append(devices, Device{
			MAC:     mac,
			Name:    d.Info.Name,
			Version: d.Info.Version,
			Offline: d.Info.Status.Offline,
		})
	}
	return devices, nil
}

// UpdateSettings writes device settings through the cloud. The device
// picks them up on its next cloud check-in.
func (c *Client) UpdateSettings(ctx context.Context, mac string, settings map[string]any) error {
	normalized, err := qingping.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	resp, err := c.authed(ctx, func(token string) (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(map[string]any{
				"mac":      []string{normalized},
				"settings": settings,
			}).
			Put("/devices/settings")
	})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("%w: updating settings for %s, status %d", ErrRequestFailed, normalized, resp.StatusCode())
	}

	if c.logger != nil {
		c.logger.Info("cloud settings updated", "mac", normalized)
	}
	return nil
}

// TriggerDeviceSync nudges a device to re-sync with the cloud by
// writing a harmless default setting. The cloud pushes configuration to
// the device on its next check-in, which restores MQTT reporting when a
// device has dropped off the broker.
func (c *Client) TriggerDeviceSync(ctx context.Context, mac string) error {
	if c.logger != nil {
		c.logger.Info("triggering cloud sync", "mac", mac)
	}
	return c.UpdateSettings(ctx, mac, map[string]any{
		qingping.SettingReportInterval: 60,
	})
}
