package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/qingping-bridge/internal/qingping"
)

// Developer portal endpoints and constants.
const (
	DefaultPortalBaseURL = "https://developer.cleargrass.com"

	portalLoginPath   = "/account/login"
	portalConfigPath  = "/v1/private/config"
	portalDevicesPath = "/v1/private/devices"

	// ProductAirMonitorLite is the product code this bridge provisions.
	ProductAirMonitorLite = "CGDN1"

	portalPageLimit = "50"

	// rebindPause gives the portal time to process the unbind before
	// the device is bound again.
	rebindPause = time.Second
)

// Portal envelope codes. Login succeeds with 0, everything else with
// 200; the portal is inconsistent about it.
const (
	portalLoginOK = 0
	portalOK      = 200
)

// DeveloperConfig configures the developer portal client.
type DeveloperConfig struct {
	// BaseURL overrides the portal endpoint, for tests.
	BaseURL string

	// Timeout bounds every request. Zero means 30s.
	Timeout time.Duration

	// Logger is optional.
	Logger Logger
}

// DeveloperClient talks to the Qingping developer portal's private API,
// the surface the web console itself uses. Call Login before anything
// else; the bearer token is held for the client's lifetime.
type DeveloperClient struct {
	http   *resty.Client
	logger Logger

	mu    sync.RWMutex
	token string
}

// BrokerParams describe the MQTT broker a private config points at.
type BrokerParams struct {
	Host     string
	Port     int
	Username string
	Password string
}

// PortalConfig is one private config as listed by the portal.
type PortalConfig struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Product struct {
		Code string `json:"code"`
	} `json:"product"`
	NetworkConfig struct {
		Type       int `json:"type"`
		MQTTConfig struct {
			Host      string `json:"host"`
			Port      int    `json:"port"`
			Username  string `json:"username"`
			Password  string `json:"password"`
			ClientID  string `json:"clientId"`
			TopicUp   string `json:"topicUp"`
			TopicDown string `json:"topicDown"`
		} `json:"mqttConfig"`
	} `json:"networkConfig"`
}

// PortalDevice is one device as listed by the portal.
type PortalDevice struct {
	MAC           string `json:"mac"`
	Name          string `json:"name"`
	PrivateConfig struct {
		ID int64 `json:"id"`
	} `json:"privateConfig"`
}

type portalEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// NewDeveloperClient builds a portal client.
func NewDeveloperClient(cfg DeveloperConfig) *DeveloperClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPortalBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCloudTimeout
	}

	// The portal checks browser-ish headers.
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json, text/plain, */*").
		SetHeader("Language", "en-US").
		SetHeader("Origin", "https://developer.qingping.co").
		SetHeader("Referer", "https://developer.qingping.co/").
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	return &DeveloperClient{http: http, logger: cfg.Logger}
}

// Login authenticates with the Qingping account and stores the session
// token.
func (c *DeveloperClient) Login(ctx context.Context, account, password string) error {
	if account == "" || password == "" {
		return fmt.Errorf("%w: account and password are required", ErrMissingCredentials)
	}

	var env portalEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"account":      account,
			"password":     password,
			"cid":          "",
			"country_code": "86",
		}).
		SetResult(&env).
		Post(portalLoginPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if resp.IsError() || env.Code != portalLoginOK {
		return fmt.Errorf("%w: login code %d: %s", ErrAuthFailed, env.Code, env.Msg)
	}

	var data struct {
		Token       string `json:"token"`
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		return fmt.Errorf("%w: login response carried no token", ErrAuthFailed)
	}

	c.mu.Lock()
	c.token = data.Token
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("developer portal login successful", "account", data.DisplayName)
	}
	return nil
}

// LoggedIn reports whether a session token is held.
func (c *DeveloperClient) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *DeveloperClient) bearer() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", ErrNotLoggedIn
	}
	return c.token, nil
}

// call runs one authed portal request and unwraps the envelope.
func (c *DeveloperClient) call(ctx context.Context, build func(r *resty.Request) (*resty.Response, error)) (json.RawMessage, error) {
	token, err := c.bearer()
	if err != nil {
		return nil, err
	}

	var env portalEnvelope
	resp, err := build(c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&env))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode())
	}
	if env.Code != portalOK {
		return nil, fmt.Errorf("%w: code %d: %s", ErrPortalRejected, env.Code, env.Msg)
	}
	return env.Data, nil
}

// Configs lists the account's private configs.
func (c *DeveloperClient) Configs(ctx context.Context) ([]PortalConfig, error) {
	data, err := c.call(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParams(map[string]string{"limit": portalPageLimit, "offset": "0"}).
			Get(portalConfigPath)
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Configs []PortalConfig `json:"configs"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding configs: %w", ErrRequestFailed, err)
	}
	return body.Configs, nil
}

// configPayload builds the create/update body. The {mac} placeholders
// are expanded by the device firmware, not by us.
func configPayload(id int64, name string, broker BrokerParams) map[string]any {
	payload := map[string]any{
		"name":    name,
		"product": map[string]any{"code": ProductAirMonitorLite},
		"networkConfig": map[string]any{
			"type": 1, // self-built MQTT
			"mqttConfig": map[string]any{
				"endpoint":  "",
				"host":      broker.Host,
				"port":      broker.Port,
				"username":  broker.Username,
				"password":  broker.Password,
				"clientId":  "qingping-{mac}",
				"topicUp":   "qingping/{mac}/up",
				"topicDown": "qingping/{mac}/down",
			},
		},
		"reportConfig": map[string]any{
			"reportInterval":  1,
			"collectInterval": 1,
			"bleAdvInterval":  4000,
		},
		"encryptConfig": map[string]any{
			"type":      0,
			"secretKey": "",
		},
	}
	if id != 0 {
		payload["id"] = id
	}
	return payload
}

// CreateMQTTConfig creates a private config pointing devices at the
// given broker. Returns the new config's ID.
func (c *DeveloperClient) CreateMQTTConfig(ctx context.Context, name string, broker BrokerParams) (int64, error) {
	data, err := c.call(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(configPayload(0, name, broker)).Post(portalConfigPath)
	})
	if err != nil {
		return 0, err
	}

	var body struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.ID == 0 {
		return 0, fmt.Errorf("%w: create config returned no id", ErrRequestFailed)
	}
	if c.logger != nil {
		c.logger.Info("created portal config", "name", name, "config_id", body.ID)
	}
	return body.ID, nil
}

// UpdateMQTTConfig rewrites an existing private config in place.
func (c *DeveloperClient) UpdateMQTTConfig(ctx context.Context, id int64, name string, broker BrokerParams) error {
	_, err := c.call(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(configPayload(id, name, broker)).Put(portalConfigPath)
	})
	if err != nil {
		return err
	}
	if c.logger != nil {
		c.logger.Info("updated portal config", "config_id", id)
	}
	return nil
}

// Devices lists Air Monitor Lite devices. hadPrivate selects between
// devices already bound to a private config and unbound ones.
func (c *DeveloperClient) Devices(ctx context.Context, hadPrivate bool) ([]PortalDevice, error) {
	data, err := c.call(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParams(map[string]string{
				"hadPrivate":  strconv.FormatBool(hadPrivate),
				"limit":       portalPageLimit,
				"offset":      "0",
				"productCode": ProductAirMonitorLite,
			}).
			Get(portalDevicesPath)
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		Devices []PortalDevice `json:"devices"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: decoding devices: %w", ErrRequestFailed, err)
	}
	return body.Devices, nil
}

// DeviceConfigID returns the private config a device is bound to.
func (c *DeveloperClient) DeviceConfigID(ctx context.Context, mac string) (int64, error) {
	normalized, err := qingping.NormalizeMAC(mac)
	if err != nil {
		return 0, err
	}
	bound, err := c.Devices(ctx, true)
	if err != nil {
		return 0, err
	}
	for _, d := range bound {
		if d.MAC == normalized && d.PrivateConfig.ID != 0 {
			return d.PrivateConfig.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotBound, normalized)
}

// Bind attaches devices to a private config. They receive the MQTT
// settings on their next cloud sync.
func (c *DeveloperClient) Bind(ctx context.Context, macs []string, configID int64) error {
	normalized, err := normalizeAll(macs)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(map[string]any{
				"macList":         normalized,
				"privateConfigId": configID,
			}).
			Put(portalDevicesPath)
	})
	if err != nil {
		return err
	}
	if c.logger != nil {
		c.logger.Info("bound devices to config", "macs", normalized, "config_id", configID)
	}
	return nil
}

// Unbind detaches devices from their private config.
func (c *DeveloperClient) Unbind(ctx context.Context, macs []string) error {
	normalized, err := normalizeAll(macs)
	if err != nil {
		return err
	}
	_, err = c.call(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(map[string]any{"macList": normalized}).
			Delete(portalDevicesPath)
	})
	if err != nil {
		return err
	}
	if c.logger != nil {
		c.logger.Info("unbound devices", "macs", normalized)
	}
	return nil
}

// Rebind unbinds and re-binds a device, forcing it to re-download its
// config from the cloud. An unbind failure is logged and binding is
// attempted anyway.
func (c *DeveloperClient) Rebind(ctx context.Context, mac string, configID int64) error {
	if err := c.Unbind(ctx, []string{mac}); err != nil {
		if c.logger != nil {
			c.logger.Warn("unbind before rebind failed", "mac", mac, "error", err)
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rebindPause):
	}

	return c.Bind(ctx, []string{mac}, configID)
}

// FindOrCreateConfig returns the ID of an existing config matching the
// broker's host, port and username, creating one when none matches.
func (c *DeveloperClient) FindOrCreateConfig(ctx context.Context, name string, broker BrokerParams) (int64, error) {
	configs, err := c.Configs(ctx)
	if err != nil {
		return 0, err
	}
	for _, cfg := range configs {
		m := cfg.NetworkConfig.MQTTConfig
		if m.Host == broker.Host && m.Port == broker.Port && m.Username == broker.Username {
			if c.logger != nil {
				c.logger.Info("reusing portal config", "name", cfg.Name, "config_id", cfg.ID)
			}
			return cfg.ID, nil
		}
	}
	return c.CreateMQTTConfig(ctx, name, broker)
}

// AutoProvision binds every unbound Air Monitor Lite to a config for
// the given broker, creating the config if needed. Returns the MACs
// that were bound; per-device bind failures are logged and skipped.
func (c *DeveloperClient) AutoProvision(ctx context.Context, name string, broker BrokerParams) ([]string, error) {
	configID, err := c.FindOrCreateConfig(ctx, name, broker)
	if err != nil {
		return nil, err
	}

	unbound, err := c.Devices(ctx, false)
	if err != nil {
		return nil, err
	}

	var provisioned []string
	for _, d := range unbound {
		if d.MAC == "" {
			continue
		}
		if err := c.Bind(ctx, []string{d.MAC}, configID); err != nil {
			if c.logger != nil {
				c.logger.Warn("failed to bind device", "mac", d.MAC, "error", err)
			}
			continue
		}
		provisioned = append(provisioned, d.MAC)
	}
	return provisioned, nil
}

func normalizeAll(macs []string) ([]string, error) {
	out := make([]string, 0, len(macs))
	for _, mac := range macs {
		normalized, err := qingping.NormalizeMAC(mac)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	return out, nil
}
