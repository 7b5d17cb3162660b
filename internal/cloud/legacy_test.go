package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// legacyServer fakes the OAuth endpoint and the devices API on one mux.
type legacyServer struct {
	*httptest.Server
	tokenRequests  atomic.Int64
	rejectToken    string
	lastPutBody    []byte
	devicesPayload string
}

func newLegacyServer(t *testing.T) *legacyServer {
	t.Helper()
	ls := &legacyServer{
		devicesPayload: `{"total":1,"devices":[{"info":{"mac":"aa:bb:cc:dd:ee:ff","name":"Office","version":"2.0.1","status":{"offline":false}}}]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseForm(); err != nil ||
			r.PostForm.Get("grant_type") != "client_credentials" ||
			r.PostForm.Get("scope") != "device_full_access" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := ls.tokenRequests.Add(1)
		token := "token-1"
		if n > 1 {
			token = "token-2"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 3600})
	})
	mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		if !ls.authorize(w, r) {
			return
		}
		if r.URL.Query().Get("timestamp") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(ls.devicesPayload))
	})
	mux.HandleFunc("/devices/settings", func(w http.ResponseWriter, r *http.Request) {
		if !ls.authorize(w, r) {
			return
		}
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		ls.lastPutBody = body
		w.WriteHeader(http.StatusOK)
	})

	ls.Server = httptest.NewServer(mux)
	t.Cleanup(ls.Close)
	return ls
}

func (ls *legacyServer) authorize(w http.ResponseWriter, r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	if auth == "" || auth == "Bearer "+ls.rejectToken {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func testClient(t *testing.T, ls *legacyServer) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		AppKey:    "key",
		AppSecret: "secret",
		BaseURL:   ls.URL,
		OAuthURL:  ls.URL + "/oauth2/token",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_MissingCredentials(t *testing.T) {
	if _, err := NewClient(ClientConfig{AppKey: "key"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("NewClient() error = %v, want ErrMissingCredentials", err)
	}
	if _, err := NewClient(ClientConfig{AppSecret: "secret"}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("NewClient() error = %v, want ErrMissingCredentials", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ls := newLegacyServer(t)
	c := testClient(t, ls)

	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got := ls.tokenRequests.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	ls := newLegacyServer(t)
	c, err := NewClient(ClientConfig{
		AppKey:    "key",
		AppSecret: "wrong",
		BaseURL:   ls.URL,
		OAuthURL:  ls.URL + "/oauth2/token",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Authenticate(context.Background()); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Authenticate() error = %v, want ErrAuthFailed", err)
	}
}

func TestDevices(t *testing.T) {
	ls := newLegacyServer(t)
	c := testClient(t, ls)

	devices, err := c.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(devices))
	}
	d := devices[0]
	if d.MAC != "AABBCCDDEEFF" {
		t.Errorf("MAC = %q, want normalized AABBCCDDEEFF", d.MAC)
	}
	if d.Name != "Office" || d.Version != "2.0.1" || d.Offline {
		t.Errorf("device = %+v", d)
	}

	// Token acquired lazily, exactly once.
	if got := ls.tokenRequests.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestDevices_ReauthOn401(t *testing.T) {
	ls := newLegacyServer(t)
	c := testClient(t, ls)

	// First token gets rejected by the API, forcing one re-auth.
	ls.rejectToken = "token-1"

	devices, err := c.Devices(context.Background())
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("devices = %d, want 1", len(devices))
	}
	if got := ls.tokenRequests.Load(); got != 2 {
		t.Errorf("token requests = %d, want 2 (initial + re-auth)", got)
	}
}

func TestUpdateSettings(t *testing.T) {
	ls := newLegacyServer(t)
	c := testClient(t, ls)

	err := c.UpdateSettings(context.Background(), "aa:bb:cc:dd:ee:ff", map[string]any{"co2_offset": 25})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	var body struct {
		MAC      []string       `json:"mac"`
		Settings map[string]any `json:"settings"`
	}
	if err := json.Unmarshal(ls.lastPutBody, &body); err != nil {
		t.Fatalf("unmarshal PUT body: %v", err)
	}
	if len(body.MAC) != 1 || body.MAC[0] != "AABBCCDDEEFF" {
		t.Errorf("mac list = %v, want [AABBCCDDEEFF]", body.MAC)
	}
	if body.Settings["co2_offset"] != float64(25) {
		t.Errorf("settings = %v", body.Settings)
	}
}

func TestUpdateSettings_InvalidMAC(t *testing.T) {
	ls := newLegacyServer(t)
	c := testClient(t, ls)

	if err := c.UpdateSettings(context.Background(), "nope", nil); err == nil {
		t.Error("UpdateSettings(invalid mac) error = nil, want error")
	}
}

func TestTriggerDeviceSync(t *testing.T) {
	ls := newLegacyServer(t)
	c := testClient(t, ls)

	if err := c.TriggerDeviceSync(context.Background(), "AABBCCDDEEFF"); err != nil {
		t.Fatalf("TriggerDeviceSync() error = %v", err)
	}

	var body struct {
		Settings map[string]any `json:"settings"`
	}
	if err := json.Unmarshal(ls.lastPutBody, &body); err != nil {
		t.Fatal(err)
	}
	if body.Settings["report_interval"] != float64(60) {
		t.Errorf("sync settings = %v, want report_interval 60", body.Settings)
	}
}
