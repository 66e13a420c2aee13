package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"
)

// acceptHeader is the media type the vmrest API serves.
const acceptHeader = "application/vnd.vmware.vmw.rest-v1+json"

// Power state strings as reported by the API.
const (
	PoweredOn  = "poweredOn"
	PoweredOff = "poweredOff"
)

// ErrAlreadyInState is returned by SetPower when the VM is already in the
// requested power state; no PUT is issued in that case.
var ErrAlreadyInState = errors.New("client: vm already in requested power state")

// Client wraps REST access to a local vmrest management server.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
}

// New creates a client with the provided base URL (e.g. http://127.0.0.1:8697)
// and basic-auth credentials. timeout bounds every request issued by the
// client; zero means 60 seconds.
func New(rawURL, username, password string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		rawURL = "http://127.0.0.1:8697"
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:  parsed,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// VM is the API projection of a virtual machine entry. Entries are fetched
// fresh on every call and never cached.
type VM struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// DisplayName derives a human-readable name from the .vmx path: the file
// name with hyphens turned into spaces, the extension stripped, and the
// first letter upper-cased.
func (v VM) DisplayName() string {
	if strings.TrimSpace(v.Path) == "" {
		return ""
	}
	p := strings.ReplaceAll(v.Path, `\`, "/")
	name := path.Base(p)
	name = strings.TrimSuffix(name, ".vmx")
	name = strings.ReplaceAll(name, "-", " ")
	if name == "" {
		return name
	}
	runes := []rune(strings.ToLower(name))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// NIC is the API projection of a guest network adapter.
type NIC struct {
	Index      int    `json:"index"`
	Type       string `json:"type"`
	VMNet      string `json:"vmnet"`
	MACAddress string `json:"macAddress"`
}

// Network is the API projection of a host virtual network.
type Network struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	DHCP   string `json:"dhcp"`
	Subnet string `json:"subnet"`
	Mask   string `json:"mask"`
}

// Settings holds the subset of VM settings the CLI displays.
type Settings struct {
	ID  string `json:"id"`
	CPU struct {
		Processors int `json:"processors"`
	} `json:"cpu"`
	MemoryMB int `json:"memory"`
}

// ListVMs returns every VM the management server knows about.
func (c *Client) ListVMs(ctx context.Context) ([]VM, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/vms", "")
	if err != nil {
		return nil, err
	}
	var vms []VM
	if err := c.do(req, &vms); err != nil {
		return nil, err
	}
	return vms, nil
}

// VMName resolves a VM id to its derived display name. An unknown id yields
// an empty string, not an error.
func (c *Client) VMName(ctx context.Context, id string) (string, error) {
	vms, err := c.ListVMs(ctx)
	if err != nil {
		return "", err
	}
	for _, vm := range vms {
		if vm.ID == id {
			return vm.DisplayName(), nil
		}
	}
	return "", nil
}

// PowerState returns the current power state of a VM (poweredOn/poweredOff).
func (c *Client) PowerState(ctx context.Context, id string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/vms/"+url.PathEscape(id)+"/power", "")
	if err != nil {
		return "", err
	}
	var out struct {
		PowerState string `json:"power_state"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.PowerState, nil
}

// SetPower transitions a VM to the requested power action ("on" or "off").
// When the VM is already in the requested state no request is issued and
// ErrAlreadyInState is returned. On success the new power state is returned.
func (c *Client) SetPower(ctx context.Context, id, action string) (string, error) {
	if action != "on" && action != "off" {
		return "", fmt.Errorf("client: invalid power action %q", action)
	}

	// A failed pre-check falls through to the PUT, matching the flat
	// single-attempt error policy everywhere else.
	if state, err := c.PowerState(ctx, id); err == nil {
		if (action == "on" && state == PoweredOn) || (action == "off" && state == PoweredOff) {
			return state, ErrAlreadyInState
		}
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/vms/"+url.PathEscape(id)+"/power", action)
	if err != nil {
		return "", err
	}
	var out struct {
		PowerState string `json:"power_state"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.PowerState, nil
}

// IP returns the guest IP address reported by VMware Tools.
func (c *Client) IP(ctx context.Context, id string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/vms/"+url.PathEscape(id)+"/ip", "")
	if err != nil {
		return "", err
	}
	var out struct {
		IP string `json:"ip"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.IP, nil
}

// NICs returns the guest network adapters of a VM.
func (c *Client) NICs(ctx context.Context, id string) ([]NIC, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/vms/"+url.PathEscape(id)+"/nic", "")
	if err != nil {
		return nil, err
	}
	var out struct {
		NICs []NIC `json:"nics"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.NICs, nil
}

// GetSettings returns processor and memory settings for a VM.
func (c *Client) GetSettings(ctx context.Context, id string) (*Settings, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/vms/"+url.PathEscape(id), "")
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := c.do(req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Param reads a single VMX config parameter (e.g. guestOS, displayName).
func (c *Client) Param(ctx context.Context, id, name string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet,
		"/api/vms/"+url.PathEscape(id)+"/params/"+url.PathEscape(name), "")
	if err != nil {
		return "", err
	}
	var out struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

// ListNetworks returns the host virtual networks.
func (c *Client) ListNetworks(ctx context.Context) ([]Network, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/vmnet", "")
	if err != nil {
		return nil, err
	}
	var out struct {
		VMNets []Network `json:"vmnets"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.VMNets, nil
}

// newRequest builds a request carrying the vmware Accept header and basic
// auth. body is sent verbatim; the power endpoint takes the literal strings
// "on" and "off" rather than JSON.
func (c *Client) newRequest(ctx context.Context, method, p, body string) (*http.Request, error) {
	resolved := c.baseURL.ResolveReference(&url.URL{Path: p})
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), rd)
	if err != nil {
		return nil, fmt.Errorf("client: new request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	if body != "" {
		req.Header.Set("Content-Type", acceptHeader)
	}
	req.SetBasicAuth(c.username, c.password)
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"Code"`
			Message string `json:"Message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("client: http %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("client: http %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
