package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nolancloud/ncp/internal/domain"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const applicationJSON = "application/json"

// Client talks to the docker engine REST API. The engine is the
// authoritative source of container state; 404 responses map to
// NotFoundError, 409 to ConflictError, transport failures to
// RuntimeUnavailableError.
type Client struct {
	base string
	http *retryablehttp.Client
}

// NewClient builds a client for host, which is either a unix socket path
// (optionally with a unix:// scheme) or a tcp://, http:// or https:// URL.
func NewClient(host string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil

	base := "http://docker"
	transport := &http.Transport{}
	switch {
	case strings.HasPrefix(host, "tcp://"):
		base = "http://" + strings.TrimPrefix(host, "tcp://")
	case strings.HasPrefix(host, "http://"), strings.HasPrefix(host, "https://"):
		base = host
	default:
		socket := strings.TrimPrefix(host, "unix://")
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, "unix", socket)
		}
	}
	rc.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}

	return &Client{base: strings.TrimRight(base, "/"), http: rc}
}

type containerJSON struct {
	ID      string   `json:"Id"`
	Names   []string `json:"Names"`
	Image   string   `json:"Image"`
	Status  string   `json:"Status"`
	State   string   `json:"State"`
	Created int64    `json:"Created"`
}

type inspectJSON struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	State struct {
		Status  string `json:"Status"`
		Running bool   `json:"Running"`
	} `json:"State"`
}

type createJSON struct {
	ID       string   `json:"Id"`
	Warnings []string `json:"Warnings"`
}

func (c *Client) List(ctx context.Context, all bool) ([]domain.RuntimeContainer, error) {
	path := "/containers/json"
	if all {
		path += "?all=1"
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "container listing"); err != nil {
		return nil, err
	}

	var raw []containerJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, domainerrors.RuntimeUnavailableError{Err: fmt.Errorf("decode listing: %w", err)}
	}

	out := make([]domain.RuntimeContainer, 0, len(raw))
	for _, entry := range raw {
		out = append(out, domain.RuntimeContainer{
			ID:      entry.ID,
			Names:   entry.Names,
			Image:   entry.Image,
			Status:  entry.Status,
			State:   entry.State,
			Created: time.Unix(entry.Created, 0).UTC(),
		})
	}
	return out, nil
}

func (c *Client) Inspect(ctx context.Context, id string) (*domain.RuntimeState, error) {
	resp, err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(id)+"/json", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "container"); err != nil {
		return nil, err
	}

	var raw inspectJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, domainerrors.RuntimeUnavailableError{Err: fmt.Errorf("decode inspect: %w", err)}
	}
	return &domain.RuntimeState{Status: raw.State.Status, Running: raw.State.Running}, nil
}

func (c *Client) Create(ctx context.Context, spec domain.CreateSpec) (*domain.CreatedResource, error) {
	path := "/containers/create"
	if spec.Name != "" {
		path += "?name=" + url.QueryEscape(spec.Name)
	}
	body := map[string]any{"Image": spec.Image}
	if len(spec.Cmd) > 0 {
		body["Cmd"] = spec.Cmd
	}

	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "image "+spec.Image); err != nil {
		return nil, err
	}

	var created createJSON
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, domainerrors.RuntimeUnavailableError{Err: fmt.Errorf("decode create: %w", err)}
	}

	// The create response carries no name; inspect for the one the
	// engine assigned.
	name := spec.Name
	if name == "" {
		if inspected, err := c.inspectName(ctx, created.ID); err == nil {
			name = inspected
		}
	}
	return &domain.CreatedResource{ID: created.ID, Name: name}, nil
}

func (c *Client) inspectName(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(id)+"/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "container"); err != nil {
		return "", err
	}
	var raw inspectJSON
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	return strings.TrimPrefix(raw.Name, "/"), nil
}

func (c *Client) Start(ctx context.Context, id string) error {
	return c.command(ctx, id, "start")
}

func (c *Client) Stop(ctx context.Context, id string) error {
	return c.command(ctx, id, "stop")
}

func (c *Client) Restart(ctx context.Context, id string) error {
	return c.command(ctx, id, "restart")
}

func (c *Client) command(ctx context.Context, id, action string) error {
	resp, err := c.do(ctx, http.MethodPost, "/containers/"+url.PathEscape(id)+"/"+action, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "container")
}

func (c *Client) Remove(ctx context.Context, id string, force bool) error {
	path := "/containers/" + url.PathEscape(id)
	if force {
		path += "?force=1"
	}
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp, "container")
}

func (c *Client) Stats(ctx context.Context, id string) (domain.StatsSnapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(id)+"/stats?stream=false", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, "container"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.RuntimeUnavailableError{Err: fmt.Errorf("read stats: %w", err)}
	}
	return domain.StatsSnapshot(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", applicationJSON)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domainerrors.RuntimeUnavailableError{Err: err}
	}
	return resp, nil
}

// checkStatus maps engine responses to the error taxonomy. 304 means the
// container was already in the requested state and counts as success.
func checkStatus(resp *http.Response, resource string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusNotModified:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return domainerrors.NotFoundError{Resource: resource}
	case resp.StatusCode == http.StatusConflict:
		return domainerrors.ConflictError{Reason: engineMessage(resp)}
	default:
		return domainerrors.RuntimeUnavailableError{
			Err: fmt.Errorf("docker: %s: %s", resp.Status, engineMessage(resp)),
		}
	}
}

func engineMessage(resp *http.Response) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return resp.Status
	}
	return body.Message
}
