package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

var _ ports.MachineService = (*Client)(nil)

// DefaultClientTimeout bounds a single request when the caller's context has no deadline.
const DefaultClientTimeout = 30 * time.Second

// Client is a ports.MachineService backed by the REST API served by NewHandler.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// NewClient creates a client for the machine service rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListMachines(ctx context.Context, projectPath string) ([]domain.MachineDescriptor, error) {
	path := "/machines"
	if projectPath != "" {
		path += "?project=" + url.QueryEscape(projectPath)
	}
	var machines []domain.MachineDescriptor
	if err := c.do(ctx, "list machines", "", http.MethodGet, path, nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

func (c *Client) CreateFromRecipe(ctx context.Context, recipe domain.Recipe, outputChannel string) (domain.MachineDescriptor, error) {
	var desc domain.MachineDescriptor
	body := CreateRequest{Recipe: recipe, OutputChannel: outputChannel}
	if err := c.do(ctx, "create machine", "", http.MethodPost, "/machines/recipe", body, &desc); err != nil {
		return domain.MachineDescriptor{}, err
	}
	return desc, nil
}

func (c *Client) Destroy(ctx context.Context, id domain.MachineID) error {
	return c.do(ctx, "destroy machine", id, http.MethodDelete, machinePath(id, ""), nil, nil)
}

func (c *Client) BindProject(ctx context.Context, id domain.MachineID, projectPath string) error {
	body := BindRequest{ProjectPath: projectPath}
	return c.do(ctx, "bind project", id, http.MethodPost, machinePath(id, "/bind"), body, nil)
}

func (c *Client) ExecuteCommand(ctx context.Context, id domain.MachineID, commandLine string, outputChannel string) error {
	body := ProcessRequest{CommandLine: commandLine, OutputChannel: outputChannel}
	return c.do(ctx, "execute command", id, http.MethodPost, machinePath(id, "/processes"), body, nil)
}

func machinePath(id domain.MachineID, suffix string) string {
	return "/machines/" + url.PathEscape(id.String()) + suffix
}

// do performs one request. Transport failures are returned wrapped; any
// non-2xx answer becomes a *domain.RemoteCallError.
func (c *Client) do(ctx context.Context, op string, id domain.MachineID, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.RemoteCallError{Op: op, MachineID: id, Err: decodeError(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(raw))
	}
	if body.Message == "" {
		body.Message = resp.Status
	}
	if resp.StatusCode == http.StatusNotFound {
		if detail := trimNotFound(body.Message); detail != "" {
			return fmt.Errorf("%w: %s", domain.ErrMachineNotFound, detail)
		}
		return domain.ErrMachineNotFound
	}
	return errors.New(body.Message)
}

// trimNotFound avoids repeating the sentinel text when the server already sent it.
func trimNotFound(msg string) string {
	return strings.TrimPrefix(strings.TrimPrefix(msg, domain.ErrMachineNotFound.Error()), ": ")
}
