// Package roomapi is a typed client for the auth and room HTTP service.
package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

const maxResponseBytes = 1 << 20

// User is a room member or a freshly registered account.
type User struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Client talks to the room service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient = &http.Client{Timeout: d} }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL, e.g. "http://localhost:3005/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().Str("component", "roomapi").Logger()
	return c
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// Register creates an account. An empty role defaults to "user".
func (c *Client) Register(ctx context.Context, username, password, role string) (*User, error) {
	if role == "" {
		role = "user"
	}
	var out User
	if err := c.do(ctx, http.MethodPost, "/register", credentials{username, password, role}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for an identity.
func (c *Client) Login(ctx context.Context, username, password string) (*protocol.Identity, error) {
	var out protocol.Identity
	if err := c.do(ctx, http.MethodPost, "/login", credentials{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]protocol.Room, error) {
	var out struct {
		Rooms []protocol.Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// CreateRoom creates a room owned by userID.
func (c *Client) CreateRoom(ctx context.Context, name string, userID int64) (*protocol.Room, error) {
	in := struct {
		RoomName string `json:"room_name"`
		UserID   int64  `json:"user_id"`
	}{name, userID}

	var out protocol.Room
	if err := c.do(ctx, http.MethodPost, "/rooms/create", in, &out); err != nil {
		return nil, err
	}
	if out.CreatedBy == nil {
		out.CreatedBy = &userID
	}
	return &out, nil
}

// JoinRoom registers userID as a member of roomID.
func (c *Client) JoinRoom(ctx context.Context, roomID, userID int64) error {
	in := struct {
		UserID int64 `json:"user_id"`
	}{userID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/join", roomID), in, nil)
}

func (c *Client) RoomUsers(ctx context.Context, roomID int64) ([]User, error) {
	var out struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%d/users", roomID), nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// envelope is the part every response shares.
type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorCode *int   `json:"error_code"`
}

// do performs one request. A non-2xx status or a status other than
// "success" comes back as *ServiceError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s", method, path)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "read %s %s", method, path)
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("room service call")

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	failed := resp.StatusCode < 200 || resp.StatusCode > 299
	if decodeErr == nil && env.Status != "" && env.Status != "success" {
		failed = true
	}
	if failed {
		se := &ServiceError{StatusCode: resp.StatusCode, Message: env.Message}
		if env.ErrorCode != nil {
			se.Code = *env.ErrorCode
		}
		if decodeErr != nil {
			se.Message = strings.TrimSpace(string(raw))
		}
		return se
	}

	if decodeErr != nil {
		return errors.Wrapf(decodeErr, "decode %s %s", method, path)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrapf(err, "decode %s %s", method, path)
		}
	}
	return nil
}
