package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat-realtime-api/internal/models"

	"github.com/pkg/errors"
)

// Session is what signup and login return.
type Session struct {
	Token      string `json:"token"`
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// StatusError is a non-2xx REST response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// APIClient talks to the REST surface. Signup or Login stores the token used
// by every later call.
type APIClient struct {
	base *url.URL
	http *http.Client

	mu    sync.RWMutex
	token string
}

func NewAPIClient(serverURL string, timeout time.Duration) (*APIClient, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse server url")
	}
	return &APIClient{
		base: base,
		http: &http.Client{Timeout: timeout},
	}, nil
}

// ServerURL returns the base URL the client was built with.
func (c *APIClient) ServerURL() string {
	return c.base.String()
}

// Token returns the current bearer token, empty before login.
func (c *APIClient) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *APIClient) Signup(ctx context.Context, fullName, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"fullName": fullName, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", body, &s); err != nil {
		return Session{}, errors.Wrap(err, "signup")
	}
	c.setToken(s.Token)
	return s, nil
}

func (c *APIClient) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &s); err != nil {
		return Session{}, errors.Wrap(err, "login")
	}
	c.setToken(s.Token)
	return s, nil
}

// Users lists every other user's profile.
func (c *APIClient) Users(ctx context.Context) ([]models.Profile, error) {
	var users []models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// Messages returns the conversation with partner, oldest first.
func (c *APIClient) Messages(ctx context.Context, partner string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(partner), nil, &msgs); err != nil {
		return nil, errors.Wrapf(err, "fetch messages with %s", partner)
	}
	return msgs, nil
}

// SendMessage persists a message and returns the stored record.
func (c *APIClient) SendMessage(ctx context.Context, receiver, text, image string) (models.Message, error) {
	var msg models.Message
	body := map[string]string{"text": text, "image": image}
	if err := c.do(ctx, http.MethodPost, "/api/messages/send/"+url.PathEscape(receiver), body, &msg); err != nil {
		return models.Message{}, errors.Wrapf(err, "send message to %s", receiver)
	}
	return msg, nil
}

func (c *APIClient) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}
