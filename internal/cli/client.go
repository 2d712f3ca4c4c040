package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"refgrow/internal/referral"
)

// ErrUnauthorized is returned when the admin API rejects the credentials.
var ErrUnauthorized = errors.New("admin api rejected credentials")

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// Profile is one participant as the admin API reports it.
type Profile struct {
	referral.Participant
	Link      string     `json:"link"`
	InvitedBy *int64     `json:"invited_by,omitempty"`
	JoinedAt  *time.Time `json:"joined_at,omitempty"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Leaderboard(ctx context.Context, creds Credentials, limit int) ([]referral.LeaderboardRow, error) {
	path := "/v1/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Rows []referral.LeaderboardRow `json:"rows"`
	}
	if err := c.getJSON(ctx, path, creds, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (c *Client) Participants(ctx context.Context, creds Credentials) ([]Profile, error) {
	var out struct {
		Participants []Profile `json:"participants"`
	}
	if err := c.getJSON(ctx, "/v1/participants", creds, &out); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

func (c *Client) Participant(ctx context.Context, creds Credentials, id int64) (Profile, error) {
	var out Profile
	err := c.getJSON(ctx, "/v1/participants/"+strconv.FormatInt(id, 10), creds, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, creds Credentials, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if creds.User != "" {
		req.SetBasicAuth(creds.User, creds.Password)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, apiErrorMessage(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiErrorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
