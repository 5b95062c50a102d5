package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rackrent/internal/engine"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Company(ctx context.Context) (engine.CompanyView, error) {
	var out engine.CompanyView
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/company", nil, &out)
	return out, err
}

func (c *Client) ListRequests(ctx context.Context, state string) ([]engine.CustomerRequest, error) {
	path := "/v1/requests"
	if state != "" {
		path += "?state=" + url.QueryEscape(state)
	}
	var out struct {
		Requests []engine.CustomerRequest `json:"requests"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out)
	return out.Requests, err
}

func (c *Client) RequestDetail(ctx context.Context, id string) (engine.CustomerRequest, error) {
	var out engine.CustomerRequest
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/requests/"+url.PathEscape(id), nil, &out)
	return out, err
}

// SubmitRequestInput mirrors the POST /v1/requests body.
type SubmitRequestInput struct {
	Customer         string               `json:"customer"`
	Tier             string               `json:"tier"`
	Shape            engine.ResourceShape `json:"shape"`
	Period           string               `json:"period"`
	TermPeriods      int                  `json:"term_periods"`
	BasePriceCredits int64                `json:"base_price_credits"`
}

func (c *Client) SubmitRequest(ctx context.Context, in SubmitRequestInput) (engine.CustomerRequest, error) {
	var out engine.CustomerRequest
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/requests", in, &out)
	return out, err
}

func (c *Client) AcceptRequest(ctx context.Context, id string, provided *engine.ResourceShape, serverID string) error {
	body := map[string]any{}
	if provided != nil {
		body["provided"] = provided
	}
	if serverID != "" {
		body["server_id"] = serverID
	}
	return c.jsonRequest(ctx, http.MethodPost, "/v1/requests/"+url.PathEscape(id)+"/accept", body, nil)
}

func (c *Client) RejectRequest(ctx context.Context, id string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/requests/"+url.PathEscape(id)+"/reject", nil, nil)
}

func (c *Client) ArchiveRequest(ctx context.Context, id string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/requests/"+url.PathEscape(id)+"/archive", nil, nil)
}

func (c *Client) Capacity(ctx context.Context) ([]engine.ServerView, error) {
	var out struct {
		Servers []engine.ServerView `json:"servers"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/capacity", nil, &out)
	return out.Servers, err
}

func (c *Client) BuyServer(ctx context.Context, name string, capacity engine.ResourceShape) (engine.Server, error) {
	var out engine.Server
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/capacity/servers", map[string]any{
		"name":     name,
		"capacity": capacity,
	}, &out)
	return out, err
}

type SkillsPayload struct {
	Skills      []engine.SkillView `json:"skills"`
	SkillPoints int                `json:"skill_points"`
}

func (c *Client) Skills(ctx context.Context) (SkillsPayload, error) {
	var out SkillsPayload
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/skills", nil, &out)
	return out, err
}

func (c *Client) UpgradeSkill(ctx context.Context, category string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/v1/skills/"+url.PathEscape(category)+"/upgrade", nil, nil)
}

func (c *Client) Events(ctx context.Context) ([]engine.EventOutcome, error) {
	var out struct {
		Events []engine.EventOutcome `json:"events"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/events", nil, &out)
	return out.Events, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
