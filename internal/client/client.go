// Package client talks to a running dquery server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AvengeMedia/dankquery/internal/engine"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
)

// ErrNotRunning reports that no server answered at the configured address.
var ErrNotRunning = errors.New("service not running")

type Client struct {
	base string
	http *http.Client
}

// New returns a client for listenAddr, which may be a bare ":port".
func New(listenAddr string) *Client {
	host := listenAddr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return &Client{
		base: strings.TrimRight(host, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *apiError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return ErrNotRunning
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode, Title: resp.Status}
		json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Ping reports whether the server answers its health check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ErrNotRunning
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrNotRunning
	}
	return nil
}

func (c *Client) Search(ctx context.Context, r engine.Request) (*engine.Response, error) {
	q := url.Values{}
	q.Set("type", r.Type)
	if r.Query != "" {
		q.Set("q", r.Query)
	}
	for _, w := range r.Where {
		q.Add("where", w)
	}
	for _, rg := range r.Ranges {
		q.Add("range", rg)
	}
	for _, o := range r.Order {
		q.Add("order", o)
	}
	if len(r.Fields) > 0 {
		q.Set("fields", strings.Join(r.Fields, ","))
	}
	for _, a := range r.SearchAfter {
		q.Add("after", a)
	}
	if r.Limit > 0 {
		q.Set("limit", strconv.Itoa(r.Limit))
	}
	if r.Offset > 0 {
		q.Set("offset", strconv.Itoa(r.Offset))
	}
	if r.TermVectors {
		q.Set("vectors", "true")
	}

	var res engine.Response
	if err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type TypesResult struct {
	Types     []string `json:"types"`
	Documents uint64   `json:"documents"`
}

func (c *Client) Types(ctx context.Context) (*TypesResult, error) {
	var res TypesResult
	if err := c.do(ctx, http.MethodGet, "/types", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Mapping(ctx context.Context, typeName string) (*engine.TypeInfo, error) {
	var info engine.TypeInfo
	if err := c.do(ctx, http.MethodGet, "/types/"+url.PathEscape(typeName)+"/mapping", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Index(ctx context.Context, typeName string, records []fieldmap.Record) (int, error) {
	body := map[string]any{"records": records}
	var res struct {
		Indexed int `json:"indexed"`
	}
	if err := c.do(ctx, http.MethodPost, "/types/"+url.PathEscape(typeName)+"/documents", body, &res); err != nil {
		return 0, err
	}
	return res.Indexed, nil
}

func (c *Client) Delete(ctx context.Context, typeName, id string) error {
	return c.do(ctx, http.MethodDelete, "/types/"+url.PathEscape(typeName)+"/documents/"+url.PathEscape(id), nil, nil)
}

func (c *Client) status(ctx context.Context, method, path string) (string, error) {
	var res struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, method, path, nil, &res); err != nil {
		return "", err
	}
	return res.Status, nil
}

func (c *Client) Reload(ctx context.Context) (string, error) {
	return c.status(ctx, http.MethodPost, "/schema/reload")
}

func (c *Client) WatchStatus(ctx context.Context) (string, error) {
	return c.status(ctx, http.MethodGet, "/watch/status")
}

func (c *Client) WatchStart(ctx context.Context) (string, error) {
	return c.status(ctx, http.MethodPost, "/watch/start")
}

func (c *Client) WatchStop(ctx context.Context) (string, error) {
	return c.status(ctx, http.MethodPost, "/watch/stop")
}
