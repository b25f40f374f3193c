// Package tokenapi is the stateless client for the console's token API.
// Every operation is scoped by a cookie string (full session identity) and a
// user ID sent in the new-api-user header; the console needs both to tell
// apart accounts sharing infrastructure.
package tokenapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// baseHeaders mimics the console's own web client. Built once, never
// mutated; per-call headers (cookie, new-api-user) are set on the request.
var baseHeaders = map[string]string{
	"accept":             "application/json, text/plain, */*",
	"accept-language":    "zh-CN,zh;q=0.9",
	"cache-control":      "no-store",
	"dnt":                "1",
	"pragma":             "no-cache",
	"sec-ch-ua":          `"Not A(Brand";v="8", "Chromium";v="132", "Google Chrome";v="132"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
	"sec-fetch-dest":     "empty",
	"sec-fetch-mode":     "cors",
	"sec-fetch-site":     "same-origin",
	"user-agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
}

// keyPaths is the ordered list of response paths probed for the secret on
// create. The create response shape differs across console versions; first
// non-empty value wins. Revisit if the console changes its response shape.
var keyPaths = []string{"data.key", "key", "data.token", "token"}

// Client issues token lifecycle calls against one console
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient creates a client for the given console base URL
func NewClient(baseURL string, timeout time.Duration, proxy string, log *zap.Logger) (*Client, error) {
	transport := http.DefaultTransport
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		log:     log,
	}, nil
}

func (c *Client) newRequest(method, path string, cookie, userID string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("origin", c.baseURL)
	req.Header.Set("referer", c.baseURL+"/console/token")
	req.Header.Set("cookie", cookie)
	req.Header.Set("new-api-user", userID)
	return req, nil
}

// Create issues a token creation call. Success requires HTTP 200 and the
// service-level success flag. The returned Key must not be trusted: callers
// re-resolve the secret via Search.
func (c *Client) Create(cookie, userID string, reqBody CreateRequest) Result {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{Message: err.Error()}
	}

	req, err := c.newRequest(http.MethodPost, "/api/token/", cookie, userID, bytes.NewReader(payload))
	if err != nil {
		return Result{Message: err.Error()}
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 || !gjson.GetBytes(body, "success").Bool() {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
		}
		return Result{Message: msg}
	}

	var key string
	for _, path := range keyPaths {
		if v := gjson.GetBytes(body, path).String(); v != "" {
			key = v
			break
		}
	}
	if key == "" {
		c.log.Debug("create response carried no key", zap.ByteString("body", body[:min(len(body), 300)]))
	}

	return Result{Success: true, Key: key}
}

// Search queries tokens by keyword and returns a name→key mapping with the
// scheme marker prepended. Any failure yields an empty map, never an error:
// key resolution is best-effort and the caller retains unresolved names.
func (c *Client) Search(cookie, userID, keyword string) map[string]string {
	req, err := c.newRequest(http.MethodGet, "/api/token/search", cookie, userID, nil)
	if err != nil {
		return map[string]string{}
	}
	q := req.URL.Query()
	q.Set("keyword", keyword)
	q.Set("token", "")
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("token search failed", zap.Error(err))
		return map[string]string{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return map[string]string{}
	}

	body, _ := io.ReadAll(resp.Body)
	if !gjson.GetBytes(body, "success").Bool() {
		return map[string]string{}
	}

	keys := map[string]string{}
	gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
		name := item.Get("name").String()
		key := item.Get("key").String()
		if name != "" && key != "" {
			keys[name] = KeyPrefix + key
		}
		return true
	})
	return keys
}

// List fetches a single page of tokens. Returns an empty slice on any
// failure; pagination termination is the caller's concern.
func (c *Client) List(cookie, userID string, page, size int) []RemoteToken {
	req, err := c.newRequest(http.MethodGet, "/api/token/", cookie, userID, nil)
	if err != nil {
		return nil
	}
	q := req.URL.Query()
	q.Set("p", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("token list failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	if !gjson.GetBytes(body, "success").Bool() {
		return nil
	}

	var tokens []RemoteToken
	gjson.GetBytes(body, "data").ForEach(func(_, item gjson.Result) bool {
		tokens = append(tokens, RemoteToken{
			ID:   item.Get("id").Int(),
			Name: item.Get("name").String(),
			Key:  item.Get("key").String(),
		})
		return true
	})
	return tokens
}

// Delete removes a token by ID
func (c *Client) Delete(cookie, userID string, tokenID int64) Result {
	req, err := c.newRequest(http.MethodDelete, fmt.Sprintf("/api/token/%d", tokenID), cookie, userID, nil)
	if err != nil {
		return Result{TokenID: tokenID, Message: err.Error()}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{TokenID: tokenID, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != 200 || !gjson.GetBytes(body, "success").Bool() {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(body, 200))
		}
		return Result{TokenID: tokenID, Message: msg}
	}

	return Result{Success: true, TokenID: tokenID}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
