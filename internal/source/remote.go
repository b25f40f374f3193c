package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"tokenctl/config"
)

// FetchRemote pulls account records from the cookie listing service. Entries
// whose detection status is error/failed are skipped; the rest are joined
// into cookie strings with the user ID lifted from local storage data when
// present. Any transport or decode failure is fatal for the run.
func FetchRemote(ctx context.Context, cfg config.ListingConfig, bearer string, log *zap.Logger) ([]Account, error) {
	client := &http.Client{Timeout: 30 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	q := req.URL.Query()
	q.Set("include_values", "true")
	q.Set("domain", cfg.Domain)
	q.Set("page", "1")
	q.Set("per_page", strconv.Itoa(cfg.PerPage))
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cookie listing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cookie listing failed: %d - %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cookie listing: %w", err)
	}

	return parseListing(body, log), nil
}

// parseListing accepts either a top-level array or an object wrapping the
// entries under data or cookies.
func parseListing(body []byte, log *zap.Logger) []Account {
	root := gjson.ParseBytes(body)
	entries := root
	if !root.IsArray() {
		if data := root.Get("data"); data.Exists() {
			entries = data
		} else {
			entries = root.Get("cookies")
		}
	}

	var accounts []Account
	entries.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}

		name := item.Get("custom_name").String()
		if name == "" {
			name = "unknown"
		}

		status := item.Get("detection_status").String()
		if status == "error" || status == "failed" {
			log.Info("skipping stale cookie entry", zap.String("name", name), zap.String("status", status))
			return true
		}

		cookie := joinCookiePairs(item.Get("cookies_data"))
		if cookie == "" {
			return true
		}

		userID := item.Get("local_storage_data.user.id").String()
		if userID != "" {
			log.Info("found account", zap.String("name", name), zap.String("user_id", userID))
		} else {
			log.Info("found account without user id", zap.String("name", name))
		}

		accounts = append(accounts, Account{Cookie: cookie, UserID: userID, Name: name})
		return true
	})

	return accounts
}

func joinCookiePairs(list gjson.Result) string {
	var cookie string
	list.ForEach(func(_, c gjson.Result) bool {
		name := c.Get("name").String()
		value := c.Get("value").String()
		if name == "" || value == "" {
			return true
		}
		if cookie != "" {
			cookie += "; "
		}
		cookie += name + "=" + value
		return true
	})
	return cookie
}
