package source

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseFile reads account records from a local file. Grammars tried in
// order: whole file as a JSON array or object; then line by line, each
// non-empty non-comment line as a JSON object, a cookie|user_id|prefix|count
// record, or a bare cookie string.
func ParseFile(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read account file: %w", err)
	}

	content := strings.TrimSpace(string(data))

	if root := gjson.Parse(content); root.IsArray() || root.IsObject() {
		if gjson.Valid(content) {
			return fromJSON(root), nil
		}
	}

	var accounts []Account
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if gjson.Valid(line) {
			if obj := gjson.Parse(line); obj.IsObject() {
				accounts = append(accounts, fromObject(obj))
				continue
			}
		}

		if strings.Contains(line, "|") {
			accounts = append(accounts, fromDelimited(line))
			continue
		}

		accounts = append(accounts, Account{Cookie: line})
	}

	return accounts, nil
}

func fromJSON(root gjson.Result) []Account {
	if root.IsObject() {
		return []Account{fromObject(root)}
	}
	var accounts []Account
	root.ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			accounts = append(accounts, fromObject(item))
		}
		return true
	})
	return accounts
}

// fromObject lifts an account from a JSON object. user_id may arrive as a
// number or a string; both are accepted.
func fromObject(obj gjson.Result) Account {
	return Account{
		Cookie: obj.Get("cookie").String(),
		UserID: obj.Get("user_id").String(),
		Prefix: obj.Get("prefix").String(),
		Count:  int(obj.Get("count").Int()),
		Name:   obj.Get("name").String(),
	}
}

// fromDelimited parses cookie|user_id|prefix|count with trailing fields
// optional.
func fromDelimited(line string) Account {
	parts := strings.Split(line, "|")
	a := Account{Cookie: parts[0]}
	if len(parts) > 1 {
		a.UserID = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		a.Prefix = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		if n, err := strconv.Atoi(strings.TrimSpace(parts[3])); err == nil {
			a.Count = n
		}
	}
	return a
}
