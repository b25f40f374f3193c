package tokenapi

import "tokenctl/config"

// KeyPrefix is the scheme marker prepended to raw secret material returned
// by the search endpoint before it is handed to anything outside the client.
const KeyPrefix = "sk-"

// CreateRequest is the body of a token creation call
type CreateRequest struct {
	Name               string `json:"name"`
	RemainQuota        int64  `json:"remain_quota"`
	ExpiredTime        int64  `json:"expired_time"`
	UnlimitedQuota     bool   `json:"unlimited_quota"`
	ModelLimitsEnabled bool   `json:"model_limits_enabled"`
	ModelLimits        string `json:"model_limits"`
	AllowIPs           string `json:"allow_ips"`
	Group              string `json:"group"`
}

// NewCreateRequest builds a creation body from the run-wide token defaults
func NewCreateRequest(name string, t config.TokenConfig) CreateRequest {
	return CreateRequest{
		Name:               name,
		RemainQuota:        t.RemainQuota,
		ExpiredTime:        t.ExpiredTime,
		UnlimitedQuota:     t.UnlimitedQuota,
		ModelLimitsEnabled: t.ModelLimitsEnabled,
		ModelLimits:        t.ModelLimits,
		AllowIPs:           t.AllowIPs,
		Group:              t.Group,
	}
}

// RemoteToken is a token as known to the console; ID is the authoritative
// identity for deletion.
type RemoteToken struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Result is the outcome of a single create or delete call. The client never
// returns errors for per-call failures; callers read Success and Message.
type Result struct {
	Success bool
	Key     string // create only; unreliable, resolve via Search
	TokenID int64  // delete only
	Message string
}
