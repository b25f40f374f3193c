// Package source normalizes heterogeneous account input (a remote cookie
// listing service or a local file) into a uniform sequence of account
// records.
package source

// Account is one tenant's session material plus optional per-account batch
// overrides. Zero values mean "absent"; the orchestrator resolves absent
// fields against run-wide defaults.
type Account struct {
	Cookie string `json:"cookie"`
	UserID string `json:"user_id"`
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`
	Name   string `json:"name"` // listing custom_name, for log lines only
}
