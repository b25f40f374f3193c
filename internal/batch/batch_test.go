package batch

import (
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"tokenctl/config"
	"tokenctl/internal/tokenapi"
	"tokenctl/internal/waf"
)

// fakeClient records every call and serves canned responses
type fakeClient struct {
	createCalls []createCall
	searchCalls []searchCall
	deleteCalls []int64
	listCalls   int

	failCreates map[string]string // name -> error message
	searchKeys  map[string]string // name -> key
	listPages   [][]tokenapi.RemoteToken
	failDeletes map[int64]string // id -> error message
}

type createCall struct {
	cookie string
	userID string
	req    tokenapi.CreateRequest
}

type searchCall struct {
	cookie  string
	userID  string
	keyword string
}

func (f *fakeClient) Create(cookie, userID string, req tokenapi.CreateRequest) tokenapi.Result {
	f.createCalls = append(f.createCalls, createCall{cookie, userID, req})
	if msg, ok := f.failCreates[req.Name]; ok {
		return tokenapi.Result{Message: msg}
	}
	return tokenapi.Result{Success: true}
}

func (f *fakeClient) Search(cookie, userID, keyword string) map[string]string {
	f.searchCalls = append(f.searchCalls, searchCall{cookie, userID, keyword})
	return f.searchKeys
}

func (f *fakeClient) List(cookie, userID string, page, size int) []tokenapi.RemoteToken {
	f.listCalls++
	if page >= len(f.listPages) {
		return nil
	}
	return f.listPages[page]
}

func (f *fakeClient) Delete(cookie, userID string, tokenID int64) tokenapi.Result {
	f.deleteCalls = append(f.deleteCalls, tokenID)
	if msg, ok := f.failDeletes[tokenID]; ok {
		return tokenapi.Result{TokenID: tokenID, Message: msg}
	}
	return tokenapi.Result{TokenID: tokenID, Success: true}
}

// fakeRecorder captures ledger writes
type fakeRecorder struct {
	tokens    []string // "userID/name/key"
	resolved  []string
	deletions []int64
}

func (f *fakeRecorder) RecordToken(runID, userID, name, key string) error {
	f.tokens = append(f.tokens, fmt.Sprintf("%s/%s/%s", userID, name, key))
	return nil
}

func (f *fakeRecorder) ResolveKey(userID, name, key string) (int64, error) {
	f.resolved = append(f.resolved, fmt.Sprintf("%s/%s/%s", userID, name, key))
	return 1, nil
}

func (f *fakeRecorder) RecordDeletion(runID, userID string, tokenID int64, name string) error {
	f.deletions = append(f.deletions, tokenID)
	return nil
}

var tokenNameRe = regexp.MustCompile(`^batchA_[a-z0-9]{8}$`)

func newTestRunner(client Client, barrier waf.CookieSet, defaults config.BatchConfig) (*Runner, *[]time.Duration) {
	r := NewRunner(client, barrier, defaults, config.TokenConfig{RemainQuota: 500000, ExpiredTime: -1, UnlimitedQuota: true}, "", "run-1", nil, zap.NewNop())
	var sleeps []time.Duration
	r.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return r, &sleeps
}
