package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenctl/config"
	"tokenctl/internal/report"
	"tokenctl/internal/source"
	"tokenctl/internal/waf"
)

func TestResolvePendingNames(t *testing.T) {
	client := &fakeClient{searchKeys: map[string]string{
		"batchA_aaaaaaaa": "sk-one",
		"batchA_bbbbbbbb": "sk-two",
	}}
	rec := &fakeRecorder{}
	runner, _ := newTestRunner(client, waf.CookieSet{}, config.BatchConfig{Prefix: "batchA"})
	runner.recorder = rec
	collector := report.NewCollector()

	pending := map[string][]string{
		"42": {"batchA_aaaaaaaa", "batchA_bbbbbbbb", "batchA_cccccccc"},
	}
	runner.ResolveAll(account, pending, collector)

	require.Len(t, client.searchCalls, 1)
	assert.Equal(t, "batchA", client.searchCalls[0].keyword)

	assert.ElementsMatch(t, []string{"sk-one", "sk-two"}, collector.ValidKeys())
	assert.ElementsMatch(t, []string{"42/batchA_aaaaaaaa/sk-one", "42/batchA_bbbbbbbb/sk-two"}, rec.resolved)

	require.Len(t, collector.Tallies(), 1)
	assert.Equal(t, 2, collector.Tallies()[0].Succeeded)
	assert.Equal(t, 1, collector.Tallies()[0].Failed)
}

func TestResolveSingleDefaultName(t *testing.T) {
	client := &fakeClient{searchKeys: map[string]string{"default": "sk-solo"}}
	runner, _ := newTestRunner(client, waf.CookieSet{}, config.BatchConfig{Prefix: "batchA"})
	collector := report.NewCollector()

	runner.ResolveAll(account, map[string][]string{"42": {"default"}}, collector)

	require.Len(t, client.searchCalls, 1)
	assert.Equal(t, "default", client.searchCalls[0].keyword)
	assert.Equal(t, []string{"sk-solo"}, collector.ValidKeys())
}

func TestResolveSkipsAccountsWithNothingPending(t *testing.T) {
	client := &fakeClient{}
	runner, _ := newTestRunner(client, waf.CookieSet{}, config.BatchConfig{})
	collector := report.NewCollector()

	accounts := []source.Account{{Cookie: "sess=abc", UserID: "7"}}
	runner.ResolveAll(accounts, map[string][]string{"42": {"x"}}, collector)

	assert.Empty(t, client.searchCalls)
	assert.Empty(t, collector.Tallies())
}
