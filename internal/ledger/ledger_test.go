package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunLifecycle(t *testing.T) {
	l := openTestLedger(t)

	runID, err := l.BeginRun("create")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	otherID, err := l.BeginRun("delete")
	require.NoError(t, err)
	assert.NotEqual(t, runID, otherID)

	require.NoError(t, l.FinishRun(runID, 2, 5, 1))
}

func TestTokenResolveRoundtrip(t *testing.T) {
	l := openTestLedger(t)

	runID, err := l.BeginRun("create")
	require.NoError(t, err)

	require.NoError(t, l.RecordToken(runID, "42", "batchA_aaaaaaaa", ""))
	require.NoError(t, l.RecordToken(runID, "42", "batchA_bbbbbbbb", "sk-known"))
	require.NoError(t, l.RecordToken(runID, "7", "default", ""))

	entries, err := l.Unresolved("")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "batchA_aaaaaaaa", entries[0].Name)
	assert.Equal(t, "default", entries[1].Name)

	entries, err = l.Unresolved("42")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "42", entries[0].UserID)

	n, err := l.ResolveKey("42", "batchA_aaaaaaaa", "sk-late")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Already-resolved rows are left alone.
	n, err = l.ResolveKey("42", "batchA_bbbbbbbb", "sk-overwrite")
	require.NoError(t, err)
	assert.Zero(t, n)

	entries, err = l.Unresolved("42")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordDeletion(t *testing.T) {
	l := openTestLedger(t)

	runID, err := l.BeginRun("delete")
	require.NoError(t, err)

	require.NoError(t, l.RecordDeletion(runID, "42", 37, "a_x"))
	require.NoError(t, l.RecordDeletion(runID, "42", 38, "(id only)"))
}
