package tokenapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL, 5*time.Second, "", zap.NewNop())
	require.NoError(t, err)
	return client, srv
}

func TestCreateSuccess(t *testing.T) {
	var gotMethod, gotPath, gotCookie, gotUser, gotContentType string
	var gotBody map[string]any

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotCookie = r.Header.Get("cookie")
		gotUser = r.Header.Get("new-api-user")
		gotContentType = r.Header.Get("content-type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Write([]byte(`{"success": true, "data": {"key": "rawsecret"}}`))
	})

	res := client.Create("session=abc", "42", CreateRequest{
		Name:           "batchA_x1y2z3w4",
		RemainQuota:    500000,
		ExpiredTime:    -1,
		UnlimitedQuota: true,
	})

	require.True(t, res.Success)
	assert.Equal(t, "rawsecret", res.Key)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/token/", gotPath)
	assert.Equal(t, "session=abc", gotCookie)
	assert.Equal(t, "42", gotUser)
	assert.Equal(t, "application/json", gotContentType)

	assert.Equal(t, "batchA_x1y2z3w4", gotBody["name"])
	assert.Equal(t, float64(500000), gotBody["remain_quota"])
	assert.Equal(t, float64(-1), gotBody["expired_time"])
	assert.Equal(t, true, gotBody["unlimited_quota"])
	// Every defaulted field is still serialized.
	for _, field := range []string{"model_limits_enabled", "model_limits", "allow_ips", "group"} {
		assert.Contains(t, gotBody, field)
	}
}

func TestCreateKeyProbing(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"data.key", `{"success": true, "data": {"key": "k1"}}`, "k1"},
		{"top-level key", `{"success": true, "key": "k2"}`, "k2"},
		{"data.token", `{"success": true, "data": {"token": "k3"}}`, "k3"},
		{"top-level token", `{"success": true, "token": "k4"}`, "k4"},
		{"first non-empty wins", `{"success": true, "key": "k5", "token": "k6"}`, "k5"},
		{"no key anywhere", `{"success": true, "data": {}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})

			res := client.Create("c", "1", CreateRequest{Name: "n"})
			require.True(t, res.Success)
			assert.Equal(t, tt.want, res.Key)
		})
	}
}

func TestCreateFailure(t *testing.T) {
	t.Run("service-level failure carries message", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": false, "message": "quota exceeded"}`))
		})

		res := client.Create("c", "1", CreateRequest{Name: "n"})
		assert.False(t, res.Success)
		assert.Equal(t, "quota exceeded", res.Message)
	})

	t.Run("non-200 carries raw body", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("blocked by waf"))
		})

		res := client.Create("c", "1", CreateRequest{Name: "n"})
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "403")
		assert.Contains(t, res.Message, "blocked by waf")
	})

	t.Run("transport error never raises", func(t *testing.T) {
		client, err := NewClient("http://127.0.0.1:1", time.Second, "", zap.NewNop())
		require.NoError(t, err)

		res := client.Create("c", "1", CreateRequest{Name: "n"})
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Message)
	})
}

func TestSearch(t *testing.T) {
	var gotKeyword, gotToken string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/token/search", r.URL.Path)
		gotKeyword = r.URL.Query().Get("keyword")
		gotToken = r.URL.Query().Get("token")
		w.Write([]byte(`{"success": true, "data": [
			{"name": "batchA_aaaa1111", "key": "s1"},
			{"name": "batchA_bbbb2222", "key": "s2"},
			{"name": "", "key": "dropme"},
			{"name": "noname", "key": ""}
		]}`))
	})

	keys := client.Search("c", "1", "batchA")

	assert.Equal(t, "batchA", gotKeyword)
	assert.Equal(t, "", gotToken)
	assert.Equal(t, map[string]string{
		"batchA_aaaa1111": "sk-s1",
		"batchA_bbbb2222": "sk-s2",
	}, keys)
}

func TestSearchSoftFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }},
		{"service failure", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"success": false}`)) }},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			assert.Empty(t, client.Search("c", "1", "kw"))
		})
	}
}

func TestList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/token/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("p"))
		assert.Equal(t, "100", r.URL.Query().Get("size"))
		w.Write([]byte(`{"success": true, "data": [
			{"id": 1, "name": "a_x", "key": "k1"},
			{"id": 2, "name": "b_y", "key": "k2"}
		]}`))
	})

	tokens := client.List("c", "1", 2, 100)
	require.Len(t, tokens, 2)
	assert.Equal(t, RemoteToken{ID: 1, Name: "a_x", Key: "k1"}, tokens[0])
	assert.Equal(t, RemoteToken{ID: 2, Name: "b_y", Key: "k2"}, tokens[1])
}

func TestListSoftFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.Empty(t, client.List("c", "1", 0, 100))
}

func TestDelete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/token/37", r.URL.Path)
			w.Write([]byte(`{"success": true}`))
		})

		res := client.Delete("c", "1", 37)
		assert.True(t, res.Success)
		assert.Equal(t, int64(37), res.TokenID)
	})

	t.Run("failure carries id and message", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success": false, "message": "not found"}`))
		})

		res := client.Delete("c", "1", 99)
		assert.False(t, res.Success)
		assert.Equal(t, int64(99), res.TokenID)
		assert.Equal(t, "not found", res.Message)
	})
}
