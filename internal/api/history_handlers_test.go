package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/models"
	"github.com/vrsandeep/pagesum-go/internal/testutil"
)

func register(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rr := postJSON(t, h, "/register", `{"username":"`+username+`","password":"pw"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	return decodeBody(t, rr)["token"].(string)
}

func TestAddAndViewHistory(t *testing.T) {
	server, app := testutil.SetupTestServer(t, nil)
	router := server.Router()
	alice := register(t, router, "alice")
	bob := register(t, router, "bob")

	rr := postJSON(t, router, "/add", `{"token":"`+alice+`","url":"https://a.example","title":"A","body":"text","summary":"short"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Content added successfully", decodeBody(t, rr)["message"])

	t.Run("View Own History", func(t *testing.T) {
		rr := postJSON(t, router, "/view", `{"token":"`+alice+`"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			Username string                `json:"username"`
			Content  []models.HistoryEntry `json:"content"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "alice", body.Username)
		require.Len(t, body.Content, 1)
		assert.Equal(t, "https://a.example", body.Content[0].URL)
		assert.Equal(t, "short", body.Content[0].Summary)
		require.NotNil(t, body.Content[0].UserID)
	})

	t.Run("Other User Sees Nothing", func(t *testing.T) {
		rr := postJSON(t, router, "/view", `{"token":"`+bob+`"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []any{}, decodeBody(t, rr)["content"])
	})

	t.Run("Invalid Token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, postJSON(t, router, "/add", `{"token":"nope","url":"u"}`).Code)
		assert.Equal(t, http.StatusUnauthorized, postJSON(t, router, "/view", `{"token":""}`).Code)
	})

	t.Run("Recent History", func(t *testing.T) {
		_, err := app.Store().AddHistory(nil, "https://local.example", "Local", "body", "local summary")
		require.NoError(t, err)

		req, _ := http.NewRequest("GET", "/api/history?limit=1", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		var entries []models.HistoryEntry
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, "https://local.example", entries[0].URL)
	})
}
