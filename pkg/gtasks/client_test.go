package gtasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"

	"github.com/harrisonrobin/taskcal/pkg/syncerr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, mux *http.ServeMux, list string) *Client {
	t.Helper()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	c, err := NewClient(context.Background(), list, 5*time.Second, zerolog.Nop(),
		option.WithEndpoint(ts.URL+"/"), option.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return c
}

func TestSearch_FiltersAndPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/v1/lists/@default/tasks", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("showCompleted"))
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, tasks.Tasks{
				NextPageToken: "p2",
				Items: []*tasks.Task{
					{Id: "a", Title: "Weekly MEETING Sync", Due: "2024-06-10T00:00:00.000Z", Notes: "n"},
					{Id: "b", Title: "groceries"},
					{Id: "c", Title: "meeting done", Status: "completed"},
				},
			})
			return
		}
		writeJSON(w, http.StatusOK, tasks.Tasks{Items: []*tasks.Task{
			{Id: "d", Title: "team meeting"},
			{Id: "e", Title: "old meeting", Deleted: true},
			{Id: "f", Title: "meeting with bad due", Due: "soon"},
		}})
	})
	c := newTestClient(t, mux, "")

	got, err := c.Search(context.Background(), "meeting")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "n", got[0].Notes)
	require.NotNil(t, got[0].Due)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), *got[0].Due)
	assert.Equal(t, "d", got[1].ID)
	assert.Nil(t, got[1].Due)
}

func TestSearch_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/v1/lists/@default/tasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"code": 401, "message": "Invalid Credentials"}})
	})
	c := newTestClient(t, mux, "")

	_, err := c.Search(context.Background(), "meeting")
	require.Error(t, err)
	assert.True(t, syncerr.IsConfig(err))

	var nilClient *Client
	_, err = nilClient.Search(context.Background(), "meeting")
	assert.True(t, syncerr.IsConfig(err))
}

func TestUpdateNotes_SendsEmptyNotes(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tasks.TaskLists{Items: []*tasks.TaskList{{Id: "L1", Title: "Work"}}})
	})
	mux.HandleFunc("PATCH /tasks/v1/lists/L1/tasks/t1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, tasks.Task{Id: "t1"})
	})
	mux.HandleFunc("PATCH /tasks/v1/lists/L1/tasks/broken", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"code": 500, "message": "backend"}})
	})
	c := newTestClient(t, mux, "Work")
	assert.Equal(t, "L1", c.ListID())

	require.NoError(t, c.UpdateNotes(context.Background(), "t1", ""))
	assert.Contains(t, body, "notes")
	assert.Equal(t, "", body["notes"])

	err := c.UpdateNotes(context.Background(), "broken", "x")
	require.Error(t, err)
	assert.True(t, syncerr.IsUpstream(err))
}

func TestNewClient_UnknownList(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tasks.TaskLists{})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := NewClient(context.Background(), "Nope", 0, zerolog.Nop(),
		option.WithEndpoint(ts.URL+"/"), option.WithHTTPClient(ts.Client()))

	assert.True(t, syncerr.IsConfig(err))
}
