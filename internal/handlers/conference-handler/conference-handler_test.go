package conference_handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenn00/conference-system/internal/handlers"
	"github.com/xenn00/conference-system/internal/middleware"
	"github.com/xenn00/conference-system/internal/queue"
	conference_repo "github.com/xenn00/conference-system/internal/repo/conference"
	message_repo "github.com/xenn00/conference-system/internal/repo/message"
	conference_service "github.com/xenn00/conference-system/internal/use-case/conference-case"
	"github.com/xenn00/conference-system/state"
)

type recordingProducer struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func (p *recordingProducer) Enqueue(_ context.Context, job queue.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, j := range p.jobs {
		out = append(out, j.Type)
	}
	return out
}

// fakeAuth trusts the X-User header so tests skip token minting.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get("X-User"); user != "" {
			r = r.WithContext(context.WithValue(r.Context(), middleware.UserClaimsKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(t *testing.T) (http.Handler, *recordingProducer) {
	t.Helper()
	db, sqlDB, err := state.InitSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, state.Migrate(db))

	appState := &state.AppState{DB: db}
	svc := &conference_service.ConferenceService{
		Repo:     conference_repo.NewConferenceRepo(appState),
		Messages: message_repo.NewSQLMessageRepo(appState),
		Now:      func() time.Time { return time.Now().UTC() },
	}
	producer := &recordingProducer{}
	h := NewConferenceHandler(svc, producer)

	r := chi.NewRouter()
	r.Use(middleware.WithRequestId)
	r.Use(fakeAuth)
	r.Get("/api/v1/conferences/link/{link}", handlers.WrapHandler(h.GetConferenceByLink))
	r.Post("/api/v1/conferences", handlers.WrapHandler(h.CreateConference))
	r.Route("/api/v1/conferences/{conferenceId}", func(r chi.Router) {
		r.Get("/", handlers.WrapHandler(h.GetConference))
		r.Post("/join", handlers.WrapHandler(h.JoinConference))
		r.Put("/participant", handlers.WrapHandler(h.UpdateParticipant))
		r.Post("/end", handlers.WrapHandler(h.EndConference))
		r.Post("/messages", handlers.WrapHandler(h.PostMessage))
		r.Get("/summary", handlers.WrapHandler(h.GetSummary))
		r.Post("/summary/auto", handlers.WrapHandler(h.GenerateAutoSummary))
	})
	return r, producer
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  *struct {
		Code  int    `json:"code"`
		Field string `json:"field"`
	} `json:"errors"`
}

func call(t *testing.T, h http.Handler, method, path, user, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func createConference(t *testing.T, h http.Handler, user string) (id, link string) {
	t.Helper()
	code, env := call(t, h, http.MethodPost, "/api/v1/conferences", user, `{"title":"standup"}`)
	require.Equal(t, http.StatusCreated, code)

	var conf struct {
		ID   string `json:"id"`
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &conf))
	return conf.ID, conf.Link
}

func TestCreateThenFetchByLink(t *testing.T) {
	h, _ := newTestRouter(t)
	id, link := createConference(t, h, "alice")

	code, env := call(t, h, http.MethodGet, "/api/v1/conferences/link/"+link, "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), id)
	assert.Contains(t, string(env.Data), `"user_id":"alice"`)
}

func TestCreateRequiresUser(t *testing.T) {
	h, _ := newTestRouter(t)

	code, env := call(t, h, http.MethodPost, "/api/v1/conferences", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	require.NotNil(t, env.Errors)
	assert.Equal(t, "context", env.Errors.Field)
}

func TestEndByNonCreatorIsForbidden(t *testing.T) {
	h, producer := newTestRouter(t)
	id, _ := createConference(t, h, "alice")

	code, env := call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/end", "bob", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", env.Errors.Field)

	code, env = call(t, h, http.MethodGet, "/api/v1/conferences/"+id+"/", "bob", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"is_active":true`)
	assert.Empty(t, producer.types())

	code, _ = call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/end", "alice", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/end", "alice", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{queue.JobBroadcastEnded}, producer.types())

	code, env = call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/join", "carol", "")
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "conference-ended", env.Errors.Field)
}

func TestParticipantUpdateEnqueuesBroadcast(t *testing.T) {
	h, producer := newTestRouter(t)
	id, _ := createConference(t, h, "alice")

	code, _ := call(t, h, http.MethodPut, "/api/v1/conferences/"+id+"/participant", "alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := call(t, h, http.MethodPut, "/api/v1/conferences/"+id+"/participant", "alice", `{"is_muted":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"is_muted":true`)

	code, _ = call(t, h, http.MethodPut, "/api/v1/conferences/"+id+"/participant", "bob", `{"is_muted":true}`)
	assert.Equal(t, http.StatusNotFound, code)

	assert.Equal(t, []string{queue.JobBroadcastParticipant}, producer.types())
}

func TestPostMessageValidation(t *testing.T) {
	h, producer := newTestRouter(t)
	id, _ := createConference(t, h, "alice")

	code, env := call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/messages", "alice", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", env.Errors.Field)

	code, env = call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/messages", "alice", `{"content":"hi","type":"shout"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/messages", "alice", `{"content":"hi"}`)
	assert.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), `"type":"text"`)
	assert.Equal(t, []string{queue.JobBroadcastMessage}, producer.types())
}

func TestSummaryEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)
	id, _ := createConference(t, h, "alice")

	code, env := call(t, h, http.MethodGet, "/api/v1/conferences/"+id+"/summary", "alice", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{}`, string(env.Data))

	code, env = call(t, h, http.MethodPost, "/api/v1/conferences/"+id+"/summary/auto", "alice", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "summary-unavailable", env.Errors.Field)
}
