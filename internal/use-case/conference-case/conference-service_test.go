package conference_service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
	"github.com/xenn00/conference-system/internal/entity"
	app_error "github.com/xenn00/conference-system/internal/errors"
	conference_repo "github.com/xenn00/conference-system/internal/repo/conference"
	message_repo "github.com/xenn00/conference-system/internal/repo/message"
	"github.com/xenn00/conference-system/state"
)

type fakeCompleter struct {
	calls  int
	prompt string
	err    error
}

func (f *fakeCompleter) Complete(_ context.Context, _, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return "- decided to ship", nil
}

func newTestService(t *testing.T) (*ConferenceService, *miniredis.Miniredis) {
	t.Helper()
	db, sqlDB, err := state.InitSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, state.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	appState := &state.AppState{DB: db, Redis: rdb}
	return &ConferenceService{
		Repo:     conference_repo.NewConferenceRepo(appState),
		Messages: message_repo.NewSQLMessageRepo(appState),
		Redis:    rdb,
		Now:      func() time.Time { return time.Now().UTC() },
	}, mr
}

func strPtr(s string) *string { return &s }

func TestCreateAndFetchByLink(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	created, appErr := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{Title: strPtr("retro")})
	require.Nil(t, appErr)
	assert.Len(t, created.Link, 32)
	assert.True(t, created.IsActive)
	require.Len(t, created.Participants, 1)
	assert.Equal(t, "alice", created.Participants[0].UserID)

	byLink, appErr := svc.GetConferenceByLink(ctx, created.Link)
	require.Nil(t, appErr)
	assert.Equal(t, created.ID, byLink.ID)
	assert.True(t, mr.Exists(linkCacheKey(created.Link)))

	// served through the cached mapping
	byLink, appErr = svc.GetConferenceByLink(ctx, created.Link)
	require.Nil(t, appErr)
	assert.Equal(t, "retro", *byLink.Title)

	_, appErr = svc.GetConferenceByLink(ctx, "unknown")
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestJoin_UnknownAndEnded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, appErr := svc.JoinConference(ctx, "missing", "bob")
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)

	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})
	p, appErr := svc.JoinConference(ctx, conf.ID, "bob")
	require.Nil(t, appErr)
	assert.Equal(t, "bob", p.UserID)

	_, _, appErr = svc.EndConference(ctx, conf.ID, "alice")
	require.Nil(t, appErr)

	_, appErr = svc.JoinConference(ctx, conf.ID, "carol")
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusGone, appErr.Code)
}

func TestRejoinClearsLeftAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})

	_, appErr := svc.JoinConference(ctx, conf.ID, "bob")
	require.Nil(t, appErr)
	left, appErr := svc.LeaveConference(ctx, conf.ID, "bob")
	require.Nil(t, appErr)
	require.NotNil(t, left.LeftAt)

	again, appErr := svc.JoinConference(ctx, conf.ID, "bob")
	require.Nil(t, appErr)
	assert.Nil(t, again.LeftAt)

	got, _ := svc.GetConference(ctx, conf.ID)
	assert.Len(t, got.Participants, 2)
}

func TestUpdateParticipant_RequiresMembership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})
	muted := true

	p, appErr := svc.UpdateParticipant(ctx, conf.ID, "alice", conference_dto.UpdateParticipantRequest{IsMuted: &muted})
	require.Nil(t, appErr)
	assert.True(t, p.IsMuted)

	_, appErr = svc.UpdateParticipant(ctx, conf.ID, "bob", conference_dto.UpdateParticipantRequest{IsMuted: &muted})
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestEndConference_ForbiddenForNonCreator(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})

	_, _, appErr := svc.EndConference(ctx, conf.ID, "bob")
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusForbidden, appErr.Code)

	got, _ := svc.GetConference(ctx, conf.ID)
	assert.True(t, got.IsActive)
	assert.NoError(t, svc.CheckJoin(ctx, conf.ID))
}

func TestEndConference_InvalidatesJoinStatus(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})

	require.NoError(t, svc.CheckJoin(ctx, conf.ID))
	assert.True(t, mr.Exists(statusCacheKey(conf.ID)))

	ended, changed, appErr := svc.EndConference(ctx, conf.ID, "alice")
	require.Nil(t, appErr)
	assert.True(t, changed)
	assert.False(t, ended.IsActive)
	assert.False(t, mr.Exists(statusCacheKey(conf.ID)))

	err := svc.CheckJoin(ctx, conf.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusGone, app_error.CodeOf(err))

	_, changed, appErr = svc.EndConference(ctx, conf.ID, "alice")
	require.Nil(t, appErr)
	assert.False(t, changed)
}

func TestCheckJoin_Unknown(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.CheckJoin(context.Background(), "missing")
	assert.Equal(t, http.StatusNotFound, app_error.CodeOf(err))
}

func TestRecordLeft_IgnoresUnknownParticipant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})

	assert.NoError(t, svc.RecordLeft(ctx, conf.ID, "ghost"))
	require.NoError(t, svc.RecordLeft(ctx, conf.ID, "alice"))

	got, _ := svc.GetConference(ctx, conf.ID)
	require.NotNil(t, got.Participants[0].LeftAt)
}

func TestRecordLeftAt_UsesGivenTime(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})
	leftAt := time.Now().UTC().Add(-40 * time.Second).Truncate(time.Second)

	require.NoError(t, svc.RecordLeftAt(ctx, conf.ID, "alice", leftAt))

	got, _ := svc.GetConference(ctx, conf.ID)
	require.NotNil(t, got.Participants[0].LeftAt)
	assert.WithinDuration(t, leftAt, *got.Participants[0].LeftAt, time.Second)
}

func TestMessages_DefaultTypeAndOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})

	base := time.Now().UTC()
	tick := 0
	svc.Now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	m, appErr := svc.PostMessage(ctx, conf.ID, "alice", conference_dto.PostMessageRequest{Content: "hello"})
	require.Nil(t, appErr)
	assert.Equal(t, entity.MessageTypeText, m.Type)
	_, appErr = svc.PostMessage(ctx, conf.ID, "bob", conference_dto.PostMessageRequest{Content: "hi", Type: entity.MessageTypeSystem})
	require.Nil(t, appErr)

	list, appErr := svc.ListMessages(ctx, conf.ID)
	require.Nil(t, appErr)
	require.Len(t, list, 2)
	assert.Equal(t, "hello", list[0].Content)

	_, appErr = svc.PostMessage(ctx, "missing", "alice", conference_dto.PostMessageRequest{Content: "x"})
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestAutoSummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})

	_, appErr := svc.GenerateAutoSummary(ctx, conf.ID)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)

	completer := &fakeCompleter{}
	svc.Completer = completer

	// only system messages: nothing to summarize, nothing persisted
	_, appErr = svc.PostMessage(ctx, conf.ID, "alice", conference_dto.PostMessageRequest{Content: "recording started", Type: entity.MessageTypeSystem})
	require.Nil(t, appErr)
	empty, appErr := svc.GenerateAutoSummary(ctx, conf.ID)
	require.Nil(t, appErr)
	assert.False(t, empty.Generated)
	assert.Equal(t, NoMessagesToSummarize, empty.Message)
	assert.Equal(t, 0, completer.calls)
	stored, _ := svc.GetSummary(ctx, conf.ID)
	assert.Nil(t, stored.AutoSummary)

	_, appErr = svc.PostMessage(ctx, conf.ID, "alice", conference_dto.PostMessageRequest{Content: "let's ship friday"})
	require.Nil(t, appErr)
	res, appErr := svc.GenerateAutoSummary(ctx, conf.ID)
	require.Nil(t, appErr)
	assert.True(t, res.Generated)
	assert.Equal(t, "- decided to ship", *res.Summary.AutoSummary)
	assert.Contains(t, completer.prompt, "alice: let's ship friday")
	assert.NotContains(t, completer.prompt, "recording started")

	manual, appErr := svc.EditManualSummary(ctx, conf.ID, "shipping friday")
	require.Nil(t, appErr)
	assert.Equal(t, "shipping friday", *manual.ManualSummary)
	assert.Equal(t, "- decided to ship", *manual.AutoSummary)
}

func TestAutoSummary_CompleterFailure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	conf, _ := svc.CreateConference(ctx, "alice", conference_dto.CreateConferenceRequest{})
	svc.Completer = &fakeCompleter{err: errors.New("rate limited")}
	_, _ = svc.PostMessage(ctx, conf.ID, "alice", conference_dto.PostMessageRequest{Content: "hi"})

	_, appErr := svc.GenerateAutoSummary(ctx, conf.ID)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Code)

	stored, _ := svc.GetSummary(ctx, conf.ID)
	assert.Equal(t, conference_dto.SummaryResponse{}, *stored)
}
