package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pushgate/internal/application/dto"
	appsvc "github.com/turtacn/pushgate/internal/application/service"
	"github.com/turtacn/pushgate/internal/domain/models"
	"github.com/turtacn/pushgate/internal/infrastructure/persistence/memory"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// MockDispatcher is a mock for Dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) DispatchSingle(ctx context.Context, n models.Notification) (appsvc.Ack, error) {
	args := m.Called(ctx, n)
	return args.Get(0).(appsvc.Ack), args.Error(1)
}

func (m *MockDispatcher) DispatchBroadcast(ctx context.Context, env models.Environment, content models.Content) (appsvc.Ack, error) {
	args := m.Called(ctx, env, content)
	return args.Get(0).(appsvc.Ack), args.Error(1)
}

func (m *MockDispatcher) JobStatus(id string) (appsvc.JobStatus, bool) {
	args := m.Called(id)
	return args.Get(0).(appsvc.JobStatus), args.Bool(1)
}

func newTokenRouter(t *testing.T) (*gin.Engine, *appsvc.RegistryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := appsvc.NewRegistryService(memory.NewStore(), logger.NewNoopLogger(), nil)
	h := NewTokenHandler(reg, logger.NewNoopLogger())

	r := gin.New()
	r.POST("/token", h.Register)
	r.GET("/tokens/send", h.ListAllow)
	r.DELETE("/tokens/send", h.DeleteAllow)
	r.GET("/tokens/block", h.ListDeny)
	r.POST("/tokens/block", h.Block)
	r.DELETE("/tokens/block", h.DeleteDeny)
	r.POST("/tokens/move-to-block", h.MoveToDeny)
	r.POST("/tokens/move-to-send", h.MoveToAllow)
	return r, reg
}

func doJSON(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestTokenHandler_Register(t *testing.T) {
	r, reg := newTokenRouter(t)
	ctx := context.Background()

	t.Run("explicit ip and environment", func(t *testing.T) {
		rr := doJSON(r, http.MethodPost, "/token", gin.H{"ip": "10.0.0.7", "token": "abc", "server_type": "production"})
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[dto.RegisterTokenResponse](t, rr)
		assert.Equal(t, "ok", string(resp.Status))
		assert.Equal(t, models.EnvironmentProduction, resp.ServerType)

		got, err := reg.Get(ctx, models.ListAllow, models.EnvironmentProduction, "10.0.0.7")
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	})

	t.Run("ip defaults to the caller address", func(t *testing.T) {
		rr := doJSON(r, http.MethodPost, "/token", gin.H{"token": "def"})
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[dto.RegisterTokenResponse](t, rr)
		assert.Equal(t, "192.0.2.1", resp.IP)
		assert.Equal(t, models.EnvironmentSandbox, resp.ServerType)
	})

	t.Run("repeat is no_change", func(t *testing.T) {
		rr := doJSON(r, http.MethodPost, "/token", gin.H{"token": "def"})
		resp := decode[dto.RegisterTokenResponse](t, rr)
		assert.Equal(t, "ignored", string(resp.Status))
		assert.Equal(t, "no_change", string(resp.Reason))
	})

	t.Run("unknown environment registers in sandbox", func(t *testing.T) {
		rr := doJSON(r, http.MethodPost, "/token", gin.H{"ip": "10.0.0.9", "token": "ghi", "server_type": "staging"})
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[dto.RegisterTokenResponse](t, rr)
		assert.Equal(t, models.EnvironmentSandbox, resp.ServerType)

		got, err := reg.Get(ctx, models.ListAllow, models.EnvironmentSandbox, "10.0.0.9")
		require.NoError(t, err)
		assert.Equal(t, "ghi", got)
	})

	t.Run("token with path delimiter", func(t *testing.T) {
		rr := doJSON(r, http.MethodPost, "/token", gin.H{"ip": "10.0.0.8", "token": "ab/../cd"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decode[errors.ErrorResponse](t, rr)
		assert.Contains(t, resp.Metadata, "token")
	})

	t.Run("missing token", func(t *testing.T) {
		rr := doJSON(r, http.MethodPost, "/token", gin.H{"ip": "10.0.0.8"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decode[errors.ErrorResponse](t, rr)
		assert.Equal(t, "invalid_argument", resp.Error)
		assert.Contains(t, resp.Metadata, "token")
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTokenHandler_ListAndDelete(t *testing.T) {
	r, reg := newTokenRouter(t)
	ctx := context.Background()
	require.NoError(t, reg.Set(ctx, models.ListAllow, models.EnvironmentSandbox, "10.0.0.1", "a"))
	require.NoError(t, reg.Set(ctx, models.ListAllow, models.EnvironmentProduction, "10.0.0.2", "b"))

	rr := doJSON(r, http.MethodGet, "/tokens/send", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	all := decode[dto.TokenListResponse](t, rr)
	assert.Equal(t, 2, all.Count)

	rr = doJSON(r, http.MethodGet, "/tokens/send?server_type=production", nil)
	prod := decode[dto.TokenListResponse](t, rr)
	require.Len(t, prod.Tokens, 1)
	assert.Equal(t, "10.0.0.2", prod.Tokens[0].Key)
	assert.Equal(t, models.EnvironmentProduction, prod.Tokens[0].Environment)

	// Anything but "production" selects the sandbox.
	rr = doJSON(r, http.MethodGet, "/tokens/send?server_type=prod", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sandbox := decode[dto.TokenListResponse](t, rr)
	require.Len(t, sandbox.Tokens, 1)
	assert.Equal(t, "10.0.0.1", sandbox.Tokens[0].Key)

	rr = doJSON(r, http.MethodDelete, "/tokens/send", gin.H{"ip": "10.0.0.1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = doJSON(r, http.MethodDelete, "/tokens/send", gin.H{"ip": "10.0.0.1"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(r, http.MethodGet, "/tokens/block", nil)
	empty := decode[dto.TokenListResponse](t, rr)
	assert.NotNil(t, empty.Tokens)
	assert.Zero(t, empty.Count)
}

func TestTokenHandler_BlockAndMove(t *testing.T) {
	r, reg := newTokenRouter(t)
	ctx := context.Background()

	rr := doJSON(r, http.MethodPost, "/tokens/block", gin.H{"ip": "10.0.0.9", "token": "x"})
	require.Equal(t, http.StatusOK, rr.Code)
	for _, env := range models.Environments {
		got, err := reg.Get(ctx, models.ListDeny, env, "10.0.0.9")
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	}

	rr = doJSON(r, http.MethodPost, "/token", gin.H{"ip": "10.0.0.9", "token": "y"})
	resp := decode[dto.RegisterTokenResponse](t, rr)
	assert.Equal(t, "blocked", string(resp.Reason))

	rr = doJSON(r, http.MethodPost, "/tokens/move-to-send", gin.H{"ip": "10.0.0.9"})
	require.Equal(t, http.StatusOK, rr.Code)
	_, err := reg.Get(ctx, models.ListDeny, models.EnvironmentSandbox, "10.0.0.9")
	assert.True(t, errors.Is(err, errors.ErrRegistryNotFound))

	rr = doJSON(r, http.MethodPost, "/tokens/move-to-block", gin.H{"ip": "10.0.0.9"})
	require.Equal(t, http.StatusOK, rr.Code)
	got, err := reg.Get(ctx, models.ListDeny, models.EnvironmentProduction, "10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "x", got)

	rr = doJSON(r, http.MethodPost, "/tokens/move-to-send", gin.H{"ip": "10.9.9.9"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(r, http.MethodDelete, "/tokens/block", gin.H{"ip": "10.0.0.9"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(r, http.MethodPost, "/tokens/block", gin.H{"ip": "10.0.0.10", "token": "z", "server_type": "sandbox"})
	require.Equal(t, http.StatusOK, rr.Code)
	_, err = reg.Get(ctx, models.ListDeny, models.EnvironmentProduction, "10.0.0.10")
	assert.True(t, errors.Is(err, errors.ErrRegistryNotFound))
}

func newPushRouter(d Dispatcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPushHandler(d, logger.NewNoopLogger())
	r := gin.New()
	r.POST("/push", h.Push)
	r.POST("/blast", h.Blast)
	r.GET("/blast/:id", h.JobStatus)
	return r
}

func TestPushHandler_Push(t *testing.T) {
	d := new(MockDispatcher)
	r := newPushRouter(d)

	d.On("DispatchSingle", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
		return n.Recipient == "a1b2" && n.Title == "Hello" && n.Badge != nil && *n.Badge == 1 &&
			n.Sound == nil && n.PayloadFragment == `"k":1` && n.Environment == models.EnvironmentProduction
	})).Return(appsvc.Ack{Status: "queued", JobID: "job-1"}, nil).Once()

	rr := doJSON(r, http.MethodPost, "/push", gin.H{
		"device_token":   "a1b2",
		"title":          "Hello",
		"body":           "World",
		"badge":          1,
		"custom_payload": `"k":1`,
		"server_type":    "production",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	ack := decode[appsvc.Ack](t, rr)
	assert.Equal(t, "queued", ack.Status)
	assert.Equal(t, "job-1", ack.JobID)
	d.AssertExpectations(t)
}

func TestPushHandler_PushRejected(t *testing.T) {
	tests := []struct {
		name string
		body gin.H
	}{
		{"missing device token", gin.H{"title": "t", "body": "b"}},
		{"missing title", gin.H{"device_token": "d", "body": "b"}},
		{"missing body", gin.H{"device_token": "d", "title": "t"}},
		{"device token with slash", gin.H{"device_token": "a1/b2", "title": "t", "body": "b"}},
		{"device token with query", gin.H{"device_token": "a1?x=1", "title": "t", "body": "b"}},
		{"device token with fragment", gin.H{"device_token": "a1#b2", "title": "t", "body": "b"}},
		{"device token with space", gin.H{"device_token": "a1 b2", "title": "t", "body": "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDispatcher)
			rr := doJSON(newPushRouter(d), http.MethodPost, "/push", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			d.AssertNotCalled(t, "DispatchSingle", mock.Anything, mock.Anything)
		})
	}
}

func TestPushHandler_UnknownServerTypeRoutesToSandbox(t *testing.T) {
	for _, serverType := range []string{"staging", "Production", "prod", ""} {
		t.Run("server_type="+serverType, func(t *testing.T) {
			d := new(MockDispatcher)
			d.On("DispatchSingle", mock.Anything, mock.MatchedBy(func(n models.Notification) bool {
				return n.Environment == models.EnvironmentSandbox
			})).Return(appsvc.Ack{Status: "queued", JobID: "job-s"}, nil).Once()

			rr := doJSON(newPushRouter(d), http.MethodPost, "/push", gin.H{
				"device_token": "a1b2", "title": "t", "body": "b", "server_type": serverType,
			})
			assert.Equal(t, http.StatusAccepted, rr.Code)
			d.AssertExpectations(t)
		})
	}

	d := new(MockDispatcher)
	d.On("DispatchBroadcast", mock.Anything, models.EnvironmentSandbox, mock.Anything).
		Return(appsvc.Ack{Status: "queued", JobID: "job-b"}, nil).Once()
	rr := doJSON(newPushRouter(d), http.MethodPost, "/blast", gin.H{"title": "T", "body": "B", "server_type": "staging"})
	assert.Equal(t, http.StatusAccepted, rr.Code)
	d.AssertExpectations(t)
}

func TestPushHandler_BudgetExhausted(t *testing.T) {
	d := new(MockDispatcher)
	d.On("DispatchSingle", mock.Anything, mock.Anything).Return(appsvc.Ack{}, errors.ErrTaskBudgetExhausted)

	rr := doJSON(newPushRouter(d), http.MethodPost, "/push", gin.H{"device_token": "d", "title": "t", "body": "b"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPushHandler_Blast(t *testing.T) {
	d := new(MockDispatcher)
	r := newPushRouter(d)

	d.On("DispatchBroadcast", mock.Anything, models.EnvironmentSandbox, mock.MatchedBy(func(c models.Content) bool {
		return c.Title == "T" && c.Body == "B" && c.Sound != nil && *c.Sound == "default"
	})).Return(appsvc.Ack{Status: "queued", JobID: "job-2"}, nil).Once()

	rr := doJSON(r, http.MethodPost, "/blast", gin.H{"title": "T", "body": "B", "sound": "default"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	d.AssertExpectations(t)

	rr = doJSON(r, http.MethodPost, "/blast", gin.H{"title": "T"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPushHandler_JobStatus(t *testing.T) {
	d := new(MockDispatcher)
	r := newPushRouter(d)

	d.On("JobStatus", "job-2").Return(appsvc.JobStatus{ID: "job-2", Kind: appsvc.JobKindBroadcast, Total: 5, OK: 4, Failed: 1, State: appsvc.JobStateDone}, true)
	d.On("JobStatus", "nope").Return(appsvc.JobStatus{}, false)

	rr := doJSON(r, http.MethodGet, "/blast/job-2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	job := decode[appsvc.JobStatus](t, rr)
	assert.Equal(t, 4, job.OK)
	assert.Equal(t, 1, job.Failed)

	rr = doJSON(r, http.MethodGet, "/blast/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	healthy := NewHealthHandler(map[string]HealthCheckFunc{
		"registry": func(context.Context) error { return nil },
	}, logger.NewNoopLogger())
	r := gin.New()
	r.GET("/health", healthy.HealthCheck)
	r.GET("/live", healthy.LivenessCheck)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodGet, "/live", nil).Code)

	broken := NewHealthHandler(map[string]HealthCheckFunc{
		"registry": func(context.Context) error { return errors.ErrRegistryIO },
	}, logger.NewNoopLogger())
	r2 := gin.New()
	r2.GET("/health", broken.HealthCheck)
	rr := doJSON(r2, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unhealthy")
}
