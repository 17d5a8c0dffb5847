package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI implements API with swappable behaviour and call counting.
type fakeAPI struct {
	store       *Store
	loginFunc   func(username, password string) (string, error)
	whoamiFunc  func(token string) (*registry.User, error)
	loginCalls  atomic.Int32
	whoamiCalls atomic.Int32
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (string, error) {
	f.loginCalls.Add(1)
	return f.loginFunc(username, password)
}

func (f *fakeAPI) WhoAmI(_ context.Context) (*registry.User, error) {
	f.whoamiCalls.Add(1)
	return f.whoamiFunc(f.store.Token())
}

func newTestStore(t *testing.T, persisted string, opts ...Option) (*Store, *fakeAPI, *MemoryTokens) {
	t.Helper()
	tokens := NewMemoryTokens(persisted)
	store := New(tokens, opts...)
	api := &fakeAPI{
		store: store,
		loginFunc: func(username, password string) (string, error) {
			if password != "secret" {
				return "", &registry.HTTPError{StatusCode: 401, Detail: "Invalid credentials"}
			}
			return "tok-" + username, nil
		},
		whoamiFunc: func(token string) (*registry.User, error) {
			if token == "" || token == "revoked" {
				return nil, &registry.HTTPError{StatusCode: 401, Detail: "Invalid token"}
			}
			return &registry.User{Username: "ada", Role: registry.RoleContributor}, nil
		},
	}
	store.Attach(api)
	return store, api, tokens
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ada",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestStore_InitialState(t *testing.T) {
	store, _, _ := newTestStore(t, "")
	assert.Equal(t, StatusRestoring, store.Status())
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.User())
}

func TestStore_RestoreRejectedToken(t *testing.T) {
	store, api, tokens := newTestStore(t, "revoked")

	store.Restore(context.Background())

	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, StatusAnonymous, store.Status())
	assert.Nil(t, store.User())
	assert.EqualValues(t, 1, api.whoamiCalls.Load())

	persisted, _ := tokens.LoadToken()
	assert.Empty(t, persisted, "rejected token must be cleared from storage")

	select {
	case <-store.Ready():
	default:
		t.Fatal("Ready() must be closed after Restore")
	}
}

func TestStore_RestoreValidToken(t *testing.T) {
	store, _, _ := newTestStore(t, "opaque-token")

	store.Restore(context.Background())

	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, StatusAuthenticated, store.Status())
	assert.Equal(t, &registry.User{Username: "ada", Role: registry.RoleContributor}, store.User())
}

func TestStore_RestoreNoToken(t *testing.T) {
	store, api, _ := newTestStore(t, "")

	store.Restore(context.Background())

	assert.Equal(t, StatusAnonymous, store.Status())
	assert.Zero(t, api.whoamiCalls.Load())
}

func TestStore_RestoreExpiredJWTSkipsNetwork(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expired := signedToken(t, now.Add(-time.Hour))

	store, api, tokens := newTestStore(t, expired, WithClock(func() time.Time { return now }))
	store.Restore(context.Background())

	assert.Equal(t, StatusAnonymous, store.Status())
	assert.Zero(t, api.whoamiCalls.Load())
	persisted, _ := tokens.LoadToken()
	assert.Empty(t, persisted)
}

func TestStore_RestoreLiveJWTValidated(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	live := signedToken(t, now.Add(time.Hour))

	store, api, _ := newTestStore(t, live, WithClock(func() time.Time { return now }))
	store.Restore(context.Background())

	assert.Equal(t, StatusAuthenticated, store.Status())
	assert.EqualValues(t, 1, api.whoamiCalls.Load())
}

func TestStore_RestoreRunsOnce(t *testing.T) {
	store, api, _ := newTestStore(t, "opaque-token")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Restore(context.Background())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, api.whoamiCalls.Load())
}

func TestStore_Login(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		whoamiErr   error
		wantSuccess bool
		wantErr     error
		wantToken   string
	}{
		{
			name:        "success",
			password:    "secret",
			wantSuccess: true,
			wantToken:   "tok-ada",
		},
		{
			name:     "bad credentials",
			password: "wrong",
			wantErr:  registry.ErrUnauthorized,
		},
		{
			name:      "identity check fails after token issued",
			password:  "secret",
			whoamiErr: &registry.NetworkError{Method: "GET", URL: "x", Err: errors.New("offline")},
			wantErr:   ErrIdentityFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, api, tokens := newTestStore(t, "")
			if tt.whoamiErr != nil {
				api.whoamiFunc = func(string) (*registry.User, error) { return nil, tt.whoamiErr }
			}

			res := store.Login(context.Background(), "ada", tt.password)
			assert.Equal(t, tt.wantSuccess, res.Success)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.Err, tt.wantErr)
			} else {
				assert.NoError(t, res.Err)
			}

			persisted, _ := tokens.LoadToken()
			assert.Equal(t, tt.wantToken, persisted)
			assert.Equal(t, tt.wantToken, store.Token())
			if tt.wantSuccess {
				assert.Equal(t, StatusAuthenticated, store.Status())
				assert.NotNil(t, store.User())
			} else {
				assert.Nil(t, store.User())
			}
		})
	}
}

func TestStore_LoginValidation(t *testing.T) {
	store := New(NewMemoryTokens(""))
	assert.ErrorIs(t, store.Login(context.Background(), "ada", "x").Err, ErrNoAPI)
	assert.ErrorIs(t, store.Login(context.Background(), "", "x").Err, ErrEmptyUsername)
}

func TestStore_LogoutIdempotentNoNetwork(t *testing.T) {
	store, api, tokens := newTestStore(t, "")
	require.True(t, store.Login(context.Background(), "ada", "secret").Success)
	loginCalls, whoamiCalls := api.loginCalls.Load(), api.whoamiCalls.Load()

	require.NoError(t, store.Logout())
	require.NoError(t, store.Logout())

	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, StatusAnonymous, store.Status())
	assert.Nil(t, store.Snapshot().User)
	persisted, _ := tokens.LoadToken()
	assert.Empty(t, persisted)
	assert.Equal(t, loginCalls, api.loginCalls.Load())
	assert.Equal(t, whoamiCalls, api.whoamiCalls.Load())
}

func TestStore_RestoreDoesNotOverrideLogout(t *testing.T) {
	release := make(chan struct{})
	store, api, _ := newTestStore(t, "opaque-token")
	api.whoamiFunc = func(string) (*registry.User, error) {
		<-release
		return &registry.User{Username: "ada", Role: registry.RoleViewer}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Restore(context.Background())
	}()

	// Wait until restore has published the token and is blocked in whoami.
	require.Eventually(t, func() bool { return api.whoamiCalls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, store.Logout())
	close(release)
	<-done

	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, StatusAnonymous, store.Status())
}

func TestStore_FailedLoginDuringRestore(t *testing.T) {
	release := make(chan struct{})
	store, api, tokens := newTestStore(t, "revoked")
	api.whoamiFunc = func(token string) (*registry.User, error) {
		<-release
		return nil, &registry.HTTPError{StatusCode: 401, Detail: "Invalid token"}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Restore(context.Background())
	}()
	require.Eventually(t, func() bool { return api.whoamiCalls.Load() == 1 }, time.Second, time.Millisecond)

	result := store.Login(context.Background(), "ada", "wrong")
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Err, registry.ErrUnauthorized)

	close(release)
	<-done

	assert.Equal(t, StatusAnonymous, store.Status())
	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.Token())
	persisted, _ := tokens.LoadToken()
	assert.Empty(t, persisted, "rejected token must be cleared from storage")
}

func TestStore_LoginDuringRestoreWins(t *testing.T) {
	release := make(chan struct{})
	store, api, _ := newTestStore(t, "opaque-token")
	api.whoamiFunc = func(token string) (*registry.User, error) {
		if token == "opaque-token" {
			<-release
			return nil, &registry.HTTPError{StatusCode: 401, Detail: "Invalid token"}
		}
		return &registry.User{Username: "ada", Role: registry.RoleAdmin}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Restore(context.Background())
	}()
	require.Eventually(t, func() bool { return api.whoamiCalls.Load() == 1 }, time.Second, time.Millisecond)

	result := store.Login(context.Background(), "ada", "secret")
	require.NoError(t, result.Err)

	close(release)
	<-done

	assert.Equal(t, StatusAuthenticated, store.Status())
	assert.Equal(t, "tok-ada", store.Token())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "restoring", StatusRestoring.String())
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "anonymous", StatusAnonymous.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
