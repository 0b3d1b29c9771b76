package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"

	"github.com/mharkness/go-chatrelay/internal/config"
	"github.com/mharkness/go-chatrelay/internal/store"
	"github.com/mharkness/go-chatrelay/internal/testutil"
	"github.com/mharkness/go-chatrelay/internal/types"
)

var testSigningKey = []byte("some_secret")

func newTestApp(t *testing.T, db store.Repository) *RelayApp {
	cfg := &config.Config{
		ListenAddr: "localhost:8000",
		SigningKey: testSigningKey,
	}

	return NewRelayApp(http.NewServeMux(), testutil.TestLogger(t), nil, db, cfg)
}

func signedToken(t *testing.T, sub string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	signed, err := token.SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		app := newTestApp(t, &store.MockRepository{})

		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		rr := httptest.NewRecorder()

		app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called without a token")
		})(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected unauthorized")
	})

	t.Run("token signed with wrong key", func(t *testing.T) {
		app := newTestApp(t, &store.MockRepository{})

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"})
		signed, err := token.SignedString([]byte("other_secret"))
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rr := httptest.NewRecorder()

		app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called with a bad signature")
		})(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected unauthorized")
	})

	t.Run("bearer token", func(t *testing.T) {
		app := newTestApp(t, &store.MockRepository{})

		var gotUserId string
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "u1"))
		rr := httptest.NewRecorder()

		app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
		})(rr, req)

		assert.Equal(t, "u1", gotUserId, "expected user id from token subject")
	})

	t.Run("cookie token", func(t *testing.T) {
		app := newTestApp(t, &store.MockRepository{})

		var gotUserId string
		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: signedToken(t, "u2")})
		rr := httptest.NewRecorder()

		app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
		})(rr, req)

		assert.Equal(t, "u2", gotUserId, "expected user id from cookie token")
	})
}

func Test_getMessages(t *testing.T) {
	t.Run("missing group id", func(t *testing.T) {
		app := newTestApp(t, &store.MockRepository{})

		req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
		req = req.WithContext(WithUserId(req.Context(), "u1"))
		rr := httptest.NewRecorder()

		app.getMessages(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "expected bad request")
	})

	t.Run("not a member", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("IsMember", "u1", "g1").Return(false)

		app := newTestApp(t, db)

		req := httptest.NewRequest(http.MethodGet, "/api/messages?group_id=g1", nil)
		req = req.WithContext(WithUserId(req.Context(), "u1"))
		rr := httptest.NewRecorder()

		app.getMessages(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code, "expected forbidden")
	})

	t.Run("returns ordered history with sender data", func(t *testing.T) {
		db := &store.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("IsMember", "u1", "g1").Return(true)
		db.On("ListMessages", "g1").Return([]store.Message{
			{Id: 1, GroupId: "g1", SenderId: "u2", Content: "first", FirstName: "Ann", LastName: "Lee"},
			{Id: 2, GroupId: "g1", SenderId: "u1", Content: "second", FirstName: "Bob", LastName: "Kim"},
		}, nil)

		app := newTestApp(t, db)

		req := httptest.NewRequest(http.MethodGet, "/api/messages?group_id=g1", nil)
		req = req.WithContext(WithUserId(req.Context(), "u1"))
		rr := httptest.NewRecorder()

		app.getMessages(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "expected ok")

		var messages []types.ChatMessage
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages))
		assert.Len(t, messages, 2, "expected both messages")
		assert.Equal(t, "first", messages[0].Content, "expected ascending order preserved")
		assert.Equal(t, "Ann", messages[0].FirstName, "expected sender display data")
	})
}

func Test_health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("Ping").Return(nil)

		app := newTestApp(t, db)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()

		app.health(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code, "expected ok")
	})

	t.Run("store unreachable", func(t *testing.T) {
		db := &store.MockRepository{}
		db.On("Ping").Return(assert.AnError)

		app := newTestApp(t, db)

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()

		app.health(rr, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected internal error")
	})
}
