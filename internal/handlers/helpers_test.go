package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chat-realtime-api/internal/auth"
	"chat-realtime-api/internal/models"
	"chat-realtime-api/internal/store"
	"chat-realtime-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

func testTokens() *auth.TokenManager {
	return auth.NewTokenManager("test-secret-0123456789", "chat-test", "chat-test-clients", time.Hour)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	return store.New(db)
}

// seedUser stores a user with a real bcrypt hash of password.
func seedUser(t *testing.T, st *store.Store, id, name, email, password string) models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := models.User{ID: id, FullName: name, Email: email, Password: hash}
	require.NoError(t, st.CreateUser(context.Background(), &u))
	return u
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
