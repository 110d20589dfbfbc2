package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type authenticatorStub struct {
	userID string
	err    error
	tokens []string
}

func (a *authenticatorStub) Authenticate(_ context.Context, token string) (string, error) {
	a.tokens = append(a.tokens, token)
	if a.err != nil {
		return "", a.err
	}
	return a.userID, nil
}

func TestRequireUserStoresUserOnContext(t *testing.T) {
	authn := &authenticatorStub{userID: "user-1"}

	var seenUser string
	handler := RequireUser(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/videos", nil)
	req.Header.Set("Authorization", "Bearer tok-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if seenUser != "user-1" {
		t.Fatalf("user on context = %q", seenUser)
	}
	if len(authn.tokens) != 1 || authn.tokens[0] != "tok-abc" {
		t.Fatalf("authenticated tokens = %v", authn.tokens)
	}
}

func TestRequireUserRejectsMissingToken(t *testing.T) {
	handler := RequireUser(&authenticatorStub{userID: "user-1"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/media/videos", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireUserRejectsBadToken(t *testing.T) {
	authn := &authenticatorStub{err: errors.New("token expired")}
	handler := RequireUser(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a rejected token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/media/videos", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUserFromContextWithoutUser(t *testing.T) {
	if got := UserFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty user, got %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Bearer  abc ", "abc"},
		{"Basic abc", ""},
		{"", ""},
		{"Bearer", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
