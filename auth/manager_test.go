package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	models "tradelab/database/models_pkg"
)

type fakeUsers struct {
	byName map[string]*models.User
	byID   map[int64]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{byName: make(map[string]*models.User), byID: make(map[int64]*models.User)}
	for _, u := range users {
		f.byName[u.Username] = u
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) ByUsername(username string) (*models.User, error) {
	if u, ok := f.byName[username]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeUsers) ByID(id int64) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

func testUser(t *testing.T, id int64, username, password string, active bool) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Active:       active,
	}
}

func TestLoginAndResolve(t *testing.T) {
	users := newFakeUsers(testUser(t, 1, "user1", "user123", true))
	mgr := NewManager(users, nil, time.Hour)
	ctx := context.Background()

	user, token, err := mgr.Login(ctx, "user1", "user123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("Expected user 1, got %d", user.ID)
	}
	if len(token) != 64 {
		t.Errorf("Expected 64-char hex token, got %d chars", len(token))
	}

	resolved, err := mgr.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Username != "user1" {
		t.Errorf("Resolved wrong user: %s", resolved.Username)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	users := newFakeUsers(testUser(t, 1, "user1", "user123", true))
	mgr := NewManager(users, nil, time.Hour)
	ctx := context.Background()

	cases := []struct{ username, password string }{
		{"user1", "wrong"},
		{"nobody", "user123"},
		{"", ""},
	}
	for _, tc := range cases {
		_, _, err := mgr.Login(ctx, tc.username, tc.password)
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("Login(%q, %q): expected AuthError, got %v", tc.username, tc.password, err)
		}
	}
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	users := newFakeUsers(testUser(t, 1, "user1", "user123", false))
	mgr := NewManager(users, nil, time.Hour)

	_, _, err := mgr.Login(context.Background(), "user1", "user123")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError for disabled account, got %v", err)
	}
}

func TestResolveUnknownToken(t *testing.T) {
	mgr := NewManager(newFakeUsers(), nil, time.Hour)

	for _, token := range []string{"", "deadbeef"} {
		_, err := mgr.Resolve(context.Background(), token)
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Errorf("Resolve(%q): expected AuthError, got %v", token, err)
		}
	}
}

func TestResolveExpiredToken(t *testing.T) {
	users := newFakeUsers(testUser(t, 1, "user1", "user123", true))
	mgr := NewManager(users, nil, -time.Minute) // already expired on issue

	_, token, err := mgr.Login(context.Background(), "user1", "user123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err = mgr.Resolve(context.Background(), token)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthError for expired token, got %v", err)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	users := newFakeUsers(testUser(t, 1, "user1", "user123", true))
	mgr := NewManager(users, nil, time.Hour)
	ctx := context.Background()

	_, token, err := mgr.Login(ctx, "user1", "user123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	mgr.Logout(ctx, token)

	if _, err := mgr.Resolve(ctx, token); err == nil {
		t.Error("Expected error resolving logged-out token")
	}

	// Logging out twice is harmless.
	mgr.Logout(ctx, token)
}

func TestTokensAreUnique(t *testing.T) {
	users := newFakeUsers(testUser(t, 1, "user1", "user123", true))
	mgr := NewManager(users, nil, time.Hour)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		_, token, err := mgr.Login(ctx, "user1", "user123")
		if err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
		if seen[token] {
			t.Fatalf("Duplicate token issued: %s", token)
		}
		seen[token] = true
	}
}
