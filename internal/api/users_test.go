package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/primisapp/primis-backend/internal/auth"
	"github.com/primisapp/primis-backend/internal/user"
)

// seedUser creates an account directly in the repository and returns it
// with a valid access token.
func seedUser(t *testing.T, env *testEnv, email, password string) (*user.User, string) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u, err := env.users.Create(context.Background(), "Test User", email, hash)
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	var body loginResponse
	resp := env.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": email, "password": password}, &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	return u, body.Token
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env, "ada@example.com", "s3cret-passw0rd")

	t.Run("wrong password", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/auth/login", "",
			map[string]string{"email": "ada@example.com", "password": "wrong"}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/auth/login", "",
			map[string]string{"email": "nobody@example.com", "password": "whatever"}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/auth/login", "",
			map[string]string{"email": "ada@example.com"}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("response has no password hash", func(t *testing.T) {
		var raw map[string]any
		resp := env.request(t, http.MethodPost, "/api/v1/auth/login", "",
			map[string]string{"email": "ada@example.com", "password": "s3cret-passw0rd"}, &raw)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		userObj, _ := raw["user"].(map[string]any)
		if _, leaked := userObj["password_hash"]; leaked {
			t.Error("login response contains password_hash")
		}
	})
}

func TestUserRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no token", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/users", "", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/v1/users", "not-a-token", nil, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestUserCRUD(t *testing.T) {
	env := newTestEnv(t)
	_, token := seedUser(t, env, "admin@example.com", "s3cret-passw0rd")

	var created user.User

	t.Run("create", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/users", token,
			map[string]string{"name": "Grace", "email": "grace@example.com", "password": "longenough"}, &created)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want 201", resp.StatusCode)
		}
		if created.ID == "" {
			t.Error("created user has empty ID")
		}
	})

	t.Run("create short password", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/users", token,
			map[string]string{"name": "X", "email": "x@example.com", "password": "short"}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("create duplicate email", func(t *testing.T) {
		resp := env.request(t, http.MethodPost, "/api/v1/users", token,
			map[string]string{"name": "Grace 2", "email": "grace@example.com", "password": "longenough"}, nil)
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.StatusCode)
		}
	})

	t.Run("get", func(t *testing.T) {
		var got user.User
		resp := env.request(t, http.MethodGet, "/api/v1/users/"+created.ID, token, nil, &got)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got.Email != "grace@example.com" {
			t.Errorf("email = %q", got.Email)
		}
	})

	t.Run("update", func(t *testing.T) {
		var got user.User
		resp := env.request(t, http.MethodPatch, "/api/v1/users/"+created.ID, token,
			map[string]string{"name": "Grace Hopper"}, &got)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if got.Name != "Grace Hopper" {
			t.Errorf("name = %q", got.Name)
		}
	})

	t.Run("update nothing", func(t *testing.T) {
		resp := env.request(t, http.MethodPatch, "/api/v1/users/"+created.ID, token,
			map[string]string{}, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("list", func(t *testing.T) {
		var body struct {
			Users []user.User `json:"users"`
			Count int         `json:"count"`
		}
		resp := env.request(t, http.MethodGet, "/api/v1/users", token, nil, &body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		if body.Count != 2 {
			t.Errorf("count = %d, want 2", body.Count)
		}
	})

	t.Run("delete self rejected", func(t *testing.T) {
		admin, adminToken := seedUser(t, env, "self@example.com", "s3cret-passw0rd")
		resp := env.request(t, http.MethodDelete, "/api/v1/users/"+admin.ID, adminToken, nil, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.request(t, http.MethodDelete, "/api/v1/users/"+created.ID, token, nil, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", resp.StatusCode)
		}
		resp = env.request(t, http.MethodGet, "/api/v1/users/"+created.ID, token, nil, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status after delete = %d, want 404", resp.StatusCode)
		}
	})
}
