package auth

import (
	"net/http/httptest"
	"testing"
)

func TestGenerateAndValidate(t *testing.T) {
	a := New("test-secret", 60)

	token, err := a.GenerateToken("usr_1", "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "usr_1" || claims.Username != "alice" {
		t.Errorf("claims = %s/%s, want usr_1/alice", claims.UserID, claims.Username)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	a := New("secret-a", 60)
	b := New("secret-b", 60)

	token, err := a.GenerateToken("usr_1", "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("token signed with another secret should not validate")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	a := New("test-secret", 60)
	if _, err := a.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token should not validate")
	}
}

func TestExtractClaims(t *testing.T) {
	a := New("test-secret", 60)
	token, _ := a.GenerateToken("usr_1", "alice")

	t.Run("valid bearer", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/me", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		claims := a.ExtractClaims(r)
		if claims == nil || claims.Username != "alice" {
			t.Errorf("claims = %+v, want alice", claims)
		}
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/me", nil)
		if claims := a.ExtractClaims(r); claims != nil {
			t.Errorf("claims = %+v, want nil", claims)
		}
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/me", nil)
		r.Header.Set("Authorization", token)
		if claims := a.ExtractClaims(r); claims != nil {
			t.Errorf("claims = %+v, want nil", claims)
		}
	})
}
