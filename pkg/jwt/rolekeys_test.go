package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestIssueRoleKeyRoundTrip(t *testing.T) {
	for _, role := range []Role{RoleAnon, RoleServiceRole} {
		token, err := IssueRoleKey(role, "s3cret")
		if err != nil {
			t.Fatalf("issue %s: %v", role, err)
		}
		claims, err := ParseRoleKey(token, "s3cret")
		if err != nil {
			t.Fatalf("parse %s: %v", role, err)
		}
		if claims.Role != role {
			t.Fatalf("expected role %s, got %s", role, claims.Role)
		}
		if claims.Issuer != "supabase" {
			t.Fatalf("expected issuer supabase, got %q", claims.Issuer)
		}
	}
}

func TestParseRoleKeyRejectsOtherSecret(t *testing.T) {
	token, err := IssueRoleKey(RoleAnon, "s3cret")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseRoleKey(token, "other-secret"); err == nil {
		t.Fatalf("expected verification with a different secret to fail")
	}
}

func TestIssueRoleKeyValidity(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	token, err := issueRoleKeyAt(RoleServiceRole, "s3cret", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseRoleKey(token, "s3cret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	window := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if window != RoleKeyTTL {
		t.Fatalf("expected one year validity, got %s", window)
	}
}

func TestIssueRoleKeySameInstantDecodesIdentically(t *testing.T) {
	a, err := IssueRoleKey(RoleAnon, "s3cret")
	if err != nil {
		t.Fatalf("issue a: %v", err)
	}
	b, err := IssueRoleKey(RoleAnon, "s3cret")
	if err != nil {
		t.Fatalf("issue b: %v", err)
	}
	ca, err := ParseRoleKey(a, "s3cret")
	if err != nil {
		t.Fatalf("parse a: %v", err)
	}
	cb, err := ParseRoleKey(b, "s3cret")
	if err != nil {
		t.Fatalf("parse b: %v", err)
	}
	if ca.Role != cb.Role || ca.Issuer != cb.Issuer {
		t.Fatalf("claims diverged: %+v vs %+v", ca, cb)
	}
}

func TestIssueRoleKeyErrors(t *testing.T) {
	if _, err := IssueRoleKey(RoleAnon, ""); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
	if _, err := IssueRoleKey(Role("admin"), "s3cret"); !errors.Is(err, ErrUnsupportedRole) {
		t.Fatalf("expected ErrUnsupportedRole, got %v", err)
	}
}

func TestIssueKeyPair(t *testing.T) {
	pair, err := IssueKeyPair("pair-secret")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	anon, err := ParseRoleKey(pair.AnonKey, "pair-secret")
	if err != nil || anon.Role != RoleAnon {
		t.Fatalf("anon key invalid: %v %+v", err, anon)
	}
	service, err := ParseRoleKey(pair.ServiceKey, "pair-secret")
	if err != nil || service.Role != RoleServiceRole {
		t.Fatalf("service key invalid: %v %+v", err, service)
	}
	if _, err := IssueKeyPair(""); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}
