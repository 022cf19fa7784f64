package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:  1,
		TokenID: 2,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.TokenID != 2 {
		t.Errorf("TokenID = %d, want 2", got.TokenID)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
}

func TestUserIDMissing(t *testing.T) {
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestTokenID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{TokenID: 42})
	if TokenID(ctx) != 42 {
		t.Errorf("TokenID = %d, want 42", TokenID(ctx))
	}
}

func TestTokenIDMissing(t *testing.T) {
	if TokenID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}
