package s3

import (
	"context"
	"testing"

	"docverify-backend/internal/shared/storage/object"
)

func TestNewReturnsCapableStore(t *testing.T) {
	store, err := New(context.Background(), "ap-northeast-1", "bucket", "docs", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Wiring hands the store out as these capabilities, so the return type
	// must satisfy them without a runtime assertion.
	var saver object.KeySaver = store
	var issuer object.SignedURLIssuer = store
	var base object.ObjectStore = store
	if saver == nil || issuer == nil || base == nil {
		t.Fatal("store capabilities not populated")
	}
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "root", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "root/", key: "user/file.pdf", want: "root/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/user/file.pdf", want: "root/user/file.pdf"},
		{name: "nested prefix", prefix: "root/sub", key: "user/file.pdf", want: "root/sub/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}
