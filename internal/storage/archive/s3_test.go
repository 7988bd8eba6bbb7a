// internal/storage/archive/s3_test.go
package archive

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestS3Storage_ImplementsStore(t *testing.T) {
	var _ Store = (*S3Storage)(nil)
}

func TestNewS3(t *testing.T) {
	s, err := NewS3(S3Config{Bucket: "results", Endpoint: "http://localhost:9000", Region: "us-east-1", Prefix: "/smacross/"})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if s.prefix != "smacross" {
		t.Errorf("prefix = %q, want smacross", s.prefix)
	}
}

func TestS3Storage_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.txt", "file.txt"},
		{"archive", "file.txt", "archive/file.txt"},
		{"archive", "run/AAPL/../MSFT/equity.csv", "archive/run/MSFT/equity.csv"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: tt.prefix}
		got, err := s.objectKey(tt.path)
		if err != nil {
			t.Fatalf("objectKey(%q): %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("objectKey(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}

	s := &S3Storage{prefix: "archive"}
	if _, err := s.objectKey("../escape"); err == nil {
		t.Error("expected escaping key to be rejected")
	}
	if got := s.relative("archive/run/a.csv"); got != "run/a.csv" {
		t.Errorf("relative() = %q", got)
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed not found", fmt.Errorf("op: %w", &types.NotFound{}), true},
		{"no such key", &types.NoSuchKey{}, true},
		{"generic api error", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFound(tt.err); got != tt.want {
				t.Errorf("isNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}
