package urlutil

import (
	"testing"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		paths   []string
		want    string
		wantErr bool
	}{
		{
			name:  "simple join",
			base:  "https://example.com",
			paths: []string{"api", "v1"},
			want:  "https://example.com/api/v1",
		},
		{
			name:  "base with path",
			base:  "https://example.com/base",
			paths: []string{"api", "v1"},
			want:  "https://example.com/base/api/v1",
		},
		{
			name:  "trailing slash preserved",
			base:  "https://example.com",
			paths: []string{"api", "v1/"},
			want:  "https://example.com/api/v1/",
		},
		{
			name:  "authorization path",
			base:  "https://api.example.com",
			paths: []string{"/oauth2/authorization/", "google"},
			want:  "https://api.example.com/oauth2/authorization/google",
		},
		{
			name:  "empty paths",
			base:  "https://example.com",
			paths: []string{},
			want:  "https://example.com",
		},
		{
			name:  "base with trailing slash",
			base:  "https://example.com/",
			paths: []string{"api"},
			want:  "https://example.com/api",
		},
		{
			name:    "invalid base URL",
			base:    "://invalid",
			paths:   []string{"api"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(tt.base, tt.paths...)
			if (err != nil) != tt.wantErr {
				t.Errorf("JoinPath() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("JoinPath() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustJoinPath(t *testing.T) {
	// Test normal operation
	result := MustJoinPath("https://example.com", "api", "v1")
	if result != "https://example.com/api/v1" {
		t.Errorf("MustJoinPath() = %v, want %v", result, "https://example.com/api/v1")
	}

	// Test panic on invalid URL
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("MustJoinPath() should have panicked")
		}
	}()
	MustJoinPath("://invalid", "api")
}

func TestWithQuery(t *testing.T) {
	tests := []struct {
		name   string
		target string
		params map[string]string
		want   string
	}{
		{
			name:   "path without params",
			target: "/auth",
			params: map[string]string{"returnTo": "/meetings"},
			want:   "/auth?returnTo=%2Fmeetings",
		},
		{
			name:   "existing params preserved",
			target: "/meetings/join?token=inv-1",
			params: map[string]string{"fromLogin": "true"},
			want:   "/meetings/join?fromLogin=true&token=inv-1",
		},
		{
			name:   "existing param overridden",
			target: "/auth?expired=false",
			params: map[string]string{"expired": "true"},
			want:   "/auth?expired=true",
		},
		{
			name:   "no params",
			target: "/dashboard",
			params: nil,
			want:   "/dashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithQuery(tt.target, tt.params); got != tt.want {
				t.Errorf("WithQuery() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLocalPath(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"/dashboard", true},
		{"/meetings/join?token=abc", true},
		{"/", true},
		{"", false},
		{"dashboard", false},
		{"https://evil.example.com/phish", false},
		{"//evil.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			if got := IsLocalPath(tt.target); got != tt.want {
				t.Errorf("IsLocalPath(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}
