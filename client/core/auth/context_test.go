package auth

import (
	"net/http"
	"strings"
	"testing"
)

func TestNewContext(t *testing.T) {
	tests := []struct {
		name    string
		apiID   string
		apiKey  string
		wantErr bool
	}{
		{name: "valid credentials", apiID: "demo", apiKey: "secret"},
		{name: "empty id", apiID: "", apiKey: "secret", wantErr: true},
		{name: "empty key", apiID: "demo", apiKey: "", wantErr: true},
		{name: "both empty", apiID: "", apiKey: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, err := NewContext(tt.apiID, tt.apiKey)
			if tt.wantErr {
				if err != ErrInvalidCredentials {
					t.Errorf("NewContext() error = %v, want ErrInvalidCredentials", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewContext() error = %v", err)
			}
			if ctx.ID() != tt.apiID {
				t.Errorf("ID() = %q, want %q", ctx.ID(), tt.apiID)
			}
		})
	}
}

func TestDecorate(t *testing.T) {
	ctx, err := NewContext("demo", "secret")
	if err != nil {
		t.Fatal(err)
	}

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	ctx.Decorate(header)

	if got := header.Get(HeaderID); got != "demo" {
		t.Errorf("header %s = %q, want %q", HeaderID, got, "demo")
	}
	if got := header.Get(HeaderKey); got != "secret" {
		t.Errorf("header %s = %q, want %q", HeaderKey, got, "secret")
	}
	if got := header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Decorate() must not touch unrelated headers, got %q", got)
	}
}

func TestStringMasksKey(t *testing.T) {
	ctx, err := NewContext("demo", "secret")
	if err != nil {
		t.Fatal(err)
	}
	s := ctx.String()
	if strings.Contains(s, "secret") {
		t.Errorf("String() leaks the api key: %s", s)
	}
	if !strings.Contains(s, "demo") {
		t.Errorf("String() should include the public id: %s", s)
	}
}
