package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Shimizu-Technology/reelforge-api/internal/middleware"
	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("APP_ENV", "test")
	t.Setenv("JWT_SECRET", "test-secret")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantRole string
	}{
		{name: "user", args: []string{"token", "--user", "user_1"}},
		{name: "admin", args: []string{"token", "--user", "user_1", "--admin"}, wantRole: middleware.RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(t, tt.args...)
			if err != nil {
				t.Fatalf("token: %v", err)
			}
			claims, err := middleware.ParseJWT(strings.TrimSpace(out), "test-secret")
			if err != nil {
				t.Fatalf("ParseJWT: %v", err)
			}
			if claims.UserID != "user_1" || claims.Role != tt.wantRole {
				t.Errorf("claims = %+v", claims)
			}
		})
	}

	if _, err := runCommand(t, "token"); err == nil {
		t.Error("token without --user succeeded")
	}
}

func TestPricingCommand(t *testing.T) {
	out, err := runCommand(t, "pricing")
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	for _, want := range []string{"Kling 2.1", "kling *", "Watermark removal", "required"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestModelRows(t *testing.T) {
	rows := modelRows(pipeline.DefaultPricing())
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	// ModelNames sorts, so hailuo comes first.
	if rows[0][0] != "hailuo" || rows[0][2] != "15" || rows[0][3] != "6, 10" {
		t.Errorf("first row = %v", rows[0])
	}
}

func TestRenderTable(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("empty headers rendered %q", got)
	}
	got := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(got, "A") || !strings.Contains(got, "1") {
		t.Errorf("table = %q", got)
	}
}

type orderLog []string

type fakePool struct{ log *orderLog }

func (p fakePool) Stop() { *p.log = append(*p.log, "pool") }

type fakeClient struct {
	name string
	log  *orderLog
	err  error
}

func (c fakeClient) Close() error {
	*c.log = append(*c.log, c.name)
	return c.err
}

func TestStopPoolDrainsBeforeClosingClients(t *testing.T) {
	var got orderLog
	clients := []io.Closer{
		fakeClient{name: "redis", log: &got, err: errors.New("already closed")},
		fakeClient{name: "other", log: &got},
	}
	stopPool(fakePool{log: &got}, clients, zerolog.Nop())

	want := []string{"pool", "redis", "other"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("shutdown order = %v, want %v", got, want)
	}
}
