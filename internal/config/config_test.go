package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
connection:
  host: localhost
  port: 3306
  username: testuser
  password: testpass
  database: testdb

pool:
  min_connections: 2
  max_connections: 20
  idle_timeout: 5m
  max_lifetime: 30m

introspect:
  enabled: true
  bind: 127.0.0.1:9100
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Connection.Host != "localhost" {
		t.Errorf("expected host localhost, got %s", f.Connection.Host)
	}
	if f.Pool.MaxConnections != 20 {
		t.Errorf("expected max connections 20, got %d", f.Pool.MaxConnections)
	}
	if f.Pool.IdleTimeout != 5*time.Minute {
		t.Errorf("expected idle timeout 5m, got %v", f.Pool.IdleTimeout)
	}
	if !f.Introspect.Enabled {
		t.Error("expected introspect.enabled true")
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_DB_PASSWORD", "secret123")
	defer os.Unsetenv("TEST_DB_PASSWORD")

	yaml := `
connection:
  host: localhost
  username: user
  password: ${TEST_DB_PASSWORD}
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Connection.Password != "secret123" {
		t.Errorf("expected password secret123, got %s", f.Connection.Password)
	}
}

func TestLoadEnvSubstitutionLeavesUnknownVarsIntact(t *testing.T) {
	yaml := `
connection:
  host: localhost
  username: user
  password: ${SOME_VAR_THAT_IS_NOT_SET}
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Connection.Password != "${SOME_VAR_THAT_IS_NOT_SET}" {
		t.Errorf("expected literal placeholder preserved, got %s", f.Connection.Password)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing host",
			yaml: `
connection:
  username: user
`,
		},
		{
			name: "missing username",
			yaml: `
connection:
  host: localhost
`,
		},
		{
			name: "min exceeds max",
			yaml: `
connection:
  host: localhost
  username: user
pool:
  min_connections: 30
  max_connections: 10
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	yaml := `
connection:
  host: localhost
  username: user
`
	path := writeTemp(t, yaml)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if f.Connection.Port != 3306 {
		t.Errorf("expected default port 3306, got %d", f.Connection.Port)
	}
	if f.Connection.SSLMode != "preferred" {
		t.Errorf("expected default ssl_mode preferred, got %s", f.Connection.SSLMode)
	}
	if f.Pool.MaxConnections != 10 {
		t.Errorf("expected default max connections 10, got %d", f.Pool.MaxConnections)
	}
}

func TestRedacted(t *testing.T) {
	f := File{Connection: ConnectionConfig{Password: "hunter2"}}
	r := f.Redacted()
	if r.Connection.Password != "***REDACTED***" {
		t.Errorf("expected password redacted, got %s", r.Connection.Password)
	}
	if f.Connection.Password != "hunter2" {
		t.Error("Redacted must not mutate the receiver")
	}
}

func TestParseDSN(t *testing.T) {
	cc, err := ParseDSN("app:p%40ss@tcp(db.internal:3307)/mydb?ssl_mode=required&parseTime=true")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cc.Username != "app" {
		t.Errorf("Username = %q, want %q", cc.Username, "app")
	}
	if cc.Password != "p@ss" {
		t.Errorf("Password = %q, want %q (unescaped)", cc.Password, "p@ss")
	}
	if cc.Host != "db.internal" {
		t.Errorf("Host = %q, want %q", cc.Host, "db.internal")
	}
	if cc.Port != 3307 {
		t.Errorf("Port = %d, want 3307", cc.Port)
	}
	if cc.Database != "mydb" {
		t.Errorf("Database = %q, want %q", cc.Database, "mydb")
	}
	if cc.SSLMode != "required" {
		t.Errorf("SSLMode = %q, want %q", cc.SSLMode, "required")
	}
}

func TestParseDSNNoDatabaseOrQuery(t *testing.T) {
	cc, err := ParseDSN("root:@tcp(localhost:3306)/")
	if err != nil {
		t.Fatalf("ParseDSN: %v", err)
	}
	if cc.Username != "root" || cc.Password != "" {
		t.Errorf("Username/Password = %q/%q, want root/\"\"", cc.Username, cc.Password)
	}
	if cc.Database != "" {
		t.Errorf("Database = %q, want empty", cc.Database)
	}
}

func TestParseDSNRejectsMalformed(t *testing.T) {
	tests := []string{
		"no-at-sign-here",
		"user:pass@localhost:3306/db",
		"user:pass@tcp(hostwithoutport)/db",
		"user:pass@tcp(host:notaport)/db",
	}
	for _, dsn := range tests {
		if _, err := ParseDSN(dsn); err == nil {
			t.Errorf("ParseDSN(%q): expected error, got nil", dsn)
		}
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
