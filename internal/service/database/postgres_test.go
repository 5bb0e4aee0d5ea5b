package database

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
)

func TestDSNQuotesValues(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "greeter", Password: `p a's\s`, Database: "greeter"}

	want := `host='db' port=5432 user='greeter' password='p a\'s\\s' dbname='greeter' sslmode=disable`
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN() = %s, want %s", got, want)
	}
}

func TestNewPostgresServiceFailsWhenUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = NewPostgresService(context.Background(), PostgresConfig{
		Host: "127.0.0.1", Port: port, User: "greeter", Database: "greeter",
	}, zap.NewNop())
	if err == nil {
		t.Fatalf("expected connection error")
	}
}
