package db

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/config"
)

// newDb initializes the pool against the test database and returns a context
// carrying a connection. Tests are skipped unless DATAPUB_TEST_DB_HOST is set;
// the schema from schema/catalogdb.sql must be deployed.
func newDb(t *testing.T) context.Context {
	t.Helper()

	host := os.Getenv("DATAPUB_TEST_DB_HOST")
	if host == "" {
		t.Skip("set DATAPUB_TEST_DB_HOST to run database tests")
	}
	port := 5432
	if p := os.Getenv("DATAPUB_TEST_DB_PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	c := &config.ConfigParam{
		ServerPort: "0",
		Publish:    config.PublishConfig{Catalogs: []string{"SAEON"}},
	}
	c.DB.Host = host
	c.DB.Port = port
	c.DB.DBName = envOr("DATAPUB_TEST_DB_NAME", "datapub_test")
	c.DB.User = envOr("DATAPUB_TEST_DB_USER", "datapub")
	c.DB.Password = os.Getenv("DATAPUB_TEST_DB_PASSWORD")
	c.DB.SSLMode = "disable"
	config.SetTestConfig(c)

	Init()

	ctx := log.Logger.WithContext(context.Background())
	ctx, err := ConnCtx(ctx)
	if err != nil {
		t.Fatalf("unable to get db connection: %v", err)
	}
	return ctx
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
