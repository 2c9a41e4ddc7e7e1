//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voyagen/m3ueditor/internal/store"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/store/
func TestReconcileContract_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, store.RunMigrations(dsn, "file://../../migrations"))
	pg, err := store.NewPostgres(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	checkReconcileContract(t, pg)
}
