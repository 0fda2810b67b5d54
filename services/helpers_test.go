package services

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/stretchr/testify/require"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestStore(t *testing.T) *database.DataService {
	t.Helper()

	db, err := database.InitDB("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return database.NewDataService(db)
}

func newTestAccount(t *testing.T, store *database.DataService, email string) *database.Account {
	t.Helper()
	acct, err := store.CreateAccount(context.Background(), email)
	require.NoError(t, err)
	return acct
}
