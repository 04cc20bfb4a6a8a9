package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/storage/database"
	logsvc "github.com/trezcool/darasa/services/logger"
)

// NewConfig returns a TEST configuration, independent of the environment.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Darasa",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:8080",
		DefaultFromEmail: mail.Address{Name: "Darasa", Address: "noreply@darasa.test"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			AuthRateLimit:             100,
			AuthRateBurst:             100,
		},
		Auth: core.AuthConfig{
			TOTPIssuer:           "Darasa",
			PendingLoginTTL:      5 * time.Minute,
			PendingEnrollmentTTL: 10 * time.Minute,
			InstitutionDomain:    "coventry.ac.uk",
			PasswordResetTimeout: 3 * 24 * time.Hour,
			SecretKey:            "test-secret-key",
		},
		Storage: core.StorageConfig{
			MaxUploadSize: 1 << 20,
		},
	}
}

// NewLogger returns a disabled Rollbar logger writing nowhere.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
	logger.Enable(false)
	return logger
}

// PrepareDB connects & migrates the database at TEST_DATABASE_HOST; the test is skipped when unset.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		t.Skip("TEST_DATABASE_HOST not set")
	}
	conf := core.DatabaseConfig{
		Engine:     "postgres",
		Host:       host,
		Port:       getenv("TEST_DATABASE_PORT", "5432"),
		Name:       getenv("TEST_DATABASE_NAME", "darasa_test"),
		User:       getenv("TEST_DATABASE_USER", "darasa"),
		Password:   getenv("TEST_DATABASE_PASSWORD", "darasa"),
		DisableTLS: true,
	}

	db, err := database.Open(conf)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, "reset"))
	require.NoError(t, database.Migrate(db, "up"))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// CreateAccount persists an account with the given credentials, bypassing registration rules.
func CreateAccount(t *testing.T, repo account.Repository, role account.Role, uname, email, pwd string) account.Account {
	t.Helper()

	acc := account.Account{
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, acc.SetPassword(pwd))

	acc, err := repo.Create(context.Background(), acc, account.Profile{})
	require.NoError(t, err)
	return acc
}
