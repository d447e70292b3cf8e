package bootstrap

import (
	"net/url"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/repodoc/config"
)

func TestPostgresDSN_EscapesCredentials(t *testing.T) {
	dsn := postgresDSN(config.DBConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "ledger",
		Password: "p@ss/w:rd",
		Name:     "repodoc",
		SSLMode:  "require",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss/w:rd", pass)
	assert.Equal(t, "db.internal:5433", u.Host)
	assert.Equal(t, "/repodoc", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))

	parsed, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "ledger", parsed.User)
	assert.Equal(t, "p@ss/w:rd", parsed.Password)
	assert.Equal(t, uint16(5433), parsed.Port)
	assert.Equal(t, applicationName, parsed.RuntimeParams["application_name"])
}

func TestOpenConnections_NothingNeeded(t *testing.T) {
	cfg := testConfig(t, "")
	conns, err := OpenConnections(t.Context(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, conns.DB)
	assert.Nil(t, conns.Redis)
	require.NoError(t, conns.Close())
}
