package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_WrapsVerbatim(t *testing.T) {
	cause := errors.New(`syntax error at or near "SELEC"`)
	err := Engine(Postgres, cause)

	require.Error(t, err)
	assert.Equal(t, cause.Error(), err.Error(), "engine message must pass through unchanged")
	assert.True(t, IsEngine(err))
	assert.ErrorIs(t, err, cause)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Postgres, ee.Driver)
}

func TestEngine_Nil(t *testing.T) {
	assert.NoError(t, Engine(MySQL, nil))
}

func TestEngine_KeepsExistingKind(t *testing.T) {
	ioErr := &IoError{Op: "open", Path: "/nope/db.sqlite", Err: os.ErrNotExist}
	err := Engine(SQLite, fmt.Errorf("connect: %w", ioErr))

	assert.True(t, IsIo(err))
	assert.False(t, IsEngine(err))
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("query: %w", &NotFoundError{Key: "main"})

	assert.True(t, IsNotFound(err))
	assert.False(t, IsEngine(err))
	assert.Equal(t, `query: client not found: "main"`, Message(err))
}

func TestIoError_Message(t *testing.T) {
	err := &IoError{Op: "open", Path: "/tmp/x.db", Err: os.ErrPermission}
	assert.Equal(t, "open /tmp/x.db: permission denied", err.Error())
	assert.ErrorIs(t, err, os.ErrPermission)

	noPath := &IoError{Op: "read", Err: os.ErrClosed}
	assert.Equal(t, "read: file already closed", noPath.Error())
}

func TestMessage_Nil(t *testing.T) {
	assert.Equal(t, "", Message(nil))
}

func TestParseDriverKind(t *testing.T) {
	tests := []struct {
		in   string
		want DriverKind
	}{
		{"postgresql", Postgres},
		{"postgres", Postgres},
		{"PG", Postgres},
		{"mysql", MySQL},
		{"mariadb", MySQL},
		{"sqlite", SQLite},
		{" sqlite3 ", SQLite},
		{"duckdb", DuckDB},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDriverKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDriverKind_Unknown(t *testing.T) {
	_, err := ParseDriverKind("oracle")
	require.Error(t, err)

	var ue *UnknownDriverError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "oracle", ue.Driver)
	assert.Contains(t, err.Error(), "postgresql, mysql, sqlite, duckdb")
}

func TestDriverKind_JSON(t *testing.T) {
	var payload struct {
		Driver DriverKind `json:"driver"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"driver": "postgres"}`), &payload))
	assert.Equal(t, Postgres, payload.Driver)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"driver": "postgresql"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"driver": "db2"}`), &payload))
}

func TestDriverKind_VersionQuery(t *testing.T) {
	assert.Equal(t, "SELECT sqlite_version()", SQLite.VersionQuery())
	assert.Equal(t, "SELECT version()", Postgres.VersionQuery())
	assert.Equal(t, "SELECT version()", MySQL.VersionQuery())
	assert.Equal(t, "SELECT version()", DuckDB.VersionQuery())
}
