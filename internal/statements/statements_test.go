package statements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "single without terminator",
			sql:  "SELECT 1",
			want: []string{"SELECT 1"},
		},
		{
			name: "multiple",
			sql:  "SELECT 1;\nSELECT 2;  \n\n  SELECT 3",
			want: []string{"SELECT 1", "SELECT 2", "SELECT 3"},
		},
		{
			name: "semicolons in quotes",
			sql:  `SELECT 'a;b', "c;d", ` + "`e;f`" + `; SELECT 'it''s; fine'`,
			want: []string{`SELECT 'a;b', "c;d", ` + "`e;f`", `SELECT 'it''s; fine'`},
		},
		{
			name: "line comments",
			sql:  "-- header; not a statement\nSELECT 1; -- trailing; comment\nSELECT 2",
			want: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "block comments",
			sql:  "/* a; b */ SELECT /* inline; */ 1; /* only a comment; */",
			want: []string{"SELECT /* inline; */ 1"},
		},
		{
			name: "dollar quoted body",
			sql:  "CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $body$ LANGUAGE sql; SELECT f()",
			want: []string{"CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1; $body$ LANGUAGE sql", "SELECT f()"},
		},
		{
			name: "anonymous dollar quote",
			sql:  "DO $$ BEGIN RAISE NOTICE 'x;'; END $$; SELECT 1",
			want: []string{"DO $$ BEGIN RAISE NOTICE 'x;'; END $$", "SELECT 1"},
		},
		{
			name: "positional parameters are not dollar quotes",
			sql:  "SELECT $1; SELECT $2",
			want: []string{"SELECT $1", "SELECT $2"},
		},
		{
			name: "empty statements dropped",
			sql:  ";;  ; SELECT 1;;",
			want: []string{"SELECT 1"},
		},
		{
			name: "unterminated quote runs to end",
			sql:  "SELECT 'oops; SELECT 2",
			want: []string{"SELECT 'oops; SELECT 2"},
		},
		{
			name: "empty input",
			sql:  "   \n\t",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.sql))
		})
	}
}

func TestFind_Positions(t *testing.T) {
	sql := "SELECT 1;\n  -- note\n  SELECT 'é';\n\tSELECT 3"

	stmts := Find(sql)
	require.Len(t, stmts, 3)

	assert.Equal(t, 1, stmts[0].Line)
	assert.Equal(t, 1, stmts[0].Column)
	assert.Equal(t, 0, stmts[0].Start)
	assert.Equal(t, len("SELECT 1"), stmts[0].End)

	assert.Equal(t, 3, stmts[1].Line)
	assert.Equal(t, 3, stmts[1].Column)
	assert.Equal(t, "SELECT 'é'", sql[stmts[1].Start:stmts[1].End])

	assert.Equal(t, 4, stmts[2].Line)
	assert.Equal(t, 2, stmts[2].Column)
}

func TestFind_ColumnCountsRunes(t *testing.T) {
	stmts := Find("SELECT 'ñ'; SELECT 2")
	require.Len(t, stmts, 2)
	assert.Equal(t, 1, stmts[1].Line)
	assert.Equal(t, 13, stmts[1].Column)
}

func TestAt(t *testing.T) {
	sql := "SELECT 1;\nSELECT 2;\nSELECT 3"
	stmts := Find(sql)
	require.Len(t, stmts, 3)

	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{"inside first", 3, "SELECT 1"},
		{"on terminator", 8, "SELECT 1"},
		{"start of second", 10, "SELECT 2"},
		{"end of input", len(sql), "SELECT 3"},
		{"before everything", -1, "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := At(stmts, tt.offset)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.SQL)
		})
	}

	_, ok := At(nil, 0)
	assert.False(t, ok)
}
