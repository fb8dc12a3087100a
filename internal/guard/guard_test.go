package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkdata-labs/talkdata/internal/schema"
)

func musicSchema() *schema.Descriptor {
	return schema.NewDescriptor([]schema.Table{
		{Name: "artists", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}}},
		{Name: "albums", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}, {Name: "artist_id", Type: "INTEGER"}}},
	})
}

func TestCheckAllowsReadStatements(t *testing.T) {
	sch := musicSchema()
	statements := []string{
		"SELECT * FROM artists",
		"SELECT a.name FROM artists a JOIN albums b ON b.artist_id = a.id",
		"WITH top AS (SELECT id FROM artists LIMIT 5) SELECT * FROM top",
		"EXPLAIN SELECT * FROM albums",
		"EXPLAIN QUERY PLAN SELECT * FROM albums",
		"SELECT * FROM artists;",
		"select name from artists order by name",
		"SELECT REPLACE(name, 'a', 'b') FROM artists",
		"SELECT 'DROP TABLE artists' AS warning FROM artists",
		"SELECT * FROM artists -- DELETE FROM artists",
		"SELECT * FROM artists /* UPDATE artists SET name = '' */",
		"WITH RECURSIVE seq(n) AS (SELECT 1 UNION ALL SELECT n+1 FROM seq WHERE n < 5) SELECT n FROM seq",
		"SELECT EXTRACT(YEAR FROM name) AS y, COUNT(*) FROM artists GROUP BY y",
		"SELECT SUBSTRING(name FROM 1 FOR 3) FROM artists",
		"SELECT TRIM(LEADING 'x' FROM name) FROM artists",
		"SELECT * FROM artists, albums",
	}
	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			v := Check(stmt, sch)
			assert.True(t, v.Allowed, "reason: %s", v.Reason)
		})
	}
}

func TestCheckRejectsWriteStatements(t *testing.T) {
	sch := musicSchema()
	statements := []string{
		"INSERT INTO artists (name) VALUES ('x')",
		"UPDATE artists SET name = 'x'",
		"DELETE FROM artists",
		"DROP TABLE artists",
		"ALTER TABLE artists ADD COLUMN x TEXT",
		"CREATE TABLE t (id INTEGER)",
		"TRUNCATE TABLE artists",
		"REPLACE INTO artists (name) VALUES ('x')",
		"GRANT ALL ON artists TO public",
		"ATTACH DATABASE 'other.db' AS other",
		"PRAGMA writable_schema = 1",
	}
	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			v := Check(stmt, sch)
			assert.False(t, v.Allowed)
			assert.NotEmpty(t, v.Reason)
		})
	}
}

func TestCheckRejectsEmbeddedWriteKeywords(t *testing.T) {
	sch := musicSchema()
	statements := []string{
		"SELECT * FROM artists; DROP TABLE artists",
		"WITH x AS (SELECT 1) DELETE FROM artists",
		"EXPLAIN DROP TABLE artists",
	}
	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			assert.False(t, Check(stmt, sch).Allowed)
		})
	}
}

func TestCheckRejectsMultiStatement(t *testing.T) {
	v := Check("SELECT 1; SELECT 2", musicSchema())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "multi-statement")
}

func TestCheckRejectsNonSelectLeading(t *testing.T) {
	v := Check("VACUUM", musicSchema())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "only SELECT, WITH or EXPLAIN")
}

func TestCheckUnknownTable(t *testing.T) {
	v := Check("SELECT * FROM customers", musicSchema())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reason, `unknown table "customers"`)
	assert.Contains(t, v.Reason, "artists")
}

func TestCheckCommaSeparatedFromList(t *testing.T) {
	sch := musicSchema()

	v := Check("SELECT * FROM artists a, albums b WHERE b.artist_id = a.id", sch)
	assert.True(t, v.Allowed, "reason: %s", v.Reason)

	for _, stmt := range []string{
		"SELECT * FROM artists, customers",
		"SELECT * FROM artists a, customers c",
		"SELECT * FROM artists AS a, albums AS b, customers AS c",
	} {
		t.Run(stmt, func(t *testing.T) {
			v := Check(stmt, sch)
			require.False(t, v.Allowed)
			assert.Contains(t, v.Reason, `unknown table "customers"`)
		})
	}
}

func TestCheckFunctionOperandFromIsNotATable(t *testing.T) {
	sch := musicSchema()

	v := Check("SELECT EXTRACT(YEAR FROM release_date) FROM albums", sch)
	assert.True(t, v.Allowed, "reason: %s", v.Reason)

	// The outer FROM is still validated.
	v = Check("SELECT EXTRACT(YEAR FROM release_date) FROM releases", sch)
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reason, `unknown table "releases"`)

	// A subquery inside a function argument is validated too.
	v = Check("SELECT COALESCE((SELECT name FROM customers), 'none') FROM artists", sch)
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reason, `unknown table "customers"`)
}

func TestCheckCTENamesCountAsKnown(t *testing.T) {
	stmt := `WITH recent (id) AS (SELECT id FROM albums), named AS (SELECT * FROM artists)
SELECT * FROM recent JOIN named ON named.id = recent.id`
	v := Check(stmt, musicSchema())
	assert.True(t, v.Allowed, "reason: %s", v.Reason)
}

func TestCheckQualifiedTableNames(t *testing.T) {
	v := Check("SELECT * FROM main.artists", musicSchema())
	assert.True(t, v.Allowed, "reason: %s", v.Reason)

	v = Check("SELECT * FROM main.customers", musicSchema())
	assert.False(t, v.Allowed)
}

func TestCheckSubqueryAndTableFunctionSkipped(t *testing.T) {
	sch := musicSchema()
	v := Check("SELECT * FROM (SELECT id FROM artists) sub", sch)
	assert.True(t, v.Allowed, "reason: %s", v.Reason)

	// table-valued functions are not table references
	v = Check("SELECT * FROM pragma_table_info('artists')", sch)
	assert.True(t, v.Allowed, "reason: %s", v.Reason)
}

func TestCheckNilSchemaSkipsTableCheck(t *testing.T) {
	v := Check("SELECT * FROM anything_at_all", nil)
	assert.True(t, v.Allowed)
}

func TestCheckUnterminatedConstructs(t *testing.T) {
	statements := []string{
		"SELECT 'unterminated FROM artists",
		"SELECT * FROM artists /* unterminated",
		`SELECT "unterminated FROM artists`,
	}
	for _, stmt := range statements {
		t.Run(stmt, func(t *testing.T) {
			v := Check(stmt, musicSchema())
			assert.False(t, v.Allowed)
		})
	}
}

func TestCheckEmptyStatement(t *testing.T) {
	assert.False(t, Check("", musicSchema()).Allowed)
	assert.False(t, Check("   ;  ", musicSchema()).Allowed)
	assert.False(t, Check("-- just a comment", musicSchema()).Allowed)
}

func TestCheckQuotedIdentifiers(t *testing.T) {
	v := Check(`SELECT * FROM "artists"`, musicSchema())
	assert.True(t, v.Allowed, "reason: %s", v.Reason)

	v = Check("SELECT * FROM `artists`", musicSchema())
	assert.True(t, v.Allowed, "reason: %s", v.Reason)
}
