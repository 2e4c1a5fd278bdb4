package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQL(t *testing.T) {
	sql := `-- comment
CREATE TABLE a (
  id TEXT
);

CREATE INDEX idx ON a (id);
`
	stmts := splitSQL(sql)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Equal(t, "CREATE INDEX idx ON a (id);", stmts[1])
}

func TestLatestSchemaFilesEmbedded(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres"} {
		bytes, err := migrationFS.ReadFile("migration/" + driver + "/" + LatestSchemaFileName)
		require.NoError(t, err, driver)
		assert.Contains(t, string(bytes), "CREATE TABLE interaction")
	}
}
