package migration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedVersions(t *testing.T) {
	versions, err := embeddedVersions()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3, 4}, versions)
}

func TestEveryUpHasMatchingDown(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	files := make(map[string]bool, len(entries))
	for _, e := range entries {
		files[e.Name()] = true
	}

	for name := range files {
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		assert.True(t, files[down], "missing down migration for %s", name)
	}
}

func TestSchemaCoversRetrievalColumns(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/0002_create_satdata.up.sql")
	require.NoError(t, err)
	schema := string(data)

	for _, column := range []string{
		"case_title", "citation_number", "case_topic", "catchwords",
		"case_url", "reasons", "reasons_summary", "reasons_summary_embedding vector(768)",
	} {
		assert.Contains(t, schema, column)
	}

	data, err = migrationsFS.ReadFile("migrations/0003_create_reasons_chunks.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunk_embedding vector(768)")
	assert.Contains(t, string(data), "REFERENCES satdata(id)")
}

func TestNewMigratorRejectsBadConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.Error(t, err)

	_, err = NewMigrator(&Config{})
	assert.Error(t, err)
}
