package cfg

import (
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_DRIVER", "memory")
	t.Setenv("INDEX_DRIVER", "memory")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, CatalogMemory, c.Catalog.Driver)
	assert.Nil(t, c.Db)
	assert.Equal(t, IndexMemory, c.Index.Driver)
	assert.Equal(t, 768, c.Index.VectorSize)
	assert.Equal(t, 20, c.Search.DefaultTopK)
	assert.Zero(t, c.Search.MaxTopK)
	assert.Equal(t, 4, c.Ingest.Concurrency)
	assert.False(t, c.Kafka.Enabled)
	assert.False(t, c.Redis.Enabled)
	assert.Equal(t, "gemini-2.0-flash", c.Gemini.VisionModel)
	assert.Equal(t, "text-embedding-004", c.Gemini.EmbeddingModel)
	assert.Equal(t, "http://minio:9000/products", c.Minio.PublicBaseURL)
	assert.Equal(t, 30*time.Second, c.Ml.RequestTimeout)
}

func TestLoad_PostgresRequiresCredentials(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(logger.NewNopLogger())
	require.Error(t, err)
}

func TestLoad_Postgres(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_DRIVER", "postgres")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "catalog")

	c, err := Load(logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/catalog?sslmode=disable", c.Db.ConnString())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown catalog driver", key: "CATALOG_DRIVER", val: "mongo"},
		{name: "unknown index driver", key: "INDEX_DRIVER", val: "faiss"},
		{name: "non-numeric vector size", key: "VECTOR_SIZE", val: "abc"},
		{name: "zero vector size", key: "VECTOR_SIZE", val: "0"},
		{name: "zero ingest concurrency", key: "INGEST_CONCURRENCY", val: "0"},
		{name: "negative max top k", key: "SEARCH_MAX_TOP_K", val: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("CATALOG_DRIVER", "memory")
			t.Setenv(tt.key, tt.val)

			_, err := Load(logger.NewNopLogger())
			assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)
		})
	}
}

func TestLoad_KafkaRequiresBrokers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CATALOG_DRIVER", "memory")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load(logger.NewNopLogger())
	require.Error(t, err)
}
