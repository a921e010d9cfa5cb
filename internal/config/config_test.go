package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psicoapp/internal/audit"
)

func genNonEmptyString() gopter.Gen {
	return gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0
	})
}

// genConfiguration generates valid configurations that differ from the
// defaults in the fields operators usually touch.
func genConfiguration() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf(DriverPostgres, DriverSQLite, DriverMemory),
		genNonEmptyString(),                  // DSN
		gen.Bool(),                           // Redis.Enabled
		gen.Float64Range(0.01, 1),            // Matcher.Threshold
		gen.IntRange(1, 5000),                // Reconcile.PageSize
		gen.IntRange(1, 500),                 // Reconcile.BatchSize
		gen.SliceOfN(2, genNonEmptyString()), // WatchDirs
		genNonEmptyString(),                  // Audit.LogDirectory
		gen.OneConstOf("", "daily", "weekly"),
	).Map(func(vals []interface{}) *Configuration {
		c := Default()
		c.Database.Driver = vals[0].(string)
		c.Database.DSN = vals[1].(string)
		c.Redis.Enabled = vals[2].(bool)
		c.Matcher.Threshold = vals[3].(float64)
		c.Reconcile.PageSize = vals[4].(int)
		c.Reconcile.BatchSize = vals[5].(int)
		c.Import.WatchDirs = vals[6].([]string)
		c.Audit = &audit.Config{
			LogDirectory:   vals[7].(string),
			RotationSize:   1 << 20,
			RotationPeriod: vals[8].(string),
		}
		return c
	})
}

func TestConfigurationRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	dir := t.TempDir()

	properties.Property("Save then Load returns an equal configuration", prop.ForAll(
		func(c *Configuration) bool {
			path := filepath.Join(dir, "config.json")
			if err := Save(c, path); err != nil {
				return false
			}
			loaded, err := Load(path)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(c, loaded)
		},
		genConfiguration(),
	))

	properties.TestingRun(t)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"database":{"driver":"sqlite","dsn":"file:psico.db"}}`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, c.Database.Driver)
	assert.Equal(t, "pacientes", c.Tables.Patients)
	assert.Equal(t, "entradas", c.Tables.Sessions)
	assert.Equal(t, 1000, c.Reconcile.PageSize)
	assert.Equal(t, 200, c.Reconcile.BatchSize)
	assert.Equal(t, 0.72, c.Matcher.Threshold)
	assert.Equal(t, 5, c.Consolidate.RecentSessions)
	assert.Equal(t, 2, c.Search.MinTermLength)
	assert.Equal(t, 120, c.Search.MaxResults)
	assert.Equal(t, 20, c.Search.DefaultLimit)
	assert.Equal(t, 200, c.Search.ChunkSize)
	assert.Equal(t, 300, c.Search.CacheTTLSeconds)
	assert.Equal(t, 50, c.Import.PatientBatch)
	assert.Equal(t, 100, c.Import.SessionBatch)
	require.NotNil(t, c.Audit)
	assert.Equal(t, audit.DefaultConfig().LogDirectory, c.Audit.LogDirectory)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, FileNotFound, cfgErr.Type)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	_, err = Load(bad)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, InvalidJSON, cfgErr.Type)

	noDSN := filepath.Join(dir, "nodsn.json")
	require.NoError(t, os.WriteFile(noDSN, []byte(`{"database":{"driver":"postgres"}}`), 0o644))
	_, err = Load(noDSN)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ValidationError, cfgErr.Type)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"unknown driver", func(c *Configuration) { c.Database.Driver = "oracle" }},
		{"redis without addr", func(c *Configuration) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"threshold above one", func(c *Configuration) { c.Matcher.Threshold = 1.5 }},
		{"negative batch", func(c *Configuration) { c.Reconcile.BatchSize = -1 }},
		{"empty table", func(c *Configuration) { c.Tables.Sessions = "" }},
		{"bad log format", func(c *Configuration) { c.Log.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	t.Setenv("PSICO_DB_DRIVER", "")
	c, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, c.Database.Driver)
	assert.Equal(t, "psicoapp", c.Log.Service)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PSICO_DB_DRIVER", "postgres")
	t.Setenv("PSICO_DB_DSN", "postgres://psico@localhost/psico?sslmode=disable")
	t.Setenv("PSICO_REDIS_ADDR", "cache:6379")
	t.Setenv("PSICO_REDIS_ENABLED", "true")
	t.Setenv("PSICO_REDIS_DB", "3")
	t.Setenv("PSICO_LOG_LEVEL", "debug")
	t.Setenv("PSICO_LOG_FORMAT", "json")

	c := Default()
	c.ApplyEnv()

	assert.Equal(t, DriverPostgres, c.Database.Driver)
	assert.Equal(t, "postgres://psico@localhost/psico?sslmode=disable", c.Database.DSN)
	assert.Equal(t, "cache:6379", c.Redis.Addr)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, 3, c.Redis.DB)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.NoError(t, c.Validate())
}
