package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("WHATSAPP_TOKEN", "")
	t.Setenv("GOOGLE_SHEET_REPORT_ID", "")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, "Asia/Bangkok", cfg.Ledger.Timezone)
	assert.Equal(t, 100.0, cfg.Ledger.MaxYield)
	assert.Equal(t, 3, cfg.Ledger.RecomputeAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Ledger.RecomputeBackoff)
	assert.False(t, cfg.WhatsApp.Enabled())
	assert.False(t, cfg.Sheets.Enabled())
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("MAX_YIELD_PER_SESSION", "lots")

	_, err := Load("testdata/missing.env")
	assert.ErrorContains(t, err, "MAX_YIELD_PER_SESSION")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{Port: "8080"},
			Storage:   StorageConfig{Driver: StorageMongoDB},
			MongoDB:   MongoDBConfig{URI: "mongodb://localhost:27017", DBName: "milkledger"},
			Ledger:    LedgerConfig{Timezone: "Asia/Bangkok", MaxYield: 100, RecomputeAttempts: 3},
			Reporting: ReportingConfig{ReconcileCron: "15 0 * * *", ReportCron: "0 20 * * *"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing mongo uri", mutate: func(c *Config) { c.MongoDB.URI = "" }, wantErr: "MONGODB_URI"},
		{name: "memory needs no uri", mutate: func(c *Config) { c.Storage.Driver = StorageMemory; c.MongoDB.URI = "" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "STORAGE_DRIVER"},
		{name: "bad timezone", mutate: func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }, wantErr: "FARM_TIMEZONE"},
		{name: "zero max yield", mutate: func(c *Config) { c.Ledger.MaxYield = 0 }, wantErr: "MAX_YIELD_PER_SESSION"},
		{name: "zero attempts", mutate: func(c *Config) { c.Ledger.RecomputeAttempts = 0 }, wantErr: "RECOMPUTE_ATTEMPTS"},
		{name: "partial whatsapp", mutate: func(c *Config) { c.WhatsApp.AccessToken = "token" }, wantErr: "WHATSAPP_PHONE_NUMBER_ID"},
		{name: "sheets without credentials", mutate: func(c *Config) { c.Sheets.SpreadsheetID = "sheet" }, wantErr: "GOOGLE_SHEETS_CREDENTIALS_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}
