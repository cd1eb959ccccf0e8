package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mikey/mail-ledger/internal/adapters/cache"
	"github.com/mikey/mail-ledger/internal/adapters/openai"
	"github.com/mikey/mail-ledger/internal/adapters/repository"
	"github.com/mikey/mail-ledger/internal/config"
	"github.com/mikey/mail-ledger/internal/core"
	"github.com/mikey/mail-ledger/internal/merchant"
	"github.com/mikey/mail-ledger/internal/parsers"
	"github.com/mikey/mail-ledger/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(settings map[string]interface{}) *config.Config {
	v := config.NewEmptyViper()
	for k, val := range settings {
		v.Set(k, val)
	}
	return config.NewFromViper(v)
}

func TestCreateRepository(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(map[string]interface{}{"storage.type": "memory"})
	repo, err := NewRepositoryFactory(cfg, zap.NewNop()).CreateRepository(ctx)
	require.NoError(t, err)
	assert.IsType(t, &repository.MemoryRepository{}, repo)

	cfg = testConfig(map[string]interface{}{
		"storage.type":        "sqlite",
		"storage.sqlite_path": filepath.Join(t.TempDir(), "nested", "ledger.db"),
	})
	repo, err = NewRepositoryFactory(cfg, zap.NewNop()).CreateRepository(ctx)
	require.NoError(t, err)
	assert.IsType(t, &repository.SQLiteRepository{}, repo)
	require.NoError(t, repo.Close())

	cfg = testConfig(map[string]interface{}{"storage.type": "cassandra"})
	_, err = NewRepositoryFactory(cfg, zap.NewNop()).CreateRepository(ctx)
	assert.ErrorContains(t, err, "unsupported storage type")
}

func TestCreateClassifier(t *testing.T) {
	ctx := context.Background()
	tp := utils.NewTextProcessor(nil)

	cfg := testConfig(nil)
	c, err := NewClassifierFactory(cfg, zap.NewNop(), tp).CreateClassifier(ctx)
	require.NoError(t, err)
	assert.Nil(t, c, "disabled by default")

	cfg = testConfig(map[string]interface{}{"classifier.enabled": true, "classifier.provider": "mystic"})
	_, err = NewClassifierFactory(cfg, zap.NewNop(), tp).CreateClassifier(ctx)
	assert.ErrorContains(t, err, "unsupported classifier provider")

	cfg = testConfig(map[string]interface{}{"classifier.enabled": true, "classifier.provider": "openai"})
	_, err = NewClassifierFactory(cfg, zap.NewNop(), tp).CreateClassifier(ctx)
	assert.ErrorContains(t, err, "API key is required")

	cfg = testConfig(map[string]interface{}{"classifier.enabled": true, "classifier.provider": "gemini"})
	_, err = NewClassifierFactory(cfg, zap.NewNop(), tp).CreateClassifier(ctx)
	assert.ErrorContains(t, err, "API key is required")

	cfg = testConfig(map[string]interface{}{
		"classifier.enabled":  true,
		"classifier.provider": "openai",
		"openai.api_key":      "sk-test",
	})
	f := NewClassifierFactory(cfg, zap.NewNop(), tp)
	c, err = f.CreateClassifier(ctx)
	require.NoError(t, err)
	assert.IsType(t, &merchant.CachedClassifier{}, c)
	assert.NoError(t, f.Close())

	cfg = testConfig(map[string]interface{}{
		"classifier.enabled":    true,
		"classifier.provider":   "openai",
		"classifier.cache.type": "none",
		"openai.api_key":        "sk-test",
	})
	c, err = NewClassifierFactory(cfg, zap.NewNop(), tp).CreateClassifier(ctx)
	require.NoError(t, err)
	assert.IsType(t, &openai.OpenAIClient{}, c)
}

func TestCreateCache(t *testing.T) {
	cfg := testConfig(map[string]interface{}{"classifier.cache.type": "none"})
	c, err := NewCacheFactory(cfg, zap.NewNop()).CreateCache()
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg = testConfig(nil)
	c, err = NewCacheFactory(cfg, zap.NewNop()).CreateCache()
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryCache{}, c)
	c.Stop()

	cfg = testConfig(map[string]interface{}{
		"classifier.cache.type":        "sqlite",
		"classifier.cache.sqlite_path": filepath.Join(t.TempDir(), "cache", "merchants.db"),
	})
	c, err = NewCacheFactory(cfg, zap.NewNop()).CreateCache()
	require.NoError(t, err)
	assert.IsType(t, &cache.SQLiteCache{}, c)
	c.Stop()

	cfg = testConfig(map[string]interface{}{"classifier.cache.type": "redis"})
	_, err = NewCacheFactory(cfg, zap.NewNop()).CreateCache()
	assert.ErrorContains(t, err, "unsupported cache type")
}

func TestNewParserRegistry(t *testing.T) {
	cfg := testConfig(map[string]interface{}{
		"banks.promerica.senders": []string{"alertas@promerica.fi.cr", "info@promerica.fi.cr"},
		"banks.promerica.subject": "Comprobante",
	})
	reg, err := NewParserRegistry(cfg, zap.NewNop())
	require.NoError(t, err)

	sources := reg.Sources()
	require.Len(t, sources, 3)
	assert.Equal(t, core.BankSource{Bank: core.BankBAC, Sender: parsers.BACSender}, sources[0])
	assert.Equal(t, core.BankSource{Bank: core.BankPromerica, Sender: "alertas@promerica.fi.cr", Subject: "Comprobante"}, sources[1])

	p, ok := reg.Lookup("Alertas <alertas@promerica.fi.cr>")
	require.True(t, ok)
	assert.Equal(t, core.BankPromerica, p.Bank())
}

func TestNewParserRegistry_Conflict(t *testing.T) {
	cfg := testConfig(map[string]interface{}{
		"banks.promerica.senders": []string{parsers.BACSender},
	})
	_, err := NewParserRegistry(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "already registered")
}

func TestMailStoreFactory(t *testing.T) {
	cfg := testConfig(map[string]interface{}{"mail.username": ""})
	_, err := NewMailStoreFactory(cfg, zap.NewNop())()
	assert.ErrorContains(t, err, "mail.username")

	cfg = testConfig(map[string]interface{}{"mail.username": "me@example.com"})
	store, err := NewMailStoreFactory(cfg, zap.NewNop())()
	require.NoError(t, err)
	assert.Equal(t, core.StateDisconnected, store.State())
}

func TestCreateRunners(t *testing.T) {
	repo := repository.NewMemoryRepository(zap.NewNop())
	service := core.NewIngestionService(nil, parsers.NewDefaultRegistry(), nil, repo, nil, zap.NewNop(), "")

	cfg := testConfig(map[string]interface{}{"intake.enabled": true})
	runners := NewRunnerFactory(cfg, zap.NewNop(), service, repo).CreateRunners()
	assert.Len(t, runners, 3)

	cfg = testConfig(map[string]interface{}{"api.enabled": false, "scheduler.enabled": false})
	runners = NewRunnerFactory(cfg, zap.NewNop(), service, repo).CreateRunners()
	assert.Empty(t, runners)
}
