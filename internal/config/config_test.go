package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Service.HTTPAddr)
	assert.Equal(t, 5, cfg.WriteQueue.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.WriteQueue.DrainInterval)

	p := cfg.RefundPolicy.Policy()
	assert.True(t, p.Enabled)
	assert.True(t, decimal.NewFromInt(200).Equal(p.MaxManagerRefund))
	assert.True(t, decimal.NewFromInt(50).Equal(p.SmallAmountThreshold))
	assert.Equal(t, []string{"cash", "card"}, p.AllowedPaymentMethods)
	assert.Equal(t, 24*time.Hour, p.TimeLimit)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, `
service:
  name: pos-2
  http_addr: ":9090"
write_queue:
  max_retries: 3
  drain_interval: 5s
refund_policy:
  enabled: true
  max_manager_refund: 150.50
  small_amount_threshold: "20"
  allowed_payment_methods: [cash]
  time_limit: 2h
integration:
  print_receipts: false
`)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("PRINT_RECEIPTS", "true")
	t.Setenv("DATABASE_URL", "postgres://kitchen@localhost/kitchen")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pos-2", cfg.Service.Name)
	assert.Equal(t, ":7070", cfg.Service.HTTPAddr)
	assert.Equal(t, 3, cfg.WriteQueue.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.WriteQueue.DrainInterval)
	assert.Equal(t, 30*time.Second, cfg.WriteQueue.SendTimeout, "unset keys keep defaults")
	assert.True(t, cfg.Integration.PrintReceipts)
	assert.Equal(t, "postgres://kitchen@localhost/kitchen", cfg.Postgres.URL)

	p := cfg.RefundPolicy.Policy()
	assert.True(t, decimal.RequireFromString("150.50").Equal(p.MaxManagerRefund))
	assert.True(t, decimal.NewFromInt(20).Equal(p.SmallAmountThreshold))
	assert.Equal(t, []string{"cash"}, p.AllowedPaymentMethods)
	assert.Equal(t, 2*time.Hour, p.TimeLimit)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.WriteQueue.MaxRetries = 0
	cfg.RefundPolicy.ApprovalThreshold = decimal.NewFromInt(-1)

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "max_retries")
	assert.Contains(t, err.Error(), "thresholds")
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadBadPrintReceipts(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PRINT_RECEIPTS", "maybe")
	_, err := Load("")
	assert.Error(t, err)
}

func TestProbeTargetFallsBackToAlertURL(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.ProbeTarget())

	cfg.Monitoring.AlertURL = "http://alerts.local/in"
	assert.Equal(t, "http://alerts.local/in", cfg.ProbeTarget())

	cfg.Connectivity.ProbeInterval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Connectivity.ProbeInterval = time.Second
	cfg.Connectivity.ProbeURL = "http://probe.local/health"
	assert.Equal(t, "http://probe.local/health", cfg.ProbeTarget())
	assert.NoError(t, cfg.Validate())
}
