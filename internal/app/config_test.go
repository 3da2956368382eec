package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/paydash/internal/ledger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$hash")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 10*time.Minute, cfg.CacheTTL)
	require.Equal(t, "数据源", cfg.ImportSheet)
	require.Equal(t, int64(20<<20), cfg.ImportMaxBytes)
	require.Equal(t, []string{"SLEEMAN", "Arc-en-ciel"}, cfg.LedgerExcludedVendors)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresAdminHash(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD_HASH", "   ")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNonPositiveUploadLimit(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$hash")
	t.Setenv("IMPORT_MAX_BYTES", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestPolicyOverrides(t *testing.T) {
	cfg := &Config{
		LedgerAutoPayDays:        14,
		LedgerDistributionCap:    5,
		LedgerExcludedVendors:    []string{" SLEEMAN ", ""},
		LedgerDepartmentPriority: []string{"菜部", " 杂货"},
		LedgerDefaultDepartment:  "菜部",
	}
	policy := cfg.Policy()
	require.Equal(t, 14, policy.AutoPayWindowDays)
	require.Equal(t, 5, policy.DistributionCap)
	require.Equal(t, []string{"SLEEMAN"}, policy.ExcludedVendors)
	require.Equal(t, []string{"菜部", "杂货"}, policy.DepartmentPriority)
	require.Equal(t, "菜部", policy.DefaultDepartment)
}

func TestPolicyKeepsDefaultsWhenUnset(t *testing.T) {
	require.Equal(t, ledger.DefaultPolicy(), (&Config{}).Policy())

	var nilCfg *Config
	require.Equal(t, ledger.DefaultPolicy(), nilCfg.Policy())

	cleared := (&Config{LedgerExcludedVendors: []string{}}).Policy()
	require.Empty(t, cleared.ExcludedVendors)
}
