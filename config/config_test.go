package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbstack/bscarb/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bsc, ok := cfg.Networks["bsc"]
	require.True(t, ok)
	assert.Equal(t, uint64(56), bsc.ChainID)
	assert.Len(t, bsc.Venues, 3)
	assert.NotEmpty(t, bsc.Pairs)
	assert.NotEmpty(t, bsc.Endpoints)
}

func TestProfilesParameters(t *testing.T) {
	conservative, err := ProfileByName(ProfileConservative)
	require.NoError(t, err)
	assert.Equal(t, 0.35, conservative.Fees.TotalPct())
	assert.Equal(t, 0.5, conservative.MinNetProfitPct)
	assert.Equal(t, 30*time.Second, conservative.ScanInterval.Std())
	assert.Equal(t, 2, conservative.MaxExecutionsPerCycle)

	aggressive, err := ProfileByName(ProfileAggressive)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, aggressive.Fees.TotalPct(), 1e-9)
	assert.Equal(t, 0.05, aggressive.MinNetProfitPct)
	assert.Equal(t, 10*time.Second, aggressive.ScanInterval.Std())
	assert.Equal(t, 3, aggressive.MaxExecutionsPerCycle)

	require.NoError(t, conservative.Validate())
	require.NoError(t, aggressive.Validate())
}

func TestProfileByNameUnknown(t *testing.T) {
	_, err := ProfileByName("reckless")
	assert.Error(t, err)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profile = "bogus"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Networks = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	net := cfg.Networks["bsc"]
	net.Contract = "not-an-address"
	cfg.Networks["bsc"] = net
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	net = cfg.Networks["bsc"]
	net.Pairs = [][2]string{{"WBNB", "WBNB"}}
	cfg.Networks["bsc"] = net
	assert.Error(t, cfg.Validate(), "degenerate pairs are rejected")

	cfg = DefaultConfig()
	net = cfg.Networks["bsc"]
	net.Pairs = [][2]string{{"WBNB", "DOGE"}}
	cfg.Networks["bsc"] = net
	assert.Error(t, cfg.Validate(), "pairs must reference configured tokens")
}

func TestValidateAllowsEmptyEndpoints(t *testing.T) {
	cfg := DefaultConfig()
	net := cfg.Networks["bsc"]
	net.Endpoints = nil
	cfg.Networks["bsc"] = net
	assert.NoError(t, cfg.Validate(),
		"a network without endpoints is disabled, not invalid")
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"profile": "aggressive",
		"status_listen_addr": ":9999"
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProfileAggressive, cfg.Profile)
	assert.Equal(t, ":9999", cfg.StatusListenAddr)
	// Unspecified sections keep their defaults.
	assert.Equal(t, 3, cfg.Gateway.BreakerThreshold)
	assert.Contains(t, cfg.Networks, types.Network("bsc"))
}

func TestLoadConfigDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"gateway": {"min_interval": "250ms", "breaker_cooldown": "1m"},
		"executor": {"confirm_timeout": "90s"}
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.MinInterval.Std())
	assert.Equal(t, time.Minute, cfg.Gateway.BreakerCooldown.Std())
	assert.Equal(t, 90*time.Second, cfg.Executor.ConfirmTimeout.Std())
	// Unspecified durations keep their defaults.
	assert.Equal(t, time.Second, cfg.Gateway.RetryBackoff.Std())
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"500ms"`)))
	assert.Equal(t, 500*time.Millisecond, d.Std())

	// Integer nanoseconds stay accepted for old config files.
	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"not a duration"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	out, err := Duration(30 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"30s"`, string(out))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.json")
	assert.Error(t, err)
}

func TestLoadConfigEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ProfileConservative, cfg.Profile)
}

func TestTokenAddress(t *testing.T) {
	bsc := DefaultConfig().Networks["bsc"]

	addr, ok := bsc.TokenAddress("WBNB")
	require.True(t, ok)
	assert.Equal(t, "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", addr.Hex())

	_, ok = bsc.TokenAddress("DOGE")
	assert.False(t, ok)
}

func TestStableSet(t *testing.T) {
	bsc := DefaultConfig().Networks["bsc"]
	set := bsc.StableSet()

	require.Len(t, set, 3)
	busd, _ := bsc.TokenAddress("BUSD")
	wbnb, _ := bsc.TokenAddress("WBNB")
	assert.True(t, set[busd])
	assert.False(t, set[wbnb])
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvTelegramBotToken, "env-token")
	t.Setenv(EnvTelegramChatID, "env-chat")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "env-chat", cfg.Telegram.ChatID)
}
