package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, StoreMongo, cfg.Store.Driver)
	require.Equal(t, 16, cfg.Files.MaxFileVersion)
	require.Equal(t, 250, cfg.Delta.DefaultLimit)
	require.Equal(t, StorageLocal, cfg.Storage.Driver)
	require.Equal(t, 15*time.Minute, cfg.Download.TTL)
	require.Equal(t, "drive:events", cfg.Events.Stream)
}

func TestFromViperRejectsMaxFileVersionBelowTwo(t *testing.T) {
	for _, n := range []int{1, 0, -3} {
		v := viper.New()
		setDefaults(v)
		v.Set("MAX_FILE_VERSION", n)

		cfg, err := fromViper(v)
		require.Error(t, err)
		require.Nil(t, cfg)
		require.Contains(t, err.Error(), "MAX_FILE_VERSION")
	}

	v := viper.New()
	setDefaults(v)
	v.Set("MAX_FILE_VERSION", 2)
	v.Set("STORE_DRIVER", "MEMORY")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Files.MaxFileVersion)
	require.Equal(t, StoreMemory, cfg.Store.Driver)
}

func TestSplitAndTrim(t *testing.T) {
	require.Nil(t, splitAndTrim(""))
	require.Equal(t, []string{"a", "b"}, splitAndTrim(" a, ,b "))
}

func TestParseDurationFallback(t *testing.T) {
	require.Equal(t, time.Second, parseDuration("bogus", time.Second))
	require.Equal(t, 2*time.Minute, parseDuration("2m", time.Second))
}
