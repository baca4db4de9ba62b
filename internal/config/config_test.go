package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "0x1a2B3c4D5e6F7a8B9c0D1e2F3a4B5c6D7e8F9a0B"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: http://pool.local
  account: `+testAccount+`
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceAPI, cfg.Source.Kind)
	assert.Equal(t, "0x1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b", cfg.Source.Account)
	assert.Equal(t, 120*time.Second, cfg.Chart.PollInterval)
	assert.Equal(t, 120*time.Second, cfg.Chart.StalenessThreshold)
	assert.Equal(t, "ETH", cfg.Chart.DisplayUnit)
	assert.Equal(t, "en-US", cfg.Chart.Locale)
	assert.True(t, cfg.Chart.PushOnStart)
	assert.Equal(t, 10*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 120*time.Second, cfg.PollInterval())
	assert.Equal(t, 120*time.Second, cfg.StalenessThreshold())
}

func TestLoadOverridesAndEnv(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: http://pool.local
  account: `+testAccount+`
chart:
  poll_interval: 30s
  display_unit: ETC
  timezone: UTC
`)
	t.Setenv("PAYOUTCHART_CHART_STALENESS_THRESHOLD", "5m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Chart.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.Chart.StalenessThreshold)
	assert.Equal(t, "ETC", cfg.Chart.DisplayUnit)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLiveValuesFollowReload(t *testing.T) {
	path := writeConfig(t, `
source:
  base_url: http://pool.local
  account: `+testAccount+`
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.v.Set("chart.poll_interval", "45s")
	assert.Equal(t, 120*time.Second, cfg.PollInterval(), "viper state is not read directly")

	cfg.reload(zerolog.Nop(), path)
	assert.Equal(t, 45*time.Second, cfg.PollInterval())

	cfg.v.Set("chart.staleness_threshold", "-1s")
	cfg.reload(zerolog.Nop(), path)
	assert.Equal(t, 120*time.Second, cfg.StalenessThreshold(), "negative reload is ignored")

	static := &Config{Chart: ChartConfig{PollInterval: time.Second}}
	assert.Equal(t, time.Second, static.PollInterval())
}

func TestWatchUpdatesLiveValuesWhileRead(t *testing.T) {
	body := `
source:
  base_url: http://pool.local
  account: ` + testAccount + `
chart:
  poll_interval: %s
  staleness_threshold: %s
`
	path := writeConfig(t, fmt.Sprintf(body, "30s", "60s"))
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Watch(zerolog.Nop())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = cfg.PollInterval()
				_ = cfg.StalenessThreshold()
			}
		}
	}()

	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(body, "45s", "90s")), 0o600))
	require.Eventually(t, func() bool {
		return cfg.PollInterval() == 45*time.Second && cfg.StalenessThreshold() == 90*time.Second
	}, 5*time.Second, 10*time.Millisecond)

	close(stop)
	wg.Wait()
}

func TestStartupDelay(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  base_url: http://pool.local
  account: `+testAccount+`
chart:
  startup_delay: 3s
`))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Chart.StartupDelay)

	_, err = Load(writeConfig(t, `
source:
  base_url: http://pool.local
  account: `+testAccount+`
chart:
  startup_delay: -3s
`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"bad account": `
source:
  base_url: http://pool.local
  account: not-an-address
`,
		"missing base url": `
source:
  account: ` + testAccount + `
`,
		"unknown kind": `
source:
  kind: kafka
  account: ` + testAccount + `
`,
		"postgres without dsn": `
source:
  kind: postgres
  account: ` + testAccount + `
`,
		"negative interval": `
source:
  base_url: http://pool.local
  account: ` + testAccount + `
chart:
  poll_interval: -1s
`,
		"telegram without token": `
source:
  base_url: http://pool.local
  account: ` + testAccount + `
alerting:
  telegram:
    enabled: true
    chat_id: "1"
`,
		"bad timezone": `
source:
  base_url: http://pool.local
  account: ` + testAccount + `
chart:
  timezone: Mars/Olympus
`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestFileSourceNeedsNoAccount(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  kind: file
  file: payments.json
`))
	require.NoError(t, err)
	assert.Equal(t, SourceFile, cfg.Source.Kind)
}
