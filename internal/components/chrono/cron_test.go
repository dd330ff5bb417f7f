package chrono

import (
	"testing"
	"time"

	"hdymonitor/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestValidateCron(t *testing.T) {
	require.NoError(t, ValidateCron("*/5 * * * *"))
	require.NoError(t, ValidateCron("@every 1m"))
	require.Error(t, ValidateCron("every five minutes"))
	require.Error(t, ValidateCron("* * *"))
}

func TestStandardCronRunsCallback(t *testing.T) {
	tel := &telemetry.Recorder{}
	c := NewStandardCron(time.UTC, tel)

	fired := make(chan struct{}, 4)
	require.NoError(t, c.Cron("@every 1s", func() {
		fired <- struct{}{}
	}))
	require.Error(t, c.Cron("nonsense", func() {}))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("callback was never scheduled")
	}

	<-c.Stop().Done()
	require.Empty(t, tel.Broken())
}
