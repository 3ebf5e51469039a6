package common

import (
	"bytes"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestServerConfigString(t *testing.T) {
	conf := DefaultServerConfig()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "server_config", []byte(conf.String()))
}

func TestClientConfigString(t *testing.T) {
	conf := ClientConfig{
		Endpoints:     []string{"http://localhost:8080", "http://localhost:8081"},
		TimeoutSecond: 5,
		RetryCount:    3,
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "client_config", []byte(conf.String()))
}

func TestToServiceConfig(t *testing.T) {
	conf := DefaultServerConfig()
	svc := conf.ToServiceConfig()

	assert.True(t, svc.Enabled)
	assert.Equal(t, 1000, svc.CacheSize)
	assert.Equal(t, 300*time.Second, svc.CacheTTL)
	assert.Equal(t, 60*time.Second, svc.FlushInterval)
	assert.Equal(t, 30*time.Second, svc.FlushTimeout)
	assert.Equal(t, 16, svc.Workers)

	opts := conf.ToStoreOptions()
	assert.Equal(t, "wbkv.db", opts.Path)
	assert.Equal(t, "sqlite", opts.Driver)
}

func TestParseLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "warning", "error", "INFO"} {
		_, err := ParseLogLevel(lvl)
		assert.NoError(t, err, lvl)
	}
	_, err := ParseLogLevel("loud")
	assert.Error(t, err)

	require.NoError(t, InitLoggers("debug"))
	require.NoError(t, InitLoggers("info"), "init must be repeatable")
	assert.Error(t, InitLoggers("loud"))
}

func TestLineLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("savesvc", &buf)

	l.Infof("flushed %d records", 3)
	l.Debugf("hidden")
	assert.Contains(t, buf.String(), "INFO  | savesvc    | flushed 3 records\n")
	assert.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	l.SetLevel(logger.ERROR)
	l.Warningf("hidden")
	l.Errorf("failed: %v", "boom")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
	assert.Contains(t, buf.String(), "ERROR | savesvc    | failed: boom")

	buf.Reset()
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible")
	assert.Contains(t, buf.String(), "DEBUG | savesvc    | visible")

	assert.PanicsWithValue(t, "fatal 1", func() { l.Panicf("fatal %d", 1) })
	assert.Contains(t, buf.String(), "PANIC | savesvc    | fatal 1")
}

func TestHTTPStatus(t *testing.T) {
	resp := NewResponse(0, "")
	code, err := resp.RetCode()
	require.NoError(t, err)
	assert.Equal(t, "OFFLINE", code.String())
	assert.Equal(t, 503, HTTPStatus(code))

	_, err = (&Response{Code: "bogus"}).RetCode()
	assert.Error(t, err)
}
