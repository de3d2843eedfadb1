package cache

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicedesk/internal/config"
)

func TestConnectRedis_Disabled(t *testing.T) {
	rdb, err := ConnectRedis(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.NoError(t, DisconnectRedis(nil))
}

func TestConnectRedis_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := ConnectRedis(&config.Config{RedisAddr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, rdb)
	assert.NoError(t, DisconnectRedis(rdb))
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(&config.Config{RedisAddr: addr})
	assert.Error(t, err)
}
