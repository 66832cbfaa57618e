package services

import (
	"testing"
	"time"

	"grantlink/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := config.Redis
	config.Redis = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		config.Redis.Close()
		config.Redis = prev
	})
	return mr
}

func TestPresenceFollowsSubscriptionLifecycle(t *testing.T) {
	setupTestRedis(t)

	sub := &Subscriber{Send: make(chan []byte, 16), UserID: "uid-presence"}
	Feed.Subscribe(sub)
	assert.True(t, UserOnline("uid-presence"))

	Feed.Unsubscribe(sub)
	assert.False(t, UserOnline("uid-presence"))
}

func TestPresenceExpiresWithoutHeartbeat(t *testing.T) {
	mr := setupTestRedis(t)

	// 模拟实例崩溃：上线后没有任何心跳续期和下线清理
	setOnline("uid-crashed", true)
	assert.True(t, UserOnline("uid-crashed"))

	mr.FastForward(onlineTTL + time.Second)
	assert.False(t, UserOnline("uid-crashed"))
}

func TestPresenceHeartbeatExtendsTTL(t *testing.T) {
	mr := setupTestRedis(t)

	setOnline("uid-alive", true)
	mr.FastForward(2 * pingInterval)
	assert.True(t, UserOnline("uid-alive"))

	// 续期后再过原 TTL 的大半仍在线
	setOnline("uid-alive", true)
	mr.FastForward(2 * pingInterval)
	assert.True(t, UserOnline("uid-alive"))
}
