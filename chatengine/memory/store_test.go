package memory

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/chatflow/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 ChatStore 一致性测试，三种后端共用
// =============================================================================

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisChatStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisChatStore(client, RedisStoreConfig{TTL: ttl}, zap.NewNop())
}

func setupTestSQL(t *testing.T) *SQLChatStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: 每个连接一个独立库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store, err := NewSQLChatStore(db, zap.NewNop())
	require.NoError(t, err)
	return store
}

func storeBackends(t *testing.T) map[string]ChatStore {
	_, rs := setupTestRedis(t, 0)
	return map[string]ChatStore{
		"memory": NewInMemoryChatStore(),
		"redis":  rs,
		"sql":    setupTestSQL(t),
	}
}

func TestChatStore_Conformance(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			msgs, err := store.GetMessages(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, msgs)

			u := types.NewUserMessage("hello").WithMetadata("lang", "en")
			a := types.NewAssistantMessage("hi there")
			require.NoError(t, store.AddMessage(ctx, "s1", u))
			require.NoError(t, store.AddMessage(ctx, "s1", a))
			require.NoError(t, store.AddMessage(ctx, "s2", types.NewUserMessage("other")))

			msgs, err = store.GetMessages(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, types.RoleUser, msgs[0].Role)
			assert.Equal(t, "hello", msgs[0].Content)
			assert.Equal(t, "en", msgs[0].Metadata["lang"])
			assert.Equal(t, types.RoleAssistant, msgs[1].Role)
			assert.Equal(t, "hi there", msgs[1].Content)
			assert.WithinDuration(t, u.CreatedAt, msgs[0].CreatedAt, time.Second)

			require.NoError(t, store.DeleteMessages(ctx, "s1"))
			msgs, err = store.GetMessages(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, msgs)

			// 其他会话不受影响
			msgs, err = store.GetMessages(ctx, "s2")
			require.NoError(t, err)
			assert.Len(t, msgs, 1)
		})
	}
}

func TestInMemoryChatStore_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryChatStore()
	require.NoError(t, store.AddMessage(ctx, "k", types.NewUserMessage("a")))

	msgs, _ := store.GetMessages(ctx, "k")
	msgs[0].Content = "mutated"

	again, _ := store.GetMessages(ctx, "k")
	assert.Equal(t, "a", again[0].Content)
}

func TestInMemoryChatStore_MetadataIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryChatStore()
	msg := types.NewUserMessage("a").WithMetadata("lang", "en")
	require.NoError(t, store.AddMessage(ctx, "k", msg))

	// 调用方保留的 map 与读出的 map 都不影响已存储的消息
	msg.Metadata["lang"] = "de"
	msgs, err := store.GetMessages(ctx, "k")
	require.NoError(t, err)
	msgs[0].Metadata["lang"] = "fr"

	again, err := store.GetMessages(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "en", again[0].Metadata["lang"])
}

func TestRedisChatStore_KeyPrefixAndTTL(t *testing.T) {
	mr, store := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.AddMessage(ctx, "abc", types.NewUserMessage("q")))

	assert.True(t, mr.Exists("chatflow:chat:abc"))
	assert.Equal(t, time.Minute, mr.TTL("chatflow:chat:abc"))

	mr.FastForward(2 * time.Minute)
	msgs, err := store.GetMessages(ctx, "abc")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRedisChatStore_CorruptEntry(t *testing.T) {
	mr, store := setupTestRedis(t, 0)
	_, err := mr.Push("chatflow:chat:bad", "{not json")
	require.NoError(t, err)

	_, err = store.GetMessages(context.Background(), "bad")
	assert.Error(t, err)
}

func TestRedisChatStore_ConnectionError(t *testing.T) {
	mr, store := setupTestRedis(t, 0)
	mr.Close()

	err := store.AddMessage(context.Background(), "k", types.NewUserMessage("q"))
	assert.Error(t, err)
}

func TestNewSQLChatStore_NilDB(t *testing.T) {
	_, err := NewSQLChatStore(nil, nil)
	assert.Error(t, err)
}

func TestSQLChatStore_PreservesOrderAcrossSessions(t *testing.T) {
	store := setupTestSQL(t)
	ctx := context.Background()

	for i, content := range []string{"1", "2", "3", "4"} {
		key := "a"
		if i%2 == 1 {
			key = "b"
		}
		require.NoError(t, store.AddMessage(ctx, key, types.NewUserMessage(content)))
	}

	msgs, err := store.GetMessages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "1", msgs[0].Content)
	assert.Equal(t, "3", msgs[1].Content)
}
