package test

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/zgoteam/authengine"
	"github.com/zgoteam/authengine/userstore"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := authengine.DefaultConfig()
	// cfg.JWT.PrivateKeyPEM / PublicKeyPEM come from key files in real deployments.

	engine, _ := authengine.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(userstore.NewMemoryStore()).
		Build()
	_ = engine
}

// ExampleEngine_Login shows a typical login entrypoint call and structured error handling.
func ExampleEngine_Login() {
	var engine *authengine.Engine
	pair, err := engine.Login(context.Background(), "alice", "password")
	if err != nil {
		_ = err
	}
	_ = pair
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *authengine.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
