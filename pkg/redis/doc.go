// Package redis connects notifyd to Redis with go-redis.
//
// Redis is optional. When REDIS_URL is set notifyd uses it for the
// cross-instance admission lock (package redislock) and for realtime in-app
// fan-out over pub/sub (package inapp).
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//	}
//
// Keys and channels are namespaced with Key(cfg.KeyPrefix, ...).
package redis
