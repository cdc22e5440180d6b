package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis for rate limiting and the availability
// cache.  Supported variables:
//
//	REDIS_ADDR      host:port (REDIS_HOST and REDIS_PORT override it when both set)
//	REDIS_PASSWORD  optional password
//	REDIS_DB        database number, default 0
//	REDIS_TLS       "true" or "1" enables TLS
//
// A client that does not answer PING within two seconds is closed and an
// error returned; callers run without Redis in that case.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	var tlsConf *tls.Config
	if envBool("REDIS_TLS", false) {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        envInt("REDIS_DB", 0),
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
