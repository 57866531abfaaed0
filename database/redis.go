package database

import (
	"context"
	"examportal/config"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the global redis connection, nil when REDIS_ADDR is unset.
// It is used only for report caching; the wallet never depends on it.
var RedisClient *redis.Client

// ConnectRedis connects to redis if an address is configured
func ConnectRedis() {
	if config.AppConfig.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, report caching disabled.")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: redis unreachable (%v), report caching disabled.", err)
		return
	}

	RedisClient = client
	log.Println("Connected to redis.")
}
