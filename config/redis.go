package config

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is optional. When REDIS_ADDR is set the geolocation cache is shared
// across instances; otherwise each process keeps its own in-memory cache.
var Redis *redis.Client

func InitRedis() {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis unavailable at %s, falling back to in-memory cache: %v", addr, err)
		return
	}

	Redis = r
	log.Println("Redis connected successfully")
}
