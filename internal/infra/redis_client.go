package infra

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient 基于环境变量创建 Redis 客户端，DANMU_REDIS_ADDR=off 时返回 nil。
// 使用的环境变量：
//
//	DANMU_REDIS_ADDR   例：localhost:6379
//	DANMU_REDIS_PASS   例：password，可为空
//	DANMU_REDIS_DB     例：0（整数）
//	DANMU_REDIS_POOL   例：20，连接池大小
func NewRedisClient() *redis.Client {
	addr := os.Getenv("DANMU_REDIS_ADDR")
	switch addr {
	case "":
		addr = "localhost:6379" // 默认指向 docker-compose 暴露的本机端口
	case "off":
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("DANMU_REDIS_PASS"),
		DB:           envInt("DANMU_REDIS_DB", 0),
		PoolSize:     envInt("DANMU_REDIS_POOL", 20),
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  2 * time.Second,
	})
}

// PingRedis 用于启动阶段验证连接；若 client 为 nil 则直接返回 nil。
func PingRedis(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return nil
	}
	_, err := client.Ping(ctx).Result()
	return err
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
