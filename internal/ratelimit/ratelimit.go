// 包 ratelimit：公共提交入口的按 IP 准入控制；固定窗口计数，存储后端可注入
package ratelimit

import (
	"context"
	"os"
	"strconv"
	"time"

	"pontos-api/internal/logger"

	"github.com/redis/go-redis/v9"
)

// Result：一次准入判定的结果
// 背景：拒绝时 RetryAfter 为距窗口重置的剩余秒数，向上取整保证客户端等满窗口
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Store：窗口计数存储
// 背景：按重构要求以显式注入替代包级全局 map，测试间可重建实例实现确定性复位
type Store interface {
	Take(ctx context.Context, key string, window time.Duration, quota int) (Result, error)
}

// Limiter：固定窗口限流器
// 约束：默认 30s 窗口、配额 1；仅作用于公共创建路径，后台写入不经过此层
type Limiter struct {
	store  Store
	window time.Duration
	quota  int
}

func New(store Store, window time.Duration, quota int) *Limiter {
	if window <= 0 {
		window = 30 * time.Second
	}
	if quota <= 0 {
		quota = 1
	}
	return &Limiter{store: store, window: window, quota: quota}
}

// NewFromEnv：按环境变量装配限流器
// 背景：RATE_LIMIT_BACKEND=redis 且客户端可用时使用共享计数，否则进程内存；
// 进程本地为已接受的限制（水平扩容下配额按实例计）
func NewFromEnv(rc *redis.Client) *Limiter {
	window := 30 * time.Second
	if v := os.Getenv("RATE_LIMIT_WINDOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = time.Duration(n) * time.Millisecond
		}
	}
	quota := 1
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			quota = n
		}
	}
	var st Store
	if os.Getenv("RATE_LIMIT_BACKEND") == "redis" && rc != nil {
		st = NewRedis(rc)
		logger.L().Info("ratelimit_backend", "backend", "redis")
	} else {
		st = NewMemory(5 * time.Minute)
		logger.L().Info("ratelimit_backend", "backend", "memory")
	}
	return New(st, window, quota)
}

// Check：判定指定客户端键是否放行
// 约束：存储故障时放行并记录，准入控制不得成为提交路径的单点
func (l *Limiter) Check(ctx context.Context, key string) Result {
	res, err := l.store.Take(ctx, key, l.window, l.quota)
	if err != nil {
		logger.L().Error("ratelimit_store_error", "err", err)
		return Result{Allowed: true, Limit: l.quota, Remaining: 0, ResetAt: time.Now().Add(l.window)}
	}
	return res
}

// Headers：限流响应头（放行与拒绝都返回，拒绝时附 Retry-After）
func Headers(res Result) map[string]string {
	h := map[string]string{
		"X-RateLimit-Limit":     strconv.Itoa(res.Limit),
		"X-RateLimit-Remaining": strconv.Itoa(res.Remaining),
		"X-RateLimit-Reset":     res.ResetAt.UTC().Format(time.RFC3339),
	}
	if res.RetryAfter > 0 {
		h["Retry-After"] = strconv.Itoa(res.RetryAfter)
	}
	return h
}
