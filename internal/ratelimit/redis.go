package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis：共享窗口计数存储
// 背景：INCR 首次命中时设置窗口过期，多实例部署共享同一配额
// 约束：INCR 与 PEXPIRE 非原子，极端竞争下窗口可能少量延后，准入方向不受影响
type Redis struct {
	rc *redis.Client
}

func NewRedis(rc *redis.Client) *Redis { return &Redis{rc: rc} }

func (r *Redis) Take(ctx context.Context, key string, window time.Duration, quota int) (Result, error) {
	k := "rl:" + key
	n, err := r.rc.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	if n == 1 {
		_ = r.rc.PExpire(ctx, k, window).Err()
	}
	ttl, err := r.rc.PTTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	resetAt := time.Now().Add(ttl)
	if int(n) > quota {
		retry := int((ttl + time.Second - 1) / time.Second)
		if retry < 1 {
			retry = 1
		}
		return Result{Allowed: false, Limit: quota, Remaining: 0, ResetAt: resetAt, RetryAfter: retry}, nil
	}
	return Result{Allowed: true, Limit: quota, Remaining: quota - int(n), ResetAt: resetAt}, nil
}
