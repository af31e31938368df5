package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/opsboard/internal/domain"
)

// Pinger is satisfied by *pgxpool.Pool and *postgres.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker grades a Ping round trip by latency.
type PingChecker struct {
	Target     Pinger
	Thresholds Thresholds
}

func (p *PingChecker) Check(ctx context.Context) (Outcome, error) {
	start := time.Now()
	if err := p.Target.Ping(ctx); err != nil {
		return Outcome{LatencyMS: ms(time.Since(start))}, fmt.Errorf("ping: %w", err)
	}
	latency := time.Since(start)
	return Outcome{
		Status:    p.Thresholds.Classify(latency),
		Message:   "ping ok",
		LatencyMS: ms(latency),
	}, nil
}

// redisPinger is the part of redis.UniversalClient used here.
type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker sends PING and expects PONG.
type RedisChecker struct {
	Client     redisPinger
	Thresholds Thresholds
}

// NewRedisChecker accepts either a redis:// URL or host:port.
func NewRedisChecker(target string, th Thresholds) (*RedisChecker, error) {
	var opt *redis.Options
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: target}
	}
	return &RedisChecker{Client: redis.NewClient(opt), Thresholds: th}, nil
}

func (r *RedisChecker) Check(ctx context.Context) (Outcome, error) {
	start := time.Now()
	reply, err := r.Client.Ping(ctx).Result()
	latency := time.Since(start)
	if err != nil {
		return Outcome{LatencyMS: ms(latency)}, fmt.Errorf("redis ping: %w", err)
	}
	out := Outcome{
		Status:    r.Thresholds.Classify(latency),
		Message:   reply,
		LatencyMS: ms(latency),
	}
	if !strings.EqualFold(reply, "PONG") {
		out.Status = domain.StatusWarning
	}
	return out, nil
}

// bucketChecker is the part of *minio.Client used here.
type bucketChecker interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// ObjectStoreChecker verifies an S3-compatible endpoint answers and the
// bucket exists. A missing bucket is WARNING: the service is up but uploads
// will fail.
type ObjectStoreChecker struct {
	Client     bucketChecker
	Bucket     string
	Thresholds Thresholds
}

type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

func NewObjectStoreChecker(cfg ObjectStoreConfig, th Thresholds) (*ObjectStoreChecker, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &ObjectStoreChecker{Client: mc, Bucket: cfg.Bucket, Thresholds: th}, nil
}

func (o *ObjectStoreChecker) Check(ctx context.Context) (Outcome, error) {
	start := time.Now()
	exists, err := o.Client.BucketExists(ctx, o.Bucket)
	latency := time.Since(start)
	if err != nil {
		return Outcome{LatencyMS: ms(latency)}, fmt.Errorf("check bucket %s: %w", o.Bucket, err)
	}
	out := Outcome{
		Status:    o.Thresholds.Classify(latency),
		Message:   "bucket present",
		LatencyMS: ms(latency),
		Details:   map[string]any{"bucket": o.Bucket},
	}
	if !exists {
		out.Status = domain.StatusWarning
		out.Message = "bucket missing"
	}
	return out, nil
}
