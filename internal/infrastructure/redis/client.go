package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "totp-auth"
	pingTimeout      = 2 * time.Second
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Namespace prefixes every key so several deployments can share a
	// Redis database. Defaults to "totp-auth".
	Namespace string
}

// Client is the Redis connection backing the fixed-window rate limiter.
type Client struct {
	rdb       *goredis.Client
	namespace string
}

func New(opts Options) *Client {
	ns := strings.Trim(opts.Namespace, ":")
	if ns == "" {
		ns = defaultNamespace
	}
	return &Client{
		namespace: ns,
		rdb: goredis.NewClient(&goredis.Options{
			Addr:         opts.Addr,
			Password:     opts.Password,
			DB:           opts.DB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			// limiter calls sit on the request path; never queue behind a dead server
			MaxRetries: 1,
		}),
	}
}

// key joins parts under the client namespace: ns:part1:part2.
func (c *Client) key(parts ...string) string {
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Ping is bounded by ctx and by a 2s ceiling.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
