package testutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
)

const (
	// RedisURLEnv points tests at an existing Redis instead of a container.
	RedisURLEnv = "ROADMAP_TEST_REDIS_URL"

	redisImage = "redis:7-alpine"
	redisPort  = nat.Port("6379/tcp")
)

// RedisURL returns the URL of a Redis instance for the test. It uses
// RedisURLEnv when set, otherwise starts a container that is removed when
// the test finishes. Skipped in -short mode or without Docker.
func RedisURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv(RedisURLEnv); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("skipping redis container in short mode")
	}

	cli := DockerClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	reader, err := cli.ImagePull(ctx, redisImage, image.PullOptions{})
	if err != nil {
		t.Fatalf("failed to pull %s: %v", redisImage, err)
	}
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()

	resp, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        redisImage,
			ExposedPorts: nat.PortSet{redisPort: struct{}{}},
			Labels:       ContainerLabels(t),
		},
		&container.HostConfig{
			PortBindings: nat.PortMap{
				redisPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
			},
		},
		nil, nil, UniqueContainerName(t, "redis"))
	if err != nil {
		t.Fatalf("failed to create redis container: %v", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	info, err := cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		t.Fatalf("failed to inspect redis container: %v", err)
	}
	bindings := info.NetworkSettings.Ports[redisPort]
	if len(bindings) == 0 {
		t.Fatalf("redis container has no binding for %s", redisPort)
	}
	url := fmt.Sprintf("redis://127.0.0.1:%s/0", bindings[0].HostPort)

	if err := waitForRedis(ctx, url); err != nil {
		t.Fatalf("redis did not become ready: %v", err)
	}
	return url
}

func waitForRedis(ctx context.Context, url string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	return retry.Do(
		func() error { return rdb.Ping(ctx).Err() },
		retry.Context(ctx),
		retry.Attempts(30),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}
