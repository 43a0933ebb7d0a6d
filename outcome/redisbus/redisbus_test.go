package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/latticeplan/htn/isotime"
	"github.com/latticeplan/htn/outcome"
)

var (
	testRedisClient    *redis.Client
	testRedisContainer testcontainers.Container
	skipIntegration    bool
)

func setupRedis() {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		testRedisContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		skipIntegration = true
		return
	}
	host, err := testRedisContainer.Host(ctx)
	if err != nil {
		skipIntegration = true
		return
	}
	port, err := testRedisContainer.MappedPort(ctx, "6379")
	if err != nil {
		skipIntegration = true
		return
	}
	testRedisClient = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	if err := testRedisClient.Ping(ctx).Err(); err != nil {
		skipIntegration = true
	}
}

func requireRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testRedisClient == nil && !skipIntegration {
		setupRedis()
	}
	if skipIntegration {
		t.Skip("Docker not available, skipping redisbus test")
	}
	return testRedisClient
}

func TestPublishDeliversEventToSubscriber(t *testing.T) {
	client := requireRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub, err := New(Options{Client: client, Channel: "test." + t.Name()})
	require.NoError(t, err)

	sub := client.Subscribe(ctx, "test."+t.Name())
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	evt := outcome.Event{
		PlanID:    "plan-1",
		Action:    "move",
		Args:      []string{"kitchen"},
		StartTime: isotime.Micros(0),
		EndTime:   isotime.Micros(1_000_000),
		Outcome:   outcome.Success,
	}
	pub.Report(ctx, evt)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got struct {
		PlanID  string `json:"plan_id"`
		Action  string `json:"action"`
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "plan-1", got.PlanID)
	assert.Equal(t, "move", got.Action)
	assert.Equal(t, "success", got.Outcome)
}

func TestNewRequiresClient(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
