package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kiranshivaraju/contentpilot/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupNATS spins up a NATS container and returns its client URL.
func setupNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "4222")
	require.NoError(t, err)

	return "nats://" + host + ":" + port.Port()
}

func TestNATSPublisher_Publish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := setupNATS(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(sub.Close)

	msgs := make(chan *nats.Msg, 4)
	_, err = sub.ChanSubscribe("contentpilot.item.>", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	pub, err := events.Connect(url, "contentpilot")
	require.NoError(t, err)
	t.Cleanup(func() { pub.Close() })

	at := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	err = pub.Publish(context.Background(), events.ItemTopic("ready"), events.ItemEvent{
		PlanID: "p1", ItemID: "a", Status: "ready", MediaURLs: []string{"https://cdn/a.png"}, At: at,
	})
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "contentpilot.item.ready", msg.Subject)
		var got events.ItemEvent
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "a", got.ItemID)
		assert.Equal(t, []string{"https://cdn/a.png"}, got.MediaURLs)
		assert.True(t, at.Equal(got.At))
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	pub := events.NewNATSPublisher(nil, "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.Publish(ctx, events.TopicPlanLive, events.PlanEvent{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "cp.plan.live", events.NewNATSPublisher(nil, "cp").Subject(events.TopicPlanLive))
	assert.Equal(t, "recovery.sweep", events.NewNATSPublisher(nil, "").Subject(events.TopicRecoverySweep))
	assert.Equal(t, "item.failed", events.ItemTopic("failed"))
}

func TestNoopPublisher(t *testing.T) {
	var p events.Publisher = events.NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "anything", make(chan int)))
}
