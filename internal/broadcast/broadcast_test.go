package broadcast

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_Fanout(t *testing.T) {
	hub := NewHub()
	a, unsubA := hub.Subscribe(1)
	b, unsubB := hub.Subscribe(1)
	defer unsubB()

	e := Event{Key: "SCHOOL_CATALOG_ACCOUNTS__s1", Version: 3}
	require.NoError(t, hub.Publish(context.Background(), e))

	assert.Equal(t, e, <-a)
	assert.Equal(t, e, <-b)

	unsubA()
	unsubA() // idempotent
	assert.Equal(t, 1, hub.Subscribers())
	_, open := <-a
	assert.False(t, open, "channel closed on unsubscribe")
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe(1)
	defer unsub()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(context.Background(), Event{Key: "K", Version: int64(i + 1)}))
	}
	got := <-ch
	assert.Equal(t, int64(1), got.Version, "later events are dropped, not queued")
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	hub := NewHub()
	ch, unsub := hub.Subscribe(1)
	defer unsub()

	boom := errors.New("broker down")
	err := Multi{failing{boom}, hub}.Publish(context.Background(), Event{Key: "K"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "K", (<-ch).Key, "other publishers still receive the event")
}

func TestDecodeEvent(t *testing.T) {
	e, ok := decodeEvent([]byte(`{"key":"K","version":2,"origin":"x"}`))
	require.True(t, ok)
	assert.Equal(t, "K", e.Key)
	assert.Equal(t, int64(2), e.Version)

	_, ok = decodeEvent([]byte(`{"version":2}`))
	assert.False(t, ok)
	_, ok = decodeEvent([]byte(`nope`))
	assert.False(t, ok)
}

func TestServeWS(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(w, r, hub)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), Event{Key: "SCHOOL_TREASURY_ACCOUNTS__s1", Version: 7}))

	var got Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "SCHOOL_TREASURY_ACCOUNTS__s1", got.Key)
	assert.Equal(t, int64(7), got.Version)
}

func TestNewKafkaPublisher(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "")
	defer p.Close()
	assert.Equal(t, DefaultTopic, p.writer.Topic)
	assert.LessOrEqual(t, p.writer.BatchTimeout, 10*time.Millisecond, "publish must not wait out a batch inside a commit")
	assert.False(t, p.writer.Async, "publish errors are reported")
}
