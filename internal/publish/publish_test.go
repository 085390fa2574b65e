package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/smart-posture/posture-server/internal/metrics"
	"github.com/dj-oyu/smart-posture/posture-server/pkg/types"
)

func newEvent(t *testing.T, seq uint64, text string) *Event {
	t.Helper()
	ev, err := NewEvent(seq, time.Now(), types.PosturePayload{PostureText: text})
	require.NoError(t, err)
	return ev
}

func TestNewEvent(t *testing.T) {
	ev := newEvent(t, 7, "Good (170)")
	assert.JSONEq(t, `{"posture_text":"Good (170)","is_bad":false,"sit_time":0,"pressure_data":[0,0,0,0]}`, string(ev.JSON))

	raw, err := base64.StdEncoding.DecodeString(string(ev.ProtobufBase64()))
	require.NoError(t, err)
	assert.Equal(t, ev.Protobuf, raw)
}

func TestSlotLatestWins(t *testing.T) {
	s := NewSlot()
	assert.Nil(t, s.Latest())

	assert.False(t, s.Put(newEvent(t, 1, "a")))
	assert.True(t, s.Put(newEvent(t, 2, "b")))

	ev, err := s.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Seq)
	assert.Equal(t, uint64(2), s.Latest().Seq)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlotWakesWaiter(t *testing.T) {
	s := NewSlot()
	got := make(chan *Event, 1)
	go func() {
		ev, _ := s.Take(context.Background())
		got <- ev
	}()

	time.Sleep(10 * time.Millisecond)
	s.Put(newEvent(t, 3, "c"))

	select {
	case ev := <-got:
		assert.Equal(t, uint64(3), ev.Seq)
	case <-time.After(time.Second):
		t.Fatal("Take did not wake up")
	}
}

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	seen []uint64
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, ev.Seq)
	return r.err
}

func (r *recordingSink) Seen() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.seen...)
}

func TestDispatcherFansOutAndCountsFailures(t *testing.T) {
	m := metrics.New()
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("down")}
	d := NewDispatcher(NewSlot(), m, bad, ok)

	d.Dispatch(context.Background(), newEvent(t, 1, "a"))
	d.Dispatch(context.Background(), newEvent(t, 2, "b"))

	assert.Equal(t, []uint64{1, 2}, ok.Seen())
	assert.Equal(t, []uint64{1, 2}, bad.Seen())
	assert.Equal(t, uint64(2), m.SinkErrors.Load())
	assert.Equal(t, uint64(2), m.PayloadsPublished.Load())
	assert.Equal(t, []string{"bad", "ok"}, d.Sinks())
}

func TestDispatcherCountsOnlyDeliveredPayloads(t *testing.T) {
	m := metrics.New()
	first := &recordingSink{name: "first", err: errors.New("down")}
	second := &recordingSink{name: "second", err: errors.New("down")}
	d := NewDispatcher(NewSlot(), m, first, second)

	d.Dispatch(context.Background(), newEvent(t, 1, "a"))
	assert.Equal(t, uint64(0), m.PayloadsPublished.Load(), "every sink failed")
	assert.Equal(t, uint64(2), m.SinkErrors.Load())

	second.err = nil
	d.Dispatch(context.Background(), newEvent(t, 2, "b"))
	assert.Equal(t, uint64(1), m.PayloadsPublished.Load())
	assert.Equal(t, uint64(3), m.SinkErrors.Load())

	empty := NewDispatcher(NewSlot(), m)
	empty.Dispatch(context.Background(), newEvent(t, 3, "c"))
	assert.Equal(t, uint64(1), m.PayloadsPublished.Load(), "no sinks, nothing published")
}

func TestDispatcherRun(t *testing.T) {
	slot := NewSlot()
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(slot, metrics.New())
	d.Add(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	slot.Put(newEvent(t, 5, "x"))
	require.Eventually(t, func() bool { return len(sink.Seen()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRedisSink(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(client, "posture:alerts")
	ctx := context.Background()
	require.NoError(t, sink.Ping(ctx))

	sub := client.Subscribe(ctx, "posture:alerts")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ev := newEvent(t, 1, "Neck Forward")
	require.NoError(t, sink.Publish(ctx, ev))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(ev.JSON), msg.Payload)

	latest, err := mr.Get(sink.LatestKey())
	require.NoError(t, err)
	assert.JSONEq(t, string(ev.JSON), latest)
	assert.Equal(t, "redis", sink.Name())
}

func TestRedisSinkError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	sink := NewRedisSink(client, "posture:alerts")
	mr.Close()

	err := sink.Publish(context.Background(), newEvent(t, 1, "x"))
	assert.ErrorContains(t, err, "redis publish")
}

type fakePublisher struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
	err      error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.topic, f.qos, f.retained, f.payload = topic, qos, retained, payload
	return f.err
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub, "posture/alerts", 1)
	ev := newEvent(t, 1, "Time to Stand up!")

	require.NoError(t, sink.Publish(context.Background(), ev))
	assert.Equal(t, "posture/alerts", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	assert.False(t, pub.retained)
	assert.Equal(t, ev.JSON, pub.payload)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sink.Publish(ctx, ev), context.Canceled)
}
