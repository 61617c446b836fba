package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consentdesk/console/internal/notify"
)

func TestNew(t *testing.T) {
	n := notify.New(notify.LevelUrgent, "dsar", "Load failed", "backend unreachable")

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, notify.LevelUrgent, n.Level)
	assert.Equal(t, "dsar", n.Source)
	assert.Equal(t, "Load failed", n.Title)
	assert.Equal(t, "backend unreachable", n.Message)
	assert.False(t, n.At.IsZero())
}

func TestMulti_SkipsNil(t *testing.T) {
	var got []string
	first := notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
		got = append(got, "first:"+n.Title)
	})
	second := notify.NotifierFunc(func(_ context.Context, n notify.Notification) {
		got = append(got, "second:"+n.Title)
	})

	m := notify.Multi(first, nil, second)
	m.Notify(context.Background(), notify.New(notify.LevelInfo, "test", "hello", ""))

	assert.Equal(t, []string{"first:hello", "second:hello"}, got)
}

func TestLogNotifier_Levels(t *testing.T) {
	tests := []struct {
		level notify.Level
		want  string
	}{
		{notify.LevelInfo, "info"},
		{notify.LevelUrgent, "warn"},
		{notify.LevelBlocking, "error"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			n := notify.NewLogNotifier(zerolog.New(&buf))

			n.Notify(context.Background(), notify.New(tt.level, "customers", "title", "message"))

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.want, entry["level"])
			assert.Equal(t, "customers", entry["source"])
			assert.Equal(t, "message", entry["message"])
		})
	}
}

func TestInbox_NewestFirst(t *testing.T) {
	inbox := notify.NewInbox(3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		inbox.Notify(ctx, notify.New(notify.LevelInfo, "test", fmt.Sprintf("n%d", i), ""))
	}

	assert.Equal(t, 3, inbox.Len())

	items := inbox.List(0)
	require.Len(t, items, 3)
	assert.Equal(t, "n5", items[0].Title)
	assert.Equal(t, "n4", items[1].Title)
	assert.Equal(t, "n3", items[2].Title)

	limited := inbox.List(2)
	require.Len(t, limited, 2)
	assert.Equal(t, "n5", limited[0].Title)
}

func TestInbox_PartiallyFilled(t *testing.T) {
	inbox := notify.NewInbox(10)
	inbox.Notify(context.Background(), notify.New(notify.LevelInfo, "test", "only", ""))

	items := inbox.List(5)
	require.Len(t, items, 1)
	assert.Equal(t, "only", items[0].Title)
}

func TestInbox_Clear(t *testing.T) {
	inbox := notify.NewInbox(0)
	inbox.Notify(context.Background(), notify.New(notify.LevelInfo, "test", "a", ""))

	inbox.Clear()

	assert.Equal(t, 0, inbox.Len())
	assert.Empty(t, inbox.List(0))
}

func TestInbox_Concurrent(t *testing.T) {
	inbox := notify.NewInbox(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				inbox.Notify(ctx, notify.New(notify.LevelInfo, "test", "x", ""))
				_ = inbox.List(5)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, inbox.Len())
}

type fakePublisher struct {
	mu    sync.Mutex
	data  [][]byte
	attrs []map[string]string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, data []byte, attrs map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = append(f.data, data)
	f.attrs = append(f.attrs, attrs)
	return f.err
}

func TestPubSubNotifier_Publishes(t *testing.T) {
	pub := &fakePublisher{}
	n := notify.NewPubSubNotifier(notify.PubSubNotifierConfig{
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})

	sent := notify.New(notify.LevelBlocking, "dsar", "Auto-process failed", "rejected by backend")
	n.Notify(context.Background(), sent)

	require.Len(t, pub.data, 1)
	var decoded notify.Notification
	require.NoError(t, json.Unmarshal(pub.data[0], &decoded))
	assert.Equal(t, sent.ID, decoded.ID)
	assert.Equal(t, notify.LevelBlocking, decoded.Level)
	assert.Equal(t, "blocking", pub.attrs[0]["level"])
	assert.Equal(t, "dsar", pub.attrs[0]["source"])
}

func TestPubSubNotifier_PublishErrorIsLogged(t *testing.T) {
	var buf bytes.Buffer
	pub := &fakePublisher{err: errors.New("topic not found")}
	n := notify.NewPubSubNotifier(notify.PubSubNotifierConfig{
		Publisher: pub,
		Logger:    zerolog.New(&buf),
	})

	n.Notify(context.Background(), notify.New(notify.LevelInfo, "dsar", "Loaded", ""))

	assert.Contains(t, buf.String(), "failed to publish notification")
	assert.Contains(t, buf.String(), "topic not found")
}
