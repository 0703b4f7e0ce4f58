package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/erpbridge/pkg/observability"
)

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	recorder, err := NewFileRecorder(path)
	require.NoError(t, err)

	recorder.Record(context.Background(), Event{
		Type:        EventTypeTokenLogin,
		Status:      EventStatusSuccess,
		UserID:      42,
		Email:       "alice@example.com",
		TokenPrefix: "abcdefghij...",
	})
	recorder.Record(context.Background(), Event{
		Type:   EventTypeEmailLogin,
		Status: EventStatusFailure,
		Reason: "identity_not_found",
	})
	require.NoError(t, recorder.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}

	require.Len(t, events, 2)
	assert.Equal(t, EventTypeTokenLogin, events[0].Type)
	assert.Equal(t, EventStatusSuccess, events[0].Status)
	assert.Equal(t, int64(42), events[0].UserID)
	assert.Equal(t, "abcdefghij...", events[0].TokenPrefix)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Equal(t, EventStatusFailure, events[1].Status)
	assert.Equal(t, "identity_not_found", events[1].Reason)
}

func TestFileRecorder_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	for i := 0; i < 2; i++ {
		recorder, err := NewFileRecorder(path)
		require.NoError(t, err)
		recorder.Record(context.Background(), Event{Type: EventTypeTokenValidate, Status: EventStatusSuccess})
		require.NoError(t, recorder.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte("\n")))
}

func TestFileRecorder_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	recorder, err := NewFileRecorder(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recorder.Record(context.Background(), Event{Type: EventTypeTokenLogin, Status: EventStatusSuccess})
		}()
	}
	wg.Wait()
	require.NoError(t, recorder.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event), "interleaved write")
		lines++
	}
	assert.Equal(t, 20, lines)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)
	recorder := NewLogRecorder(logger)

	ctx := observability.WithRequestID(context.Background(), "req-123")
	recorder.Record(ctx, Event{
		Timestamp:   time.Now(),
		Type:        EventTypeOutboundLogin,
		Status:      EventStatusSuccess,
		UserID:      7,
		Email:       "alice@example.com",
		TokenPrefix: "abcdefghij...",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, true, entry["audit"])
	assert.Equal(t, string(EventTypeOutboundLogin), entry["type"])
	assert.Equal(t, string(EventStatusSuccess), entry["status"])
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, "req-123", entry["request_id"])

	assert.NoError(t, recorder.Close())
}

func TestMultiRecorder(t *testing.T) {
	var bufA, bufB bytes.Buffer
	recorder := NewMultiRecorder(
		NewLogRecorder(observability.NewLogger(observability.InfoLevel, &bufA)),
		NewLogRecorder(observability.NewLogger(observability.InfoLevel, &bufB)),
	)

	recorder.Record(context.Background(), Event{Type: EventTypeTokenLogin, Status: EventStatusFailure})

	assert.NotEmpty(t, bufA.Bytes())
	assert.NotEmpty(t, bufB.Bytes())
	assert.NoError(t, recorder.Close())
}
