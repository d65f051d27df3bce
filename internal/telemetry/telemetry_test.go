package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/testutil"
)

func fixedGenerator() *Generator {
	at := time.Date(2024, 6, 1, 12, 30, 5, 0, time.UTC)
	return NewGenerator(rand.New(rand.NewPCG(1, 2)), func() time.Time { return at })
}

func TestGenerator_Next(t *testing.T) {
	g := fixedGenerator()
	for range 50 {
		r := g.Next()
		assert.GreaterOrEqual(t, r.InputVAC, 117.0)
		assert.Less(t, r.InputVAC, 227.0)
		assert.GreaterOrEqual(t, r.LastInputVAC, 0.0)
		assert.Less(t, r.OutputVAC, 127.0)
		assert.Less(t, r.OutputHz, 90.0)
		assert.Less(t, r.BatteryLevel, 100.0)
		assert.True(t, r.BeepOn)
		assert.True(t, r.UPSOK)
		assert.False(t, r.ShutdownActive)
		assert.False(t, r.TestActive)
		assert.False(t, r.Bypass)
		assert.False(t, r.NoData)
		assert.Equal(t, "2024 06 01 12-30-05", r.PublishTime)
		assert.Equal(t, "UPS Senoidal", r.Info)
		assert.Equal(t, "UPS Server", r.Name)
	}
}

func TestMessage_Shape(t *testing.T) {
	body, err := Message(fixedGenerator().Next())
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Len(t, decoded, 1)

	want := []string{
		"last_input_vac", "input_vac", "output_vac", "output_power", "power_now", "output_hz",
		"battery_level", "temperature", "beep_on", "shutdown_active", "test_active", "ups_ok",
		"boost", "bypass", "low_battery", "battery_in_use", "publish_time", "info", "name", "no_data",
	}
	assert.Len(t, decoded[0], len(want))
	for _, k := range want {
		assert.Contains(t, decoded[0], k)
	}

	empty, err := Message()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestProducer_SendOne(t *testing.T) {
	q := &testutil.MockQueue{}
	p := NewProducer(q, fixedGenerator(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	id, err := p.SendOne(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, q.Messages(), 1)
	assert.Contains(t, q.Messages()[0], `"name":"UPS Server"`)
}

func TestProducer_RunCount(t *testing.T) {
	var attempts atomic.Int32
	q := &testutil.MockQueue{
		SendFn: func(_ context.Context, _ string) (string, error) {
			attempts.Add(1)
			return "", errors.New("queue down")
		},
	}
	p := NewProducer(q, fixedGenerator(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx, "@every 1s", 2))
	assert.NoError(t, ctx.Err(), "run should stop after count sends")
	assert.Equal(t, int32(2), attempts.Load(), "failed sends do not stop the loop")
	assert.Empty(t, q.Messages())
}

func TestProducer_InvalidSchedule(t *testing.T) {
	p := NewProducer(&testutil.MockQueue{}, fixedGenerator(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := p.Run(context.Background(), "every now and then", 1)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}
