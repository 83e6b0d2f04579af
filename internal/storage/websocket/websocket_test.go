package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/storage"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/circuitlab/racesim/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

type serverOptions struct {
	noAck bool
}

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks start_generation/end_generation.
func testServer(t *testing.T, opts serverOptions) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if opts.noAck {
				continue
			}
			if env.Type == streaming.TypeStartGeneration || env.Type == streaming.TypeEndGeneration {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secret   string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newBackend(t *testing.T, srv *httptest.Server, cfg config.WebSocketConfig) *Backend {
	t.Helper()
	cfg.URL = wsURL(srv)
	b := New(cfg, nil)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestStartAndEndGeneration(t *testing.T) {
	srv, ml := testServer(t, serverOptions{})
	b := newBackend(t, srv, config.WebSocketConfig{Secret: "test"})

	require.NoError(t, b.StartGeneration(&core.GenerationStart{Generation: 3, TrackWidth: 800}))
	require.NoError(t, b.EndGeneration(&core.GenerationSummary{Generation: 3, Reason: core.EndTimeout}))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartGeneration, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndGeneration, msgs[len(msgs)-1].Type)

	var start streaming.StartGenerationPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, 3, start.Generation)
	assert.Equal(t, 800, start.TrackWidth)

	ml.mu.Lock()
	assert.Equal(t, "test", ml.secret)
	ml.mu.Unlock()

	b.conn.mu.Lock()
	assert.Nil(t, b.conn.replay)
	b.conn.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, serverOptions{})
	b := newBackend(t, srv, config.WebSocketConfig{})

	require.NoError(t, b.StartGeneration(&core.GenerationStart{Generation: 1}))
	require.NoError(t, b.RecordFrame(&core.Frame{Generation: 1, Tick: 1, States: []core.VehicleState{{VehicleID: "a"}}}))
	require.NoError(t, b.RecordVehicleEvent(&core.VehicleEvent{Generation: 1, Tick: 1, VehicleID: "a", Kind: core.EventCrash}))
	require.NoError(t, b.EndGeneration(&core.GenerationSummary{Generation: 1}))

	types := make([]string, 0, 4)
	for _, env := range ml.all() {
		types = append(types, env.Type)
	}
	// single writer preserves order
	assert.Equal(t, []string{
		streaming.TypeStartGeneration,
		streaming.TypeFrame,
		streaming.TypeVehicleEvent,
		streaming.TypeEndGeneration,
	}, types)

	var frame streaming.FramePayload
	require.NoError(t, json.Unmarshal(ml.all()[1].Payload, &frame))
	require.Len(t, frame.States, 1)
	assert.Equal(t, "a", frame.States[0].VehicleID)
}

func TestStartGeneration_AckTimeout(t *testing.T) {
	srv, _ := testServer(t, serverOptions{noAck: true})
	b := newBackend(t, srv, config.WebSocketConfig{AckTimeout: 50 * time.Millisecond})

	err := b.StartGeneration(&core.GenerationStart{Generation: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for ack")
}

func TestInit_DialFailure(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "ws://127.0.0.1:1/ws"}, nil)
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
}

func TestInit_InvalidURL(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "://bad"}, nil)
	assert.Error(t, b.Init())
}

func TestNew_Defaults(t *testing.T) {
	b := New(config.WebSocketConfig{}, nil)
	assert.Equal(t, defaultAckTimeout, b.cfg.AckTimeout)
	assert.Equal(t, time.Second, b.conn.reconnectDelay)
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, serverOptions{})
	b := newBackend(t, srv, config.WebSocketConfig{})

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeVehicleEvent, &core.VehicleEvent{VehicleID: "x", Kind: core.EventFinish, Rank: 2})
	require.NoError(t, err)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, streaming.TypeVehicleEvent, env.Type)

	var ev core.VehicleEvent
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, 2, ev.Rank)
}

func TestMarshalEnvelope_Unsupported(t *testing.T) {
	_, err := marshalEnvelope(streaming.TypeFrame, make(chan int))
	assert.Error(t, err)
}
