package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/combatsim/pkg/core"
	"github.com/OCAP2/combatsim/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams run data over WebSocket to a live viewer.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn *connection
	cfg  Config

	mu      sync.Mutex
	runUUID string
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many frames were lost to a full buffer or a failed write.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope pushes the envelope to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartRun announces the run and waits for the server ack.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: run})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.runUUID = run.UUID
	b.mu.Unlock()
	b.conn.remember(data, true)

	return b.conn.request(data, streaming.TypeStartRun, ackTimeout)
}

// EndRun sends the summary and waits for the server ack.
func (b *Backend) EndRun(summary core.Summary) error {
	b.mu.Lock()
	uuid := b.runUUID
	b.mu.Unlock()

	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{UUID: uuid, Summary: summary})
	if err != nil {
		return err
	}
	err = b.conn.request(data, streaming.TypeEndRun, ackTimeout)

	b.conn.forget()
	b.mu.Lock()
	b.runUUID = ""
	b.mu.Unlock()

	if n := b.Dropped(); n > 0 {
		b.conn.log.Warn("Frames dropped during run", "run", uuid, "dropped", n)
	}
	return err
}

// AddUnit streams the unit and keeps it for replay after a reconnect.
func (b *Backend) AddUnit(u *core.Unit) error {
	data, err := marshalEnvelope(streaming.TypeAddUnit, u)
	if err != nil {
		return err
	}
	b.conn.remember(data, false)
	b.conn.send(data)
	return nil
}

func (b *Backend) RecordUnitState(s *core.UnitState) error {
	return b.sendEnvelope(streaming.TypeUnitState, s)
}

func (b *Backend) RecordEngagement(e *core.Engagement) error {
	return b.sendEnvelope(streaming.TypeEngagement, e)
}

func (b *Backend) RecordStep(s *core.StepStats) error {
	return b.sendEnvelope(streaming.TypeStep, s)
}
