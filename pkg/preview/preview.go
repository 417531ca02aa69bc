// Package preview streams JPEG preview frames to browsers over a WebRTC
// data channel.
//
// The browser creates a data channel labelled "preview", sends its offer
// to Answer and applies the returned answer. Every binary message
// broadcast on the preview hub is then sent to the peer until the
// connection closes.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/teslashibe/go-lumacam/pkg/hub"
)

// ChannelLabel is the data channel label preview frames are sent on.
const ChannelLabel = "preview"

// ErrClosed is returned by Answer after Close.
var ErrClosed = errors.New("preview: manager closed")

const peerBuffer = 4

// Manager answers offers and tracks the connected peers.
type Manager struct {
	frames *hub.Hub
	config webrtc.Configuration
	logger *slog.Logger

	mu     sync.Mutex
	peers  map[string]*Peer
	closed bool
}

// NewManager creates a manager that forwards binary messages from frames.
func NewManager(frames *hub.Hub, config webrtc.Configuration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		frames: frames,
		config: config,
		logger: logger.With("component", "preview"),
		peers:  make(map[string]*Peer),
	}
}

// Peer is one browser connection.
type Peer struct {
	ID string

	conn   *webrtc.PeerConnection
	logger *slog.Logger

	mu     sync.Mutex
	sub    *hub.Subscription
	closed bool
	once   sync.Once
}

// Answer creates a peer for the offer and returns the local answer once
// ICE gathering completes.
func (m *Manager) Answer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, string, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, "", ErrClosed
	}

	conn, err := webrtc.NewPeerConnection(m.config)
	if err != nil {
		return nil, "", fmt.Errorf("new peer connection: %w", err)
	}

	peer := &Peer{
		ID:   uuid.NewString(),
		conn: conn,
	}
	peer.logger = m.logger.With("peer", peer.ID)

	conn.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			peer.logger.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		dc.OnOpen(func() {
			peer.logger.Info("preview channel open")
			go peer.pump(m.frames, dc)
		})
	})

	conn.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		peer.logger.Debug("peer connection state changed", "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			m.remove(peer)
		}
	})

	if err := conn.SetRemoteDescription(offer); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("set remote description: %w", err)
	}

	answer, err := conn.CreateAnswer(nil)
	if err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("create answer: %w", err)
	}

	gatheringComplete := webrtc.GatheringCompletePromise(conn)
	if err := conn.SetLocalDescription(answer); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gatheringComplete:
	case <-ctx.Done():
		conn.Close()
		return nil, "", ctx.Err()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return nil, "", ErrClosed
	}
	m.peers[peer.ID] = peer
	count := len(m.peers)
	m.mu.Unlock()

	m.logger.Info("preview peer added", "peer", peer.ID, "peers", count)
	return conn.LocalDescription(), peer.ID, nil
}

// pump forwards hub frames to the data channel until either side closes.
func (p *Peer) pump(frames *hub.Hub, dc *webrtc.DataChannel) {
	sub := frames.Subscribe(peerBuffer)
	if sub == nil {
		return
	}
	p.mu.Lock()
	if p.closed || p.sub != nil {
		p.mu.Unlock()
		sub.Close()
		return
	}
	p.sub = sub
	p.mu.Unlock()

	for msg := range sub.C() {
		if msg.Type != hub.BinaryMessage {
			continue
		}
		if err := dc.Send(msg.Data); err != nil {
			p.logger.Debug("preview send failed", "error", err)
			sub.Close()
			return
		}
	}
}

// Close tears down the peer connection and its subscription.
func (p *Peer) Close() error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		sub := p.sub
		p.sub = nil
		p.closed = true
		p.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		err = p.conn.Close()
	})
	return err
}

func (m *Manager) remove(p *Peer) {
	m.mu.Lock()
	_, ok := m.peers[p.ID]
	delete(m.peers, p.ID)
	count := len(m.peers)
	m.mu.Unlock()

	// Must not close synchronously inside a pion callback.
	go p.Close()
	if ok {
		m.logger.Info("preview peer removed", "peer", p.ID, "peers", count)
	}
}

// Peers returns the number of connected peers.
func (m *Manager) Peers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.peers)
}

// Close closes every peer and rejects further offers.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	peers := make([]*Peer, 0, len(m.peers))
	for id, p := range m.peers {
		peers = append(peers, p)
		delete(m.peers, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, p := range peers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
