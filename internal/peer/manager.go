// Package peer owns WebRTC negotiation and the per-peer data channels. One
// Manager exists per local session; it drives offer/answer/ICE exchange
// through the signaling relay and runs the file-transfer protocol on top of
// each open channel.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/unishare/unishare/internal/roster"
	"github.com/unishare/unishare/internal/signaling"
	"github.com/unishare/unishare/internal/transfer"
)

var (
	// ErrChannelNotReady is returned by SendFile when no open data channel
	// exists for the peer.
	ErrChannelNotReady = errors.New("peer: data channel not open")

	// ErrTransferInProgress is returned by SendFile while another outbound
	// transfer is active on the same channel.
	ErrTransferInProgress = errors.New("peer: transfer already in progress on this channel")
)

// Options configures a Manager.
type Options struct {
	PeerID   string
	Username string
	Emoji    string
	WebRTC   webrtc.Configuration
	Signal   *signaling.Client
	Logger   *logrus.Logger
}

// Manager is the peer connection manager: an explicit registry of
// negotiation state and transports keyed by remote peer id. All event hooks
// are registered observers; multiple subscribers are supported.
type Manager struct {
	id       string
	username string
	emoji    string
	config   webrtc.Configuration

	signal   *signaling.Client
	roster   *roster.Roster
	sender   *transfer.Sender
	receiver *transfer.Receiver
	log      *logrus.Logger

	mu    sync.Mutex
	conns map[string]*peerConn

	obsMu        sync.RWMutex
	receivedSubs []func(transfer.FileReceived)
	progressSubs []func(transfer.Progress)
	failedSubs   []func(fileID, peerID string, err error)
	stateSubs    []func(peerID string, state webrtc.PeerConnectionState)
}

// NewManager builds a Manager around a dialed signaling client. Call Start to
// begin processing relay envelopes.
func NewManager(opts Options) *Manager {
	config := opts.WebRTC
	if len(config.ICEServers) == 0 {
		config = DefaultSTUNConfig()
	}

	m := &Manager{
		id:       opts.PeerID,
		username: opts.Username,
		emoji:    opts.Emoji,
		config:   config,
		signal:   opts.Signal,
		roster:   roster.New(),
		sender:   transfer.NewSender(opts.Logger),
		receiver: transfer.NewReceiver(opts.Logger),
		log:      opts.Logger,
		conns:    make(map[string]*peerConn),
	}

	m.receiver.OnFileReceived(m.notifyReceived)
	m.receiver.OnProgress(m.notifyProgress)
	m.receiver.OnTransferFailed(m.notifyFailed)

	return m
}

// ID returns the local peer identity.
func (m *Manager) ID() string { return m.id }

// Roster exposes the online roster for direct reads.
func (m *Manager) Roster() *roster.Roster { return m.roster }

// Start wires the relay client and launches its read loop. The display info
// is (re)announced after every successful relay connection.
func (m *Manager) Start() {
	m.signal.OnEnvelope(m.handleEnvelope)
	m.signal.OnConnect(func() {
		if err := m.signal.Send(signaling.BuildUpdateInfo(m.username, m.emoji)); err != nil {
			m.log.Warnf("Failed to announce display info: %v", err)
		}
	})
	m.signal.Start()
}

// ---------------------------------------------------------------------------
// Observer registration
// ---------------------------------------------------------------------------

// OnFileReceived registers a callback fired once per completed inbound
// transfer.
func (m *Manager) OnFileReceived(fn func(transfer.FileReceived)) {
	m.obsMu.Lock()
	m.receivedSubs = append(m.receivedSubs, fn)
	m.obsMu.Unlock()
}

// OnProgress registers a callback fired per chunk in both directions.
func (m *Manager) OnProgress(fn func(transfer.Progress)) {
	m.obsMu.Lock()
	m.progressSubs = append(m.progressSubs, fn)
	m.obsMu.Unlock()
}

// OnTransferFailed registers a callback for inbound transfers aborted by a
// malformed frame.
func (m *Manager) OnTransferFailed(fn func(fileID, peerID string, err error)) {
	m.obsMu.Lock()
	m.failedSubs = append(m.failedSubs, fn)
	m.obsMu.Unlock()
}

// OnPeerState registers a callback for connection state transitions. Failure
// states are surfaced here; there is no automatic retry.
func (m *Manager) OnPeerState(fn func(peerID string, state webrtc.PeerConnectionState)) {
	m.obsMu.Lock()
	m.stateSubs = append(m.stateSubs, fn)
	m.obsMu.Unlock()
}

// OnOnlineUsers registers a callback fired on every roster broadcast.
func (m *Manager) OnOnlineUsers(fn func([]signaling.User)) {
	m.roster.Subscribe(fn)
}

func (m *Manager) notifyReceived(f transfer.FileReceived) {
	m.obsMu.RLock()
	subs := m.receivedSubs
	m.obsMu.RUnlock()
	for _, fn := range subs {
		fn(f)
	}
}

func (m *Manager) notifyProgress(p transfer.Progress) {
	m.obsMu.RLock()
	subs := m.progressSubs
	m.obsMu.RUnlock()
	for _, fn := range subs {
		fn(p)
	}
}

func (m *Manager) notifyFailed(fileID, peerID string, err error) {
	m.obsMu.RLock()
	subs := m.failedSubs
	m.obsMu.RUnlock()
	for _, fn := range subs {
		fn(fileID, peerID, err)
	}
}

func (m *Manager) notifyState(peerID string, state webrtc.PeerConnectionState) {
	m.obsMu.RLock()
	subs := m.stateSubs
	m.obsMu.RUnlock()
	for _, fn := range subs {
		fn(peerID, state)
	}
}

// ---------------------------------------------------------------------------
// Relay envelope dispatch
// ---------------------------------------------------------------------------

func (m *Manager) handleEnvelope(env signaling.Envelope) {
	switch env.Type {
	case signaling.MsgTypeOnlineUsers:
		m.roster.Replace(env.Users)

	case signaling.MsgTypeOffer:
		if env.Offer == nil {
			m.log.Warnf("Offer envelope from %s without payload", env.Sender)
			return
		}
		if err := m.HandleOffer(env.Sender, *env.Offer); err != nil {
			m.log.Errorf("Failed to handle offer from %s: %v", env.Sender, err)
		}

	case signaling.MsgTypeAnswer:
		if env.Answer == nil {
			m.log.Warnf("Answer envelope from %s without payload", env.Sender)
			return
		}
		m.HandleAnswer(env.Sender, *env.Answer)

	case signaling.MsgTypeICECandidate:
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal(env.Candidate, &init); err != nil {
			m.log.Warnf("Unparseable ICE candidate from %s: %v", env.Sender, err)
			return
		}
		m.HandleICECandidate(env.Sender, init)

	default:
		m.log.Debugf("Ignoring relay envelope type %q", env.Type)
	}
}

// ---------------------------------------------------------------------------
// Negotiation
// ---------------------------------------------------------------------------

// Initiate starts negotiation with the remote peer: it creates the transport
// as initiator, eagerly creates the data channel and sends an offer through
// the relay. A failed previous connection to the same peer is replaced; an
// active one is an error.
func (m *Manager) Initiate(remotePeerID string) error {
	m.mu.Lock()
	if existing, ok := m.conns[remotePeerID]; ok {
		state := existing.connectionState()
		if state != webrtc.PeerConnectionStateFailed &&
			state != webrtc.PeerConnectionStateDisconnected &&
			state != webrtc.PeerConnectionStateClosed {
			m.mu.Unlock()
			return fmt.Errorf("peer: connection to %s already exists (state %s)", remotePeerID, state)
		}
		_ = existing.close()
		delete(m.conns, remotePeerID)
	}
	m.mu.Unlock()

	conn, err := m.newConn(remotePeerID, RoleInitiator)
	if err != nil {
		return err
	}

	dc, err := conn.pc.CreateDataChannel("data", DefaultDataChannelConfig())
	if err != nil {
		_ = conn.pc.Close()
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	m.setupDataChannel(conn, dc)

	m.mu.Lock()
	m.conns[remotePeerID] = conn
	m.mu.Unlock()

	offer, err := conn.pc.CreateOffer(nil)
	if err != nil {
		m.dropConn(remotePeerID)
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := conn.pc.SetLocalDescription(offer); err != nil {
		m.dropConn(remotePeerID)
		return fmt.Errorf("failed to set local description: %w", err)
	}

	if err := m.signal.Send(signaling.BuildOffer(remotePeerID, offer.SDP)); err != nil {
		m.log.Warnf("Failed to send offer to %s: %v", remotePeerID, err)
	}

	m.log.Infof("Sent offer to peer %s", remotePeerID)
	return nil
}

// HandleOffer creates the transport as responder, applies the remote
// description and answers through the relay. The data channel is accepted
// reactively, never created on this side.
func (m *Manager) HandleOffer(remotePeerID string, sd signaling.SessionDescription) error {
	m.mu.Lock()
	if existing, ok := m.conns[remotePeerID]; ok {
		m.log.Infof("Replacing existing connection to %s on new offer", remotePeerID)
		_ = existing.close()
		delete(m.conns, remotePeerID)
	}
	m.mu.Unlock()

	conn, err := m.newConn(remotePeerID, RoleResponder)
	if err != nil {
		return err
	}

	conn.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		m.setupDataChannel(conn, dc)
	})

	m.mu.Lock()
	m.conns[remotePeerID] = conn
	m.mu.Unlock()

	if err := conn.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sd.SDP,
	}); err != nil {
		m.dropConn(remotePeerID)
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	if err := conn.flushCandidates(); err != nil {
		m.log.Warnf("Failed to apply buffered candidates from %s: %v", remotePeerID, err)
	}

	answer, err := conn.pc.CreateAnswer(nil)
	if err != nil {
		m.dropConn(remotePeerID)
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := conn.pc.SetLocalDescription(answer); err != nil {
		m.dropConn(remotePeerID)
		return fmt.Errorf("failed to set local description: %w", err)
	}

	if err := m.signal.Send(signaling.BuildAnswer(remotePeerID, answer.SDP)); err != nil {
		m.log.Warnf("Failed to send answer to %s: %v", remotePeerID, err)
	}

	m.log.Infof("Answered offer from peer %s", remotePeerID)
	return nil
}

// HandleAnswer applies a remote answer to the matching pending connection. An
// answer for an unknown peer is a stale signal: logged and ignored.
func (m *Manager) HandleAnswer(remotePeerID string, sd signaling.SessionDescription) {
	m.mu.Lock()
	conn, ok := m.conns[remotePeerID]
	m.mu.Unlock()
	if !ok {
		m.log.Warnf("Stale answer from unknown peer %s, ignoring", remotePeerID)
		return
	}

	if err := conn.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sd.SDP,
	}); err != nil {
		m.log.Errorf("Failed to apply answer from %s: %v", remotePeerID, err)
		return
	}
	if err := conn.flushCandidates(); err != nil {
		m.log.Warnf("Failed to apply buffered candidates from %s: %v", remotePeerID, err)
	}
}

// HandleICECandidate appends a remote candidate to the matching connection. A
// candidate for an unknown peer is dropped and logged.
func (m *Manager) HandleICECandidate(remotePeerID string, init webrtc.ICECandidateInit) {
	m.mu.Lock()
	conn, ok := m.conns[remotePeerID]
	m.mu.Unlock()
	if !ok {
		m.log.Warnf("Stale ICE candidate from unknown peer %s, dropping", remotePeerID)
		return
	}
	if err := conn.addCandidate(init); err != nil {
		m.log.Warnf("Failed to add ICE candidate from %s: %v", remotePeerID, err)
	}
}

func (m *Manager) newConn(remotePeerID string, role Role) (*peerConn, error) {
	pc, err := webrtc.NewPeerConnection(m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	conn := &peerConn{
		peerID: remotePeerID,
		role:   role,
		pc:     pc,
		state:  webrtc.PeerConnectionStateNew,
		openCh: make(chan struct{}),
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.log.Infof("Peer %s connection state: %s", remotePeerID, s)
		conn.setState(s)
		m.notifyState(remotePeerID, s)

		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			// Negotiation failure: surfaced above, no retry. The caller must
			// re-invoke Initiate.
			m.log.Warnf("Negotiation with peer %s failed (%s)", remotePeerID, s)
			m.dropConn(remotePeerID)
		}
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			m.log.Warnf("Failed to marshal ICE candidate: %v", err)
			return
		}
		if err := m.signal.Send(signaling.BuildICECandidate(remotePeerID, raw)); err != nil {
			m.log.Warnf("Failed to send ICE candidate to %s: %v", remotePeerID, err)
		}
	})

	return conn, nil
}

func (m *Manager) setupDataChannel(conn *peerConn, dc *webrtc.DataChannel) {
	conn.setDataChannel(dc)

	dc.OnOpen(func() {
		m.log.Infof("Data channel to peer %s open", conn.peerID)
		conn.markOpen()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		m.receiver.HandleFrame(conn.peerID, msg.Data)
	})

	dc.OnError(func(err error) {
		m.log.Errorf("Data channel to peer %s errored: %v", conn.peerID, err)
	})

	dc.OnClose(func() {
		m.log.Infof("Data channel to peer %s closed", conn.peerID)
		m.receiver.AbandonPeer(conn.peerID)
		conn.endSend()
	})
}

func (m *Manager) dropConn(remotePeerID string) {
	m.mu.Lock()
	conn, ok := m.conns[remotePeerID]
	if ok {
		delete(m.conns, remotePeerID)
	}
	m.mu.Unlock()
	if ok {
		_ = conn.close()
	}
}

// ---------------------------------------------------------------------------
// Transfers
// ---------------------------------------------------------------------------

// SendFile streams src to the remote peer over its open data channel and
// returns the transfer's file id once the send loop completes. It fails
// synchronously with ErrChannelNotReady when no open channel exists and with
// ErrTransferInProgress when a send is already active on the channel.
func (m *Manager) SendFile(ctx context.Context, remotePeerID string, src transfer.Source) (string, error) {
	m.mu.Lock()
	conn, ok := m.conns[remotePeerID]
	m.mu.Unlock()
	if !ok {
		return "", ErrChannelNotReady
	}

	dc := conn.dataChannel()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return "", ErrChannelNotReady
	}

	if !conn.beginSend() {
		return "", ErrTransferInProgress
	}
	defer conn.endSend()

	return m.sender.Send(ctx, remotePeerID, dc, src, m.notifyProgress)
}

// WaitForChannel blocks until the data channel to the peer is open, the
// connection disappears, or ctx expires.
func (m *Manager) WaitForChannel(ctx context.Context, remotePeerID string) error {
	m.mu.Lock()
	conn, ok := m.conns[remotePeerID]
	m.mu.Unlock()
	if !ok {
		return ErrChannelNotReady
	}

	select {
	case <-conn.opened():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect tears down every peer connection and the relay connection.
// In-flight transfers are abandoned without completion callbacks.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*peerConn)
	m.mu.Unlock()

	for id, conn := range conns {
		m.receiver.AbandonPeer(id)
		if err := conn.close(); err != nil {
			m.log.Warnf("Failed to close connection to %s: %v", id, err)
		}
	}
	return m.signal.Close()
}
