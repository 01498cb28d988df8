package peer

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

// Role is the negotiation role of the local side of a connection.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// peerConn is the per-remote-identity record: the underlying transport, the
// negotiation role and the single data channel once available. At most one
// peerConn exists per remote peer.
type peerConn struct {
	peerID string
	role   Role
	pc     *webrtc.PeerConnection

	mu      sync.Mutex
	dc      *webrtc.DataChannel
	state   webrtc.PeerConnectionState
	pending []webrtc.ICECandidateInit
	sending bool

	openOnce sync.Once
	openCh   chan struct{}
}

// markOpen signals waiters that the data channel reached the open state.
func (c *peerConn) markOpen() {
	c.openOnce.Do(func() { close(c.openCh) })
}

// opened returns a channel closed once the data channel is open.
func (c *peerConn) opened() <-chan struct{} {
	return c.openCh
}

func (c *peerConn) setDataChannel(dc *webrtc.DataChannel) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()
}

func (c *peerConn) dataChannel() *webrtc.DataChannel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc
}

func (c *peerConn) setState(s webrtc.PeerConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *peerConn) connectionState() webrtc.PeerConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// addCandidate applies a remote candidate, buffering it while the remote
// description is not yet set.
func (c *peerConn) addCandidate(init webrtc.ICECandidateInit) error {
	c.mu.Lock()
	if c.pc.RemoteDescription() == nil {
		c.pending = append(c.pending, init)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.pc.AddICECandidate(init)
}

// flushCandidates applies candidates buffered before the remote description
// arrived. Returns the first error encountered.
func (c *peerConn) flushCandidates() error {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	var first error
	for _, init := range pending {
		if err := c.pc.AddICECandidate(init); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// beginSend marks the channel busy with an outbound transfer. It reports
// false when one is already active: the protocol has no fileId-based stream
// isolation, so a second concurrent send is rejected rather than interleaved.
func (c *peerConn) beginSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending {
		return false
	}
	c.sending = true
	return true
}

func (c *peerConn) endSend() {
	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
}

func (c *peerConn) close() error {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	if dc != nil {
		_ = dc.Close()
	}
	return c.pc.Close()
}
