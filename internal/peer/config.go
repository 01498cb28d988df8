package peer

import "github.com/pion/webrtc/v3"

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

// DefaultSTUNConfig is the PeerConnection configuration used when none is
// supplied. STUN only; the system assumes directly reachable peers.
func DefaultSTUNConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: defaultSTUNServers},
		},
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
}

// DefaultDataChannelConfig configures the single ordered, reliable transfer
// channel per peer pair.
func DefaultDataChannelConfig() *webrtc.DataChannelInit {
	ordered := true
	protocolName := "file-transfer"
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: nil,
		Protocol:       &protocolName,
	}
}
