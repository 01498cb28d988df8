// Package signaling implements the relay wire schema and the peer-side relay
// client. The relay forwards negotiation envelopes between peer identities and
// rebroadcasts the full online roster on every membership change.
package signaling

import "encoding/json"

// MessageType identifies the kind of relay envelope.
type MessageType string

const (
	MsgTypeOnlineUsers  MessageType = "online_users"
	MsgTypeUpdateInfo   MessageType = "update_info"
	MsgTypeOffer        MessageType = "offer"
	MsgTypeAnswer       MessageType = "answer"
	MsgTypeICECandidate MessageType = "ice-candidate"
)

// SessionDescription mirrors the browser-style {type, sdp} object carried in
// offer and answer envelopes.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// User is one roster entry as broadcast by the relay.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Emoji       string `json:"emoji"`
	ConnectedAt int64  `json:"connected_at"`
}

// Envelope is the JSON text frame exchanged with the relay. Target is set by
// the sending peer; the relay replaces it with Sender before forwarding.
// Candidate carries a JSON-encoded ICECandidateInit and is kept raw so the
// relay never needs to understand it.
type Envelope struct {
	Type      MessageType         `json:"type"`
	Sender    string              `json:"sender,omitempty"`
	Target    string              `json:"target,omitempty"`
	Username  string              `json:"username,omitempty"`
	Emoji     string              `json:"emoji,omitempty"`
	Offer     *SessionDescription `json:"offer,omitempty"`
	Answer    *SessionDescription `json:"answer,omitempty"`
	Candidate json.RawMessage     `json:"candidate,omitempty"`
	Users     []User              `json:"users,omitempty"`
}

func BuildUpdateInfo(username, emoji string) Envelope {
	return Envelope{Type: MsgTypeUpdateInfo, Username: username, Emoji: emoji}
}

func BuildOffer(target, sdp string) Envelope {
	return Envelope{
		Type:   MsgTypeOffer,
		Target: target,
		Offer:  &SessionDescription{Type: "offer", SDP: sdp},
	}
}

func BuildAnswer(target, sdp string) Envelope {
	return Envelope{
		Type:   MsgTypeAnswer,
		Target: target,
		Answer: &SessionDescription{Type: "answer", SDP: sdp},
	}
}

func BuildICECandidate(target string, candidate json.RawMessage) Envelope {
	return Envelope{Type: MsgTypeICECandidate, Target: target, Candidate: candidate}
}
