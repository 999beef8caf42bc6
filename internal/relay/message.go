package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound events accepted from clients.
const (
	EventJoinCall        = "join_call"
	EventPeerSignal      = "peer_signal"
	EventVoiceCallStart  = "voice_call_start"
	EventVoiceCallStatus = "voice_call_status"
	EventVoiceCallEnd    = "voice_call_end"
	EventChatMessage     = "chat_message"
	EventTypingStart     = "typing_start"
	EventTypingStop      = "typing_stop"
	EventPing            = "ping"
)

// Outbound events emitted by the relay.
const (
	EventUserJoined = "user_joined"
	EventUserLeft   = "user_left"
	EventPong       = "pong"
	EventError      = "error"
)

const DefaultCallMode = "realtime"

// Envelope is the wire frame: one named event plus its payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ID accepts both JSON strings and numbers, since clients send role ids
// as bare numbers and session ids as strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, "\"") {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

type JoinCallPayload struct {
	RoleID    ID `json:"roleId"`
	SessionID ID `json:"sessionId"`
	UserID    ID `json:"userId"`
}

type PeerSignalPayload struct {
	RoleID         ID              `json:"roleId"`
	SessionID      ID              `json:"sessionId"`
	SignalData     json.RawMessage `json:"signalData"`
	TargetSocketID string          `json:"targetSocketId,omitempty"`
}

type VoiceCallStartPayload struct {
	RoleID    ID     `json:"roleId"`
	SessionID ID     `json:"sessionId"`
	CallMode  string `json:"callMode,omitempty"`
}

type VoiceCallStatusPayload struct {
	RoleID    ID     `json:"roleId"`
	SessionID ID     `json:"sessionId"`
	Status    string `json:"status"`
	Quality   string `json:"quality,omitempty"`
}

type VoiceCallEndPayload struct {
	RoleID    ID `json:"roleId"`
	SessionID ID `json:"sessionId"`
}

// ErrorPayload is sent back to a client whose message was rejected at the
// boundary.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reject describes why an inbound message was refused. A nil Reject means
// the message parsed and validated cleanly.
type Reject struct {
	Code    string
	Message string
}

func (r *Reject) Payload() ErrorPayload {
	return ErrorPayload{Code: r.Code, Message: r.Message}
}

const (
	RejectCodeInvalidPayload = "invalid_payload"
	RejectCodeUnknownEvent   = "unknown_event"
)

func rejectf(format string, args ...any) *Reject {
	return &Reject{Code: RejectCodeInvalidPayload, Message: fmt.Sprintf(format, args...)}
}

func decodeInto(data json.RawMessage, v any) *Reject {
	if len(data) == 0 {
		return rejectf("missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return rejectf("malformed payload: %v", err)
	}
	return nil
}

func DecodeJoinCall(data json.RawMessage) (JoinCallPayload, *Reject) {
	var p JoinCallPayload
	if rej := decodeInto(data, &p); rej != nil {
		return p, rej
	}
	if p.RoleID == "" || p.SessionID == "" {
		return p, rejectf("join_call requires roleId and sessionId")
	}
	if p.UserID == "" {
		return p, rejectf("join_call requires userId")
	}
	return p, nil
}

func DecodePeerSignal(data json.RawMessage) (PeerSignalPayload, *Reject) {
	var p PeerSignalPayload
	if rej := decodeInto(data, &p); rej != nil {
		return p, rej
	}
	if p.RoleID == "" || p.SessionID == "" {
		return p, rejectf("peer_signal requires roleId and sessionId")
	}
	if len(p.SignalData) == 0 {
		return p, rejectf("peer_signal requires signalData")
	}
	return p, nil
}

func DecodeVoiceCallStart(data json.RawMessage) (VoiceCallStartPayload, *Reject) {
	var p VoiceCallStartPayload
	if rej := decodeInto(data, &p); rej != nil {
		return p, rej
	}
	if p.RoleID == "" || p.SessionID == "" {
		return p, rejectf("voice_call_start requires roleId and sessionId")
	}
	if p.CallMode == "" {
		p.CallMode = DefaultCallMode
	}
	return p, nil
}

func DecodeVoiceCallStatus(data json.RawMessage) (VoiceCallStatusPayload, *Reject) {
	var p VoiceCallStatusPayload
	if rej := decodeInto(data, &p); rej != nil {
		return p, rej
	}
	if p.RoleID == "" || p.SessionID == "" {
		return p, rejectf("voice_call_status requires roleId and sessionId")
	}
	if p.Status == "" {
		return p, rejectf("voice_call_status requires status")
	}
	return p, nil
}

func DecodeVoiceCallEnd(data json.RawMessage) (VoiceCallEndPayload, *Reject) {
	var p VoiceCallEndPayload
	if rej := decodeInto(data, &p); rej != nil {
		return p, rej
	}
	if p.RoleID == "" || p.SessionID == "" {
		return p, rejectf("voice_call_end requires roleId and sessionId")
	}
	return p, nil
}

// DecodeChatMessage keeps the payload open-ended: clients attach arbitrary
// fields that are forwarded untouched, only message is required.
func DecodeChatMessage(data json.RawMessage) (map[string]any, *Reject) {
	var p map[string]any
	if rej := decodeInto(data, &p); rej != nil {
		return nil, rej
	}
	if _, ok := p["message"]; !ok {
		return nil, rejectf("chat_message requires message")
	}
	return p, nil
}

// DecodeTyping accepts any object; typing indicators carry whatever the
// client wants the room to see.
func DecodeTyping(data json.RawMessage) (map[string]any, *Reject) {
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var p map[string]any
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, rejectf("malformed payload: %v", err)
	}
	return p, nil
}

// KnownEvent reports whether the relay understands the inbound event name.
func KnownEvent(event string) bool {
	switch event {
	case EventJoinCall, EventPeerSignal, EventVoiceCallStart, EventVoiceCallStatus,
		EventVoiceCallEnd, EventChatMessage, EventTypingStart, EventTypingStop, EventPing:
		return true
	}
	return false
}
