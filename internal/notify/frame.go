package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vikaShenoy/Flockr-sub001/internal/domain"
)

// Wire discriminators carried in the "type" field of every frame.
const (
	TypeConnected    = "connected"
	TypeDisconnected = "disconnected"
	TypeTripUpdated  = "tripUpdated"
	TypeChatMessage  = "send-chat-message"
	TypeChatDeleted  = "delete-chat-message"
	TypeMapPing      = "ping-map"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Frame is an event payload pushed over a live connection. The set of
// implementations is closed; Type returns the wire discriminator.
type Frame interface {
	Type() string
	frame()
}

// Connected announces that User came online.
type Connected struct {
	User domain.UserSummary `json:"user"`
}

// Disconnected announces that User went offline.
type Disconnected struct {
	User domain.UserSummary `json:"user"`
}

// TripUpdated carries the new view of an edited trip node.
type TripUpdated struct {
	Trip domain.TripView `json:"trip"`
}

// ChatMessage carries a message posted to a chat group.
type ChatMessage struct {
	GroupID   uuid.UUID `json:"chatGroupId"`
	Text      string    `json:"message"`
	SenderID  uuid.UUID `json:"senderId"`
	MessageID uuid.UUID `json:"messageId"`
}

// ChatDeleted tells group members a message was removed.
type ChatDeleted struct {
	MessageID uuid.UUID `json:"messageId"`
}

// MapPing marks a location on a trip's map.
type MapPing struct {
	TripNodeID uuid.UUID `json:"tripNodeId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
}

// Ping is the client keep-alive; Pong is the reply.
type Ping struct{}

type Pong struct{}

func (Connected) Type() string    { return TypeConnected }
func (Disconnected) Type() string { return TypeDisconnected }
func (TripUpdated) Type() string  { return TypeTripUpdated }
func (ChatMessage) Type() string  { return TypeChatMessage }
func (ChatDeleted) Type() string  { return TypeChatDeleted }
func (MapPing) Type() string      { return TypeMapPing }
func (Ping) Type() string         { return TypePing }
func (Pong) Type() string         { return TypePong }

func (Connected) frame()    {}
func (Disconnected) frame() {}
func (TripUpdated) frame()  {}
func (ChatMessage) frame()  {}
func (ChatDeleted) frame()  {}
func (MapPing) frame()      {}
func (Ping) frame()         {}
func (Pong) frame()         {}

// ErrUnknownFrame is returned by Decode for a missing or unrecognised type.
var ErrUnknownFrame = errors.New("unknown frame type")

// Encode serializes f as a JSON object with its fields plus "type".
func Encode(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("notify.Encode: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("notify.Encode: %w", err)
	}
	typ, _ := json.Marshal(f.Type())
	fields["type"] = typ
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("notify.Encode: %w", err)
	}
	return out, nil
}

// Decode parses an inbound frame by its "type" field.
func Decode(data []byte) (Frame, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("notify.Decode: %w", err)
	}

	var f Frame
	switch head.Type {
	case TypeConnected:
		f = &Connected{}
	case TypeDisconnected:
		f = &Disconnected{}
	case TypeTripUpdated:
		f = &TripUpdated{}
	case TypeChatMessage:
		f = &ChatMessage{}
	case TypeChatDeleted:
		f = &ChatDeleted{}
	case TypeMapPing:
		f = &MapPing{}
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	default:
		return nil, fmt.Errorf("notify.Decode: %w: %q", ErrUnknownFrame, head.Type)
	}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("notify.Decode: %w", err)
	}
	return deref(f), nil
}

func deref(f Frame) Frame {
	switch v := f.(type) {
	case *Connected:
		return *v
	case *Disconnected:
		return *v
	case *TripUpdated:
		return *v
	case *ChatMessage:
		return *v
	case *ChatDeleted:
		return *v
	case *MapPing:
		return *v
	}
	return f
}
