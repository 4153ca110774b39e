package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/Gwilymm/mds-api-class/internal/registry"
)

type messageKind string

const (
	kindPresenceUpdate     messageKind = "presence_update"
	kindDisconnect         messageKind = "disconnect"
	kindRoomCreate         messageKind = "room_create"
	kindRoomJoin           messageKind = "room_join"
	kindCallInvite         messageKind = "call_invite"
	kindCallAccept         messageKind = "call_accept"
	kindSignalOffer        messageKind = "signal_offer"
	kindSignalAnswer       messageKind = "signal_answer"
	kindSignalICECandidate messageKind = "signal_ice_candidate"

	// Outbound-only kinds.
	kindPresenceSnapshot messageKind = "presence_snapshot"
	kindError            messageKind = "error"
)

// position mirrors registry.Position but keeps lat/lng as pointers so a
// missing coordinate is distinguishable from 0,0.
type position struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
	Alt *float64 `json:"altitude,omitempty"`
}

// envelope is the routing header of one inbound frame. Only the fields the
// router needs are decoded; everything else (SDP bodies, ICE candidates,
// collaborator extensions) stays in the raw frame and is forwarded verbatim.
type envelope struct {
	Type messageKind `json:"type"`

	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Position *position `json:"position"`

	RoomID        string `json:"roomId"`
	InvitedUserID string `json:"invitedUserId"`
	InviterUserID string `json:"inviterUserId"`
	TargetUserID  string `json:"targetUserId"`
}

// parseEnvelope decodes the routing header and checks the fields required by
// the frame's kind. Unknown kinds are not an error here; the router decides
// whether to drop them.
func parseEnvelope(data []byte) (envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return envelope{}, fmt.Errorf("envelope missing type")
	}
	if err := env.validate(); err != nil {
		return envelope{}, err
	}
	return env, nil
}

func (e envelope) validate() error {
	switch e.Type {
	case kindPresenceUpdate:
		if e.ID == "" {
			return fmt.Errorf("presence_update missing id")
		}
		if e.Position == nil || e.Position.Lat == nil || e.Position.Lng == nil {
			return fmt.Errorf("presence_update missing position lat/lng")
		}
	case kindDisconnect:
		if e.ID == "" {
			return fmt.Errorf("disconnect missing id")
		}
	case kindRoomCreate, kindRoomJoin:
		if e.RoomID == "" {
			return fmt.Errorf("%s missing roomId", e.Type)
		}
	case kindCallInvite:
		if e.InvitedUserID == "" {
			return fmt.Errorf("call_invite missing invitedUserId")
		}
	case kindCallAccept:
		if e.InviterUserID == "" {
			return fmt.Errorf("call_accept missing inviterUserId")
		}
	case kindSignalOffer, kindSignalAnswer, kindSignalICECandidate:
		// Addressing is optional: explicit target id, explicit room id, or the
		// sender's room affinity at routing time.
	}
	return nil
}

func (e envelope) registryPosition() registry.Position {
	pos := registry.Position{}
	if e.Position != nil {
		if e.Position.Lat != nil {
			pos.Lat = *e.Position.Lat
		}
		if e.Position.Lng != nil {
			pos.Lng = *e.Position.Lng
		}
		pos.Alt = e.Position.Alt
	}
	return pos
}

type presenceSnapshotMessage struct {
	Type  messageKind              `json:"type"`
	Users []registry.PresenceEntry `json:"users"`
}

type errorMessage struct {
	Type    messageKind `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

func encodeError(code, message string) []byte {
	data, err := json.Marshal(errorMessage{Type: kindError, Code: code, Message: message})
	if err != nil {
		// Marshalling a struct of strings cannot fail.
		panic(err)
	}
	return data
}
