package signaling

import "testing"

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "presence update", data: `{"type":"presence_update","id":"u1","name":"Alice","position":{"lat":1,"lng":2}}`},
		{name: "presence update with altitude", data: `{"type":"presence_update","id":"u1","position":{"lat":1,"lng":2,"altitude":35.5}}`},
		{name: "presence update missing id", data: `{"type":"presence_update","position":{"lat":1,"lng":2}}`, wantErr: true},
		{name: "presence update missing position", data: `{"type":"presence_update","id":"u1"}`, wantErr: true},
		{name: "presence update missing lng", data: `{"type":"presence_update","id":"u1","position":{"lat":1}}`, wantErr: true},
		{name: "presence update zero coordinates", data: `{"type":"presence_update","id":"u1","position":{"lat":0,"lng":0}}`},
		{name: "disconnect", data: `{"type":"disconnect","id":"u1"}`},
		{name: "disconnect missing id", data: `{"type":"disconnect"}`, wantErr: true},
		{name: "room create", data: `{"type":"room_create","roomId":"r1"}`},
		{name: "room create missing room", data: `{"type":"room_create"}`, wantErr: true},
		{name: "room join", data: `{"type":"room_join","roomId":"r1"}`},
		{name: "call invite", data: `{"type":"call_invite","invitedUserId":"u1","roomId":"r1"}`},
		{name: "call invite missing target", data: `{"type":"call_invite","roomId":"r1"}`, wantErr: true},
		{name: "call accept", data: `{"type":"call_accept","inviterUserId":"u2","roomId":"r1"}`},
		{name: "offer with opaque sdp body", data: `{"type":"signal_offer","targetUserId":"u1","offer":{"type":"offer","sdp":"v=0..."}}`},
		{name: "offer addressed by room", data: `{"type":"signal_offer","roomId":"r1","offer":{}}`},
		{name: "unaddressed candidate is valid at parse time", data: `{"type":"signal_ice_candidate","candidate":{}}`},
		{name: "collaborator kind passes parsing", data: `{"type":"chat_message","text":"hi"}`},
		{name: "not json", data: `presence_update u1`, wantErr: true},
		{name: "missing type", data: `{"id":"u1"}`, wantErr: true},
		{name: "wrong position type", data: `{"type":"presence_update","id":"u1","position":"here"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseEnvelope([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEnvelope(%s) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			}
		})
	}
}

func TestRegistryPosition(t *testing.T) {
	env, err := parseEnvelope([]byte(`{"type":"presence_update","id":"u1","position":{"lat":48.85,"lng":2.35,"altitude":35}}`))
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	pos := env.registryPosition()
	if pos.Lat != 48.85 || pos.Lng != 2.35 {
		t.Fatalf("unexpected position %+v", pos)
	}
	if pos.Alt == nil || *pos.Alt != 35 {
		t.Fatalf("expected altitude to survive, got %+v", pos.Alt)
	}
}
