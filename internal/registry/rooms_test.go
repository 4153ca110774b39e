package registry

import "testing"

func TestRooms_CreateIsIdempotent(t *testing.T) {
	rooms := NewRooms()

	if !rooms.Create("r1") {
		t.Fatalf("expected first create to succeed")
	}
	if rooms.Create("r1") {
		t.Fatalf("expected duplicate create to be a no-op")
	}
}

func TestRooms_JoinCreatesRoom(t *testing.T) {
	rooms := NewRooms()
	conn := newFakeConn("c1")

	rooms.Join("r1", conn)

	if !rooms.Exists("r1") {
		t.Fatalf("expected join to create the room")
	}
	if got := rooms.MemberCount("r1"); got != 1 {
		t.Fatalf("expected 1 member, got %d", got)
	}

	// A late explicit create must not wipe the joiner.
	if rooms.Create("r1") {
		t.Fatalf("expected create after join to be a no-op")
	}
	if got := rooms.MemberCount("r1"); got != 1 {
		t.Fatalf("expected joiner to survive late create, got %d members", got)
	}
}

func TestRooms_MembersExcept(t *testing.T) {
	rooms := NewRooms()
	a := newFakeConn("a")
	b := newFakeConn("b")
	c := newFakeConn("c")

	rooms.Join("r1", a)
	rooms.Join("r1", b)
	rooms.Join("r1", c)

	members := rooms.MembersExcept("r1", a)
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	for _, m := range members {
		if m.ID() == "a" {
			t.Fatalf("sender must be excluded from fan-out")
		}
	}
}

func TestRooms_MembersExceptMissingRoom(t *testing.T) {
	rooms := NewRooms()
	if members := rooms.MembersExcept("nope", newFakeConn("a")); len(members) != 0 {
		t.Fatalf("expected empty member list for missing room, got %d", len(members))
	}
}

func TestRooms_JoinTwiceSingleMembership(t *testing.T) {
	rooms := NewRooms()
	a := newFakeConn("a")

	rooms.Join("r1", a)
	rooms.Join("r1", a)

	if got := rooms.MemberCount("r1"); got != 1 {
		t.Fatalf("expected repeated join to keep a single membership, got %d", got)
	}
}

func TestRooms_LeaveAll(t *testing.T) {
	rooms := NewRooms()
	a := newFakeConn("a")
	b := newFakeConn("b")

	rooms.Join("r1", a)
	rooms.Join("r2", a)
	rooms.Join("r1", b)

	rooms.LeaveAll(a)

	if got := rooms.MemberCount("r1"); got != 1 {
		t.Fatalf("expected only b in r1, got %d members", got)
	}
	if got := rooms.MemberCount("r2"); got != 0 {
		t.Fatalf("expected r2 to be empty, got %d members", got)
	}
	if !rooms.Exists("r2") {
		t.Fatalf("rooms are not deleted when they empty out")
	}
}
