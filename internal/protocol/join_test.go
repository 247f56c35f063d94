package protocol

import (
	"context"
	"fmt"
	"testing"

	"github.com/pixil98/go-gather/internal/realm"
	"github.com/pixil98/go-gather/internal/storage"
	"github.com/pixil98/go-testutil"
)

func TestHandler_JoinRealm(t *testing.T) {
	tests := map[string]struct {
		identity   string
		connect    bool
		realmId    string
		shareId    string
		onlyOwner  bool
		realmErr   error
		profileErr error
		profile    *storage.Profile

		expEvent   string
		expReason  string
		expPlayers int
		expSkin    string
	}{
		"owner joins without share": {
			identity:   testOwner,
			connect:    true,
			realmId:    testRealm,
			expEvent:   EventJoinedRealm,
			expPlayers: 1,
			expSkin:    DefaultSkin,
		},
		"guest joins with share": {
			identity:   testGuest,
			connect:    true,
			realmId:    testRealm,
			shareId:    testShare,
			expEvent:   EventJoinedRealm,
			expPlayers: 1,
			expSkin:    DefaultSkin,
		},
		"profile skin is used": {
			identity:   testGuest,
			connect:    true,
			realmId:    testRealm,
			shareId:    testShare,
			profile:    &storage.Profile{Username: testGuestName, Skin: testCustomSkin},
			expEvent:   EventJoinedRealm,
			expPlayers: 1,
			expSkin:    testCustomSkin,
		},
		"owner joins private realm": {
			identity:   testOwner,
			connect:    true,
			realmId:    testRealm,
			onlyOwner:  true,
			expEvent:   EventJoinedRealm,
			expPlayers: 1,
			expSkin:    DefaultSkin,
		},
		"guest with stale share": {
			identity:  testGuest,
			connect:   true,
			realmId:   testRealm,
			shareId:   "old-share",
			expEvent:  EventFailedToJoinRoom,
			expReason: RejectShareChanged.Reason,
		},
		"guest in private realm": {
			identity:  testGuest,
			connect:   true,
			realmId:   testRealm,
			shareId:   testShare,
			onlyOwner: true,
			expEvent:  EventFailedToJoinRoom,
			expReason: RejectPrivate.Reason,
		},
		"unknown realm": {
			identity:  testOwner,
			connect:   true,
			realmId:   "0e9b1c2d-7f3a-4d8e-b6a5-1c2d3e4f5a6b",
			expEvent:  EventFailedToJoinRoom,
			expReason: RejectNotFound.Reason,
		},
		"realm id is not a uuid": {
			identity:  testOwner,
			connect:   true,
			realmId:   "not-a-uuid",
			expEvent:  EventFailedToJoinRoom,
			expReason: RejectInvalid.Reason,
		},
		"realm lookup fails": {
			identity:  testOwner,
			connect:   true,
			realmId:   testRealm,
			realmErr:  errBackend,
			expEvent:  EventFailedToJoinRoom,
			expReason: RejectServerError.Reason,
		},
		"profile lookup fails": {
			identity:   testOwner,
			connect:    true,
			realmId:    testRealm,
			profileErr: errBackend,
			expEvent:   EventFailedToJoinRoom,
			expReason:  RejectServerError.Reason,
		},
		"identity never connected": {
			identity:  testOwner,
			realmId:   testRealm,
			expEvent:  EventFailedToJoinRoom,
			expReason: RejectUserNotFound.Reason,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			th := newTestHarness()
			th.repo.realms[testRealm].OnlyOwner = tt.onlyOwner
			th.repo.realmErr = tt.realmErr
			th.repo.profileErr = tt.profileErr
			if tt.profile != nil {
				th.repo.profiles[tt.identity] = tt.profile
			}

			c := Conn{Id: "conn-1", Identity: tt.identity, Username: "User"}
			if tt.connect {
				c = th.connect(t, c.Id, c.Identity, c.Username)
			}

			th.join(c, tt.realmId, tt.shareId)

			assertEvents(t, "events", th.tr.events(c.Id), []string{tt.expEvent})
			if tt.expReason != "" {
				testutil.AssertEqual(t, "reason", decodeData[string](t, th.tr.last(c.Id)), tt.expReason)
			}

			_, players := th.h.Counts()
			testutil.AssertEqual(t, "players", players, tt.expPlayers)
			testutil.AssertEqual(t, "in group", th.tr.inGroup(tt.realmId, c.Id), tt.expPlayers == 1)
			testutil.AssertEqual(t, "pending cleared", th.h.Joining(tt.identity), false)

			if tt.expPlayers == 1 {
				got, err := th.h.PlayersInRoom(tt.identity, 0)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				testutil.AssertEqual(t, "room size", len(got), 1)
				testutil.AssertEqual(t, "skin", got[0].Skin, tt.expSkin)
				testutil.AssertEqual(t, "x", got[0].X, testSpawnX)
				testutil.AssertEqual(t, "y", got[0].Y, testSpawnY)
			}
		})
	}
}

func TestHandler_JoinRealm_AnnouncesArrival(t *testing.T) {
	th := newTestHarness()
	owner := th.connect(t, "conn-a", testOwner, testOwnerName)
	guest := th.connect(t, "conn-b", testGuest, testGuestName)

	th.join(owner, testRealm, "")
	th.join(guest, testRealm, testShare)

	assertEvents(t, "owner events", th.tr.events(owner.Id), []string{EventJoinedRealm, EventPlayerJoinedRoom})
	assertEvents(t, "guest events", th.tr.events(guest.Id), []string{EventJoinedRealm, EventPlayerJoinedRoom})

	roster := decodeData[realm.Player](t, th.tr.last(guest.Id))
	testutil.AssertEqual(t, "roster uid", roster.Identity, testOwner)

	p := decodeData[realm.Player](t, th.tr.last(owner.Id))
	testutil.AssertEqual(t, "uid", p.Identity, testGuest)
	testutil.AssertEqual(t, "username", p.Username, testGuestName)
	testutil.AssertEqual(t, "socketId", p.ConnId, guest.Id)
	testutil.AssertEqual(t, "room", p.Room, 0)
}

func TestHandler_JoinRealm_Capacity(t *testing.T) {
	tests := map[string]struct {
		opts      []realm.RegistryOpt
		seated    int
		expReason string
	}{
		"default ceiling": {
			seated:    realm.DefaultMaxPlayers,
			expReason: "Space is full. It's 30 players max.",
		},
		"configured ceiling": {
			opts:      []realm.RegistryOpt{realm.WithMaxPlayers(2)},
			seated:    2,
			expReason: "Space is full. It's 2 players max.",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			th := newTestHarness(tt.opts...)
			for i := 0; i < tt.seated; i++ {
				id := fmt.Sprintf("user-%02d", i)
				c := th.connect(t, "conn-"+id, id, id)
				th.join(c, testRealm, testShare)
			}

			late := th.connect(t, "conn-late", "late", "Late")
			th.join(late, testRealm, testShare)

			assertEvents(t, "events", th.tr.events(late.Id), []string{EventFailedToJoinRoom})
			testutil.AssertEqual(t, "reason", decodeData[string](t, th.tr.last(late.Id)), tt.expReason)
			testutil.AssertEqual(t, "count", th.h.PlayerCounts([]string{testRealm})[0], tt.seated)
		})
	}
}

func TestHandler_JoinRealm_Displaces(t *testing.T) {
	th := newTestHarness()
	first := th.connect(t, "conn-a", testOwner, testOwnerName)
	guest := th.connect(t, "conn-b", testGuest, testGuestName)
	th.join(first, testRealm, "")
	th.join(guest, testRealm, testShare)
	th.tr.reset()

	second := th.connect(t, "conn-c", testOwner, testOwnerName)
	th.join(second, testRealm, "")

	assertEvents(t, "first events", th.tr.events(first.Id), []string{EventKicked})
	testutil.AssertEqual(t, "kick reason", decodeData[string](t, th.tr.last(first.Id)), ReasonLoggedInElsewhere)
	assertEvents(t, "second events", th.tr.events(second.Id), []string{EventJoinedRealm, EventPlayerJoinedRoom})
	assertEvents(t, "guest events", th.tr.events(guest.Id), []string{EventPlayerLeftRoom, EventPlayerJoinedRoom})
	testutil.AssertEqual(t, "first in group", th.tr.inGroup(testRealm, first.Id), false)
	testutil.AssertEqual(t, "count", th.h.PlayerCounts([]string{testRealm})[0], 2)

	// The stale connection closing must not remove the live occupancy.
	th.h.Disconnect(context.Background(), first)
	testutil.AssertEqual(t, "count after stale disconnect", th.h.PlayerCounts([]string{testRealm})[0], 2)
}

func TestHandler_JoinRealm_MovesBetweenRealms(t *testing.T) {
	th := newTestHarness()
	owner := th.connect(t, "conn-a", testOwner, testOwnerName)
	th.join(owner, testRealm, "")
	th.join(owner, otherRealm, "")

	testutil.AssertEqual(t, "counts", fmt.Sprint(th.h.PlayerCounts([]string{testRealm, otherRealm})), "[0 1]")
	testutil.AssertEqual(t, "old group", th.tr.inGroup(testRealm, owner.Id), false)
	testutil.AssertEqual(t, "new group", th.tr.inGroup(otherRealm, owner.Id), true)
}

func TestHandler_JoinRealm_Pending(t *testing.T) {
	th := newTestHarness()
	owner := th.connect(t, "conn-a", testOwner, testOwnerName)

	th.repo.entered = make(chan struct{})
	th.repo.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		th.join(owner, testRealm, "")
	}()

	<-th.repo.entered
	testutil.AssertEqual(t, "pending", th.h.Joining(testOwner), true)

	th.join(owner, testRealm, "")
	assertEvents(t, "events while pending", th.tr.events(owner.Id), []string{EventFailedToJoinRoom})
	testutil.AssertEqual(t, "reason", decodeData[string](t, th.tr.last(owner.Id)), RejectAlreadyJoining.Reason)

	close(th.repo.release)
	<-done

	assertEvents(t, "events", th.tr.events(owner.Id), []string{EventFailedToJoinRoom, EventJoinedRealm})
	testutil.AssertEqual(t, "pending", th.h.Joining(testOwner), false)
}

func TestHandler_JoinRealm_ClosedWhilePending(t *testing.T) {
	th := newTestHarness()
	closing := th.connect(t, "conn-b1", testGuest, testGuestName)
	other := th.connect(t, "conn-b2", testGuest, testGuestName)

	th.repo.entered = make(chan struct{})
	th.repo.release = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		th.join(closing, testRealm, testShare)
	}()

	<-th.repo.entered
	th.h.Disconnect(context.Background(), closing)
	close(th.repo.release)
	<-done

	assertEvents(t, "closed events", th.tr.events(closing.Id), []string{EventFailedToJoinRoom})
	testutil.AssertEqual(t, "reason", decodeData[string](t, th.tr.last(closing.Id)), RejectUserNotFound.Reason)
	testutil.AssertEqual(t, "count", th.h.PlayerCounts([]string{testRealm})[0], 0)
	testutil.AssertEqual(t, "closed in group", th.tr.inGroup(testRealm, closing.Id), false)

	// The identity's other connection is unaffected and can still join.
	th.repo.entered = nil
	th.join(other, testRealm, testShare)
	assertEvents(t, "other events", th.tr.events(other.Id), []string{EventJoinedRealm})
	testutil.AssertEqual(t, "count after other join", th.h.PlayerCounts([]string{testRealm})[0], 1)
}
