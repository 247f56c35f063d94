package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/pixil98/go-gather/internal/identity"
	"github.com/pixil98/go-gather/internal/realm"
	"github.com/pixil98/go-gather/internal/storage"
)

const (
	testRealm      = "5b0f6d8e-3c2a-4e1b-9f47-2d6a8c1e0b93"
	otherRealm     = "a7c3e912-4b5d-4f60-8e21-9d0b3f6c5a74"
	testShare      = "share-1"
	testSpawnX     = 5
	testSpawnY     = 5
	testRoomCount  = 2
	testOwner      = "alice"
	testOwnerName  = "Alice"
	testGuest      = "bob"
	testGuestName  = "Bob"
	testThird      = "carol"
	testThirdName  = "Carol"
	testCustomSkin = "042"
)

var errBackend = errors.New("backend unavailable")

type recordingTransport struct {
	mu      sync.Mutex
	frames  map[string][]Message
	order   []string
	groups  map[string]map[string]bool
	failFor map[string]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		frames:  map[string][]Message{},
		groups:  map[string]map[string]bool{},
		failFor: map[string]bool{},
	}
}

func (t *recordingTransport) EmitTo(connId string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failFor[connId] {
		return errBackend
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	t.frames[connId] = append(t.frames[connId], msg)
	t.order = append(t.order, connId+" "+msg.Event)
	return nil
}

func (t *recordingTransport) JoinGroup(connId, group string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.groups[group] == nil {
		t.groups[group] = map[string]bool{}
	}
	t.groups[group][connId] = true
	return nil
}

func (t *recordingTransport) LeaveGroup(connId, group string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.groups[group], connId)
	return nil
}

func (t *recordingTransport) events(connId string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []string
	for _, m := range t.frames[connId] {
		events = append(events, m.Event)
	}
	return events
}

// sequence returns every delivered frame as "connId event", in emit order.
func (t *recordingTransport) sequence() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.order)
}

func (t *recordingTransport) last(connId string) Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := t.frames[connId]
	if len(frames) == 0 {
		return Message{}
	}
	return frames[len(frames)-1]
}

func (t *recordingTransport) inGroup(group, connId string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.groups[group][connId]
}

func (t *recordingTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames = map[string][]Message{}
	t.order = nil
}

type stubRepository struct {
	realms     map[string]*storage.Realm
	profiles   map[string]*storage.Profile
	realmErr   error
	profileErr error
	upserted   []string

	// When set, GetRealm signals entered and then blocks until release closes.
	entered chan struct{}
	release chan struct{}
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		realms: map[string]*storage.Realm{
			testRealm:  newTestRealm(false),
			otherRealm: newTestRealm(false),
		},
		profiles: map[string]*storage.Profile{},
	}
}

func (r *stubRepository) GetRealm(_ context.Context, realmId string) (*storage.Realm, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
		<-r.release
	}
	if r.realmErr != nil {
		return nil, r.realmErr
	}
	rec, ok := r.realms[realmId]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

func (r *stubRepository) GetProfile(_ context.Context, id string) (*storage.Profile, error) {
	if r.profileErr != nil {
		return nil, r.profileErr
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (r *stubRepository) UpsertProfile(_ context.Context, id, _ string) error {
	r.upserted = append(r.upserted, id)
	return nil
}

func newTestLayout() realm.Layout {
	l := realm.Layout{Spawnpoint: realm.Spawnpoint{RoomIndex: 0, X: testSpawnX, Y: testSpawnY}}
	for i := 0; i < testRoomCount; i++ {
		l.Rooms = append(l.Rooms, json.RawMessage(`{}`))
	}
	return l
}

func newTestRealm(onlyOwner bool) *storage.Realm {
	return &storage.Realm{
		Name:      "Test Realm",
		OwnerId:   testOwner,
		ShareId:   testShare,
		OnlyOwner: onlyOwner,
		MapData:   newTestLayout(),
	}
}

type testHarness struct {
	h    *Handler
	tr   *recordingTransport
	repo *stubRepository
}

func newTestHarness(opts ...realm.RegistryOpt) *testHarness {
	tr := newRecordingTransport()
	out := NewBroadcaster(tr)
	repo := newStubRepository()
	reg := realm.NewRegistry(out, opts...)
	return &testHarness{
		h:    NewHandler(reg, identity.NewDirectory(), repo, out),
		tr:   tr,
		repo: repo,
	}
}

func (th *testHarness) connect(t *testing.T, connId, id, username string) Conn {
	t.Helper()
	c := Conn{Id: connId, Identity: id, Username: username}
	if err := th.h.Connect(context.Background(), c); err != nil {
		t.Fatalf("connect %s: %v", connId, err)
	}
	return c
}

func (th *testHarness) send(c Conn, event string, payload any) {
	raw, _ := json.Marshal(payload)
	th.h.Dispatch(context.Background(), c, Message{Event: event, Data: raw})
}

func (th *testHarness) join(c Conn, realmId, shareId string) {
	th.send(c, EventJoinRealm, JoinRealmData{RealmId: realmId, ShareId: shareId})
}

// seat connects and joins the owner and the guest to testRealm, then clears
// the recorded frames.
func (th *testHarness) seat(t *testing.T) (owner, guest Conn) {
	t.Helper()
	owner = th.connect(t, "conn-a", testOwner, testOwnerName)
	guest = th.connect(t, "conn-b", testGuest, testGuestName)
	th.join(owner, testRealm, "")
	th.join(guest, testRealm, testShare)
	th.tr.reset()
	return owner, guest
}

func assertEvents(t *testing.T, name string, got, exp []string) {
	t.Helper()
	if !slices.Equal(got, exp) {
		t.Errorf("%s = %v, expected %v", name, got, exp)
	}
}

func decodeData[T any](t *testing.T, msg Message) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		t.Fatalf("decoding %s data %q: %v", msg.Event, msg.Data, err)
	}
	return v
}
