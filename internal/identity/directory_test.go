package identity

import (
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestDirectory_Release(t *testing.T) {
	tests := map[string]struct {
		setup     func(d *Directory)
		releaseBy string
		expOk     bool
		expFound  bool
	}{
		"owner releases": {
			setup: func(d *Directory) {
				d.Add("alice", "Alice", "conn-1")
			},
			releaseBy: "conn-1",
			expOk:     true,
			expFound:  false,
		},
		"stale connection keeps newer entry": {
			setup: func(d *Directory) {
				d.Add("alice", "Alice", "conn-1")
				d.Add("alice", "Alice Again", "conn-2")
			},
			releaseBy: "conn-1",
			expOk:     false,
			expFound:  true,
		},
		"unknown identity": {
			setup:     func(d *Directory) {},
			releaseBy: "conn-1",
			expOk:     false,
			expFound:  false,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := NewDirectory()
			tt.setup(d)

			ok := d.Release("alice", tt.releaseBy)
			testutil.AssertEqual(t, "released", ok, tt.expOk)

			_, found := d.Get("alice")
			testutil.AssertEqual(t, "found", found, tt.expFound)
		})
	}
}

func TestDirectory_AddOverwrites(t *testing.T) {
	d := NewDirectory()
	d.Add("alice", "Alice", "conn-1")
	d.Add("alice", "Alicia", "conn-2")

	u, ok := d.Get("alice")
	testutil.AssertEqual(t, "found", ok, true)
	testutil.AssertEqual(t, "username", u.Username, "Alicia")
	testutil.AssertEqual(t, "len", d.Len(), 1)
}
