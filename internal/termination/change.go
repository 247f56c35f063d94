package termination

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-gather/internal/storage"
)

const (
	ReasonChanged = "This realm has been changed by the owner."
	ReasonRemoved = "This realm is no longer available."
)

// Change is a notice that a persisted realm was edited or deleted.
type Change struct {
	RealmId string         `json:"realm_id"`
	Deleted bool           `json:"deleted,omitempty"`
	Before  *storage.Realm `json:"before,omitempty"`
	After   *storage.Realm `json:"after,omitempty"`
}

func (c *Change) Validate() error {
	el := errors.NewErrorList()

	if c.RealmId == "" {
		el.Add(fmt.Errorf("realm_id is required"))
	}
	if !c.Deleted && c.After == nil {
		el.Add(fmt.Errorf("after is required unless deleted"))
	}

	return el.Err()
}

// Reason returns the eviction reason for the change, or false when live
// sessions of the realm remain valid.
func (c *Change) Reason() (string, bool) {
	if c.Deleted {
		return ReasonRemoved, true
	}
	if ShouldTerminate(c.Before, c.After) {
		return ReasonChanged, true
	}
	return "", false
}

// ShouldTerminate reports whether an edit invalidates live sessions: the map
// changed, the share token rotated or the realm became owner-only. A missing
// prior record always invalidates.
func ShouldTerminate(before, after *storage.Realm) bool {
	if before == nil || after == nil {
		return true
	}
	if before.ShareId != after.ShareId {
		return true
	}
	if after.OnlyOwner && !before.OnlyOwner {
		return true
	}
	return !sameJSON(before.MapData, after.MapData)
}

// sameJSON compares two values by their canonical encoding, ignoring key
// order and whitespace inside raw fields.
func sameJSON(a, b any) bool {
	ca, err := canonical(a)
	if err != nil {
		return false
	}
	cb, err := canonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

func canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
