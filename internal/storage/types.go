package storage

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-gather/internal/realm"
)

// Realm is the persisted authorization record and map of a realm.
type Realm struct {
	Name      string       `json:"name"`
	OwnerId   string       `json:"owner_id"`
	ShareId   string       `json:"share_id"`
	OnlyOwner bool         `json:"only_owner"`
	MapData   realm.Layout `json:"map_data"`
}

// Validate satisfies ValidatingSpec.
func (r *Realm) Validate() error {
	el := errors.NewErrorList()

	if r.OwnerId == "" {
		el.Add(fmt.Errorf("owner_id is required"))
	}
	if r.ShareId == "" {
		el.Add(fmt.Errorf("share_id is required"))
	}
	if err := r.MapData.Validate(); err != nil {
		el.Add(fmt.Errorf("map_data: %w", err))
	}

	return el.Err()
}

// Profile is the persisted per-identity record.
type Profile struct {
	Username      string   `json:"username"`
	Skin          string   `json:"skin,omitempty"`
	VisitedRealms []string `json:"visited_realms,omitempty"`
}

// Validate satisfies ValidatingSpec.
func (p *Profile) Validate() error {
	return nil
}
