package storage

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

// Repository is the persistence surface the presence engine reads from.
type Repository interface {
	GetRealm(ctx context.Context, realmId string) (*Realm, error)
	GetProfile(ctx context.Context, identity string) (*Profile, error)
	UpsertProfile(ctx context.Context, identity, username string) error
}

// FileRepository serves realms and profiles from JSON asset directories.
type FileRepository struct {
	realms   Storer[*Realm]
	profiles Storer[*Profile]
}

func NewFileRepository(realms Storer[*Realm], profiles Storer[*Profile]) *FileRepository {
	return &FileRepository{
		realms:   realms,
		profiles: profiles,
	}
}

func (r *FileRepository) GetRealm(_ context.Context, realmId string) (*Realm, error) {
	rec, ok := r.realms.Get(realmId)
	if !ok {
		return nil, fmt.Errorf("realm %q: %w", realmId, ErrNotFound)
	}
	return rec, nil
}

func (r *FileRepository) GetProfile(_ context.Context, identity string) (*Profile, error) {
	p, ok := r.profiles.Get(identity)
	if !ok {
		return nil, fmt.Errorf("profile %q: %w", identity, ErrNotFound)
	}
	return p, nil
}

func (r *FileRepository) UpsertProfile(_ context.Context, identity, username string) error {
	p := &Profile{Username: username}
	if existing, ok := r.profiles.Get(identity); ok {
		updated := *existing
		updated.Username = username
		p = &updated
	}

	if err := r.profiles.Save(identity, p); err != nil {
		return fmt.Errorf("saving profile %q: %w", identity, err)
	}
	return nil
}
