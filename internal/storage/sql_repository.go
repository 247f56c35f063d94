package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS realms (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	share_id   TEXT NOT NULL,
	only_owner INTEGER NOT NULL DEFAULT 0,
	map_data   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	id             TEXT PRIMARY KEY,
	username       TEXT NOT NULL DEFAULT '',
	skin           TEXT NOT NULL DEFAULT '',
	visited_realms TEXT NOT NULL DEFAULT '[]'
);`

// SQLRepository serves realms and profiles from a SQLite database.
type SQLRepository struct {
	db *sql.DB
}

// OpenSQLRepository opens the database at dsn and ensures the schema exists.
func OpenSQLRepository(ctx context.Context, dsn string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.ExecContext(ctx, sqlSchema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLRepository{db: db}, nil
}

// Start holds the database open until ctx is done.
func (r *SQLRepository) Start(ctx context.Context) error {
	<-ctx.Done()
	return r.db.Close()
}

func (r *SQLRepository) GetRealm(ctx context.Context, realmId string) (*Realm, error) {
	var (
		rec     Realm
		mapData string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT owner_id, name, share_id, only_owner, map_data FROM realms WHERE id = ?",
		realmId,
	).Scan(&rec.OwnerId, &rec.Name, &rec.ShareId, &rec.OnlyOwner, &mapData)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("realm %q: %w", realmId, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying realm %q: %w", realmId, err)
	}

	err = json.Unmarshal([]byte(mapData), &rec.MapData)
	if err != nil {
		return nil, fmt.Errorf("decoding map_data for realm %q: %w", realmId, err)
	}

	return &rec, nil
}

func (r *SQLRepository) GetProfile(ctx context.Context, identity string) (*Profile, error) {
	var (
		p       Profile
		visited string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT username, skin, visited_realms FROM profiles WHERE id = ?",
		identity,
	).Scan(&p.Username, &p.Skin, &visited)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", identity, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile %q: %w", identity, err)
	}

	err = json.Unmarshal([]byte(visited), &p.VisitedRealms)
	if err != nil {
		return nil, fmt.Errorf("decoding visited_realms for %q: %w", identity, err)
	}

	return &p, nil
}

func (r *SQLRepository) UpsertProfile(ctx context.Context, identity, username string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO profiles (id, username) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET username = excluded.username",
		identity, username,
	)
	if err != nil {
		return fmt.Errorf("upserting profile %q: %w", identity, err)
	}
	return nil
}
