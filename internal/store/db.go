package store

import (
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
)

var ErrNotFound = errors.New("record not found")

// DB is the bun-backed persistence layer for contacts, events, templates, invites and check-ins.
// Deletions cascade explicitly inside one transaction so no orphaned rows survive a failed delete.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	return &DB{Bun: bunDB}
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
