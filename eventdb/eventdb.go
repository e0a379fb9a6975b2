// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package eventdb indexes committed ledger events in sqlite for auditing.
package eventdb

import (
	"context"
	"database/sql"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "eventdb")

// BlockHook is the tx index of events emitted outside transactions.
const BlockHook = -1

type Order string

const (
	ASC  Order = "ASC"
	DESC Order = "DESC"
)

// Entry is an event located in the chain.
type Entry struct {
	Seq     uint64 // assigned on write
	Height  uint64
	TxIndex int
	Event   *event.Event
}

// Filter selects entries. Zero fields match everything; To of 0 leaves the height range open.
type Filter struct {
	Types     []event.Type
	Validator *thor.Address
	Account   *thor.Address
	From      uint64
	To        uint64
	Order     Order
	Limit     uint64
}

// EventDB manages committed events.
type EventDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New create or open event db at given path.
func New(path string) (eventDB *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open event db")
	}
	defer func() {
		if eventDB == nil {
			db.Close()
		}
	}()
	// a memory db lives as long as its connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(eventTableSchema); err != nil {
		return nil, errors.Wrap(err, "create event table")
	}

	driverVer, _, _ := sqlite3.Version()
	logger.Debug("event db opened", "path", path, "sqlite", driverVer)
	return &EventDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem create an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close close the event db.
func (db *EventDB) Close() error {
	return db.db.Close()
}

func (db *EventDB) Path() string {
	return db.path
}

// Write appends the events of a committed block in one transaction and assigns their sequence numbers.
func (db *EventDB) Write(height uint64, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	var next uint64
	if err := tx.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM event").Scan(&next); err != nil {
		return errors.Wrap(err, "query seq")
	}
	stmt, err := tx.Prepare("INSERT INTO event(seq, height, txIndex, type, validator, account, epoch, amount, attrs) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for _, e := range entries {
		next++
		var amount any
		if e.Event.Amount != nil {
			amount = e.Event.Amount.Dec()
		}
		var attrs []byte
		if len(e.Event.Attrs) > 0 {
			if attrs, err = rlp.EncodeToBytes(e.Event.Attrs); err != nil {
				return errors.Wrap(err, "encode attrs")
			}
		}
		if _, err := stmt.Exec(
			next,
			height,
			e.TxIndex,
			e.Event.Type.String(),
			e.Event.Validator.Bytes(),
			e.Event.Account.Bytes(),
			e.Event.Epoch,
			amount,
			attrs,
		); err != nil {
			return errors.Wrap(err, "insert event")
		}
		e.Seq = next
		e.Height = height
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Filter returns the entries matching filter.
func (db *EventDB) Filter(ctx context.Context, filter *Filter) ([]*Entry, error) {
	if filter == nil {
		filter = &Filter{}
	}
	var args []any
	stmt := "SELECT seq, height, txIndex, type, validator, account, epoch, amount, attrs FROM event WHERE 1"

	if filter.From > 0 {
		args = append(args, filter.From)
		stmt += " AND height >= ?"
	}
	if filter.To > 0 {
		args = append(args, filter.To)
		stmt += " AND height <= ?"
	}
	if filter.Validator != nil {
		args = append(args, filter.Validator.Bytes())
		stmt += " AND validator = ?"
	}
	if filter.Account != nil {
		args = append(args, filter.Account.Bytes())
		stmt += " AND account = ?"
	}
	if len(filter.Types) > 0 {
		marks := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			marks[i] = "?"
			args = append(args, t.String())
		}
		stmt += " AND type IN (" + strings.Join(marks, ",") + ")"
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		stmt += " LIMIT ?"
	}
	return db.query(ctx, stmt, args...)
}

func (db *EventDB) query(ctx context.Context, stmt string, args ...any) ([]*Entry, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			seq       uint64
			height    uint64
			txIndex   int
			typ       string
			validator []byte
			account   []byte
			epoch     uint64
			amount    sql.NullString
			attrs     []byte
		)
		if err := rows.Scan(&seq, &height, &txIndex, &typ, &validator, &account, &epoch, &amount, &attrs); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		t, err := event.ParseType(typ)
		if err != nil {
			return nil, err
		}
		ev := &event.Event{
			Type:      t,
			Validator: thor.BytesToAddress(validator),
			Account:   thor.BytesToAddress(account),
			Epoch:     epoch,
		}
		if amount.Valid {
			if ev.Amount, err = uint256.FromDecimal(amount.String); err != nil {
				return nil, errors.Wrap(err, "decode amount")
			}
		}
		if len(attrs) > 0 {
			if err := rlp.DecodeBytes(attrs, &ev.Attrs); err != nil {
				return nil, errors.Wrap(err, "decode attrs")
			}
		}
		entries = append(entries, &Entry{
			Seq:     seq,
			Height:  height,
			TxIndex: txIndex,
			Event:   ev,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate events")
	}
	return entries, nil
}
