package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"marianchat/pkg/logger"
	"marianchat/pkg/models"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("store: not found")

var (
	db     *pebble.DB
	dbPath string
)

// seq breaks key collisions when multiple messages share the same
// nanosecond timestamp.
var seq uint64

// msgMu serializes id-indexed message mutations. Update and delete both
// resolve the msgid index before writing; without the lock an update
// racing a delete could re-create the primary record after its index is
// gone, leaving a message visible in scans but unreachable by id.
var msgMu sync.Mutex

// Key layout:
//
//	msg:<unix_nano_padded>-<seq>  message JSON, scan order == send order
//	msgid:<id>                    message id -> primary key
//	user:<id>                     user JSON
//	group:<id>                    group JSON
const (
	msgPrefix   = "msg:"
	msgIDPrefix = "msgid:"
	userPrefix  = "user:"
	groupPrefix = "group:"
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// package handle for simple usage.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// Path returns the directory the store was opened at.
func Path() string { return dbPath }

func msgKey(ts int64, s uint64) string {
	return fmt.Sprintf("%s%020d-%06d", msgPrefix, ts, s)
}

// SaveMessage persists a new message. The message's TS must already be
// set; the primary key is derived from it so scan order matches send
// order. An id index entry is written alongside for by-id lookups.
func SaveMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	if m.ID == "" {
		return fmt.Errorf("message id required")
	}
	ts := m.TS
	if ts == 0 {
		ts = time.Now().UTC().UnixNano()
	}
	s := atomic.AddUint64(&seq, 1)
	key := msgKey(ts, s)

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "key", key, "error", err)
		return err
	}
	if err := db.Set([]byte(msgIDPrefix+m.ID), []byte(key), pebble.Sync); err != nil {
		logger.Error("save_message_index_failed", "id", m.ID, "error", err)
		return err
	}
	logger.Debug("message_saved", "id", m.ID, "key", key)
	notify()
	return nil
}

// GetMessage returns the message with the given id, or ErrNotFound.
func GetMessage(id string) (models.Message, error) {
	var m models.Message
	if db == nil {
		return m, fmt.Errorf("pebble not opened; call store.Open first")
	}
	key, err := lookupKey(id)
	if err != nil {
		return m, err
	}
	v, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("invalid message JSON at %s: %w", key, err)
	}
	return m, nil
}

// UpdateMessage overwrites the stored value for an existing message. The
// primary key (and so the timestamp order) is unchanged; only the value
// fields move. Returns ErrNotFound if the message was deleted meanwhile.
func UpdateMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	msgMu.Lock()
	defer msgMu.Unlock()
	key, err := lookupKey(m.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("update_message_failed", "id", m.ID, "error", err)
		return err
	}
	logger.Debug("message_updated", "id", m.ID)
	notify()
	return nil
}

// DeleteMessage removes a message and its id index permanently. Returns
// ErrNotFound when the message is already gone.
func DeleteMessage(id string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	msgMu.Lock()
	defer msgMu.Unlock()
	key, err := lookupKey(id)
	if err != nil {
		return err
	}
	if err := db.Delete(key, pebble.Sync); err != nil {
		logger.Error("delete_message_failed", "id", id, "error", err)
		return err
	}
	if err := db.Delete([]byte(msgIDPrefix+id), pebble.Sync); err != nil {
		logger.Error("delete_message_index_failed", "id", id, "error", err)
		return err
	}
	logger.Debug("message_deleted", "id", id)
	notify()
	return nil
}

// lookupKey resolves a message id to its primary key bytes.
func lookupKey(id string) ([]byte, error) {
	v, closer, err := db.Get([]byte(msgIDPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// ListMessages returns all messages matching filter in key (timestamp)
// order. A nil filter returns everything.
func ListMessages(filter func(models.Message) bool) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(msgPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("list_messages_invalid_json", "key", string(iter.Key()), "error", err)
			continue
		}
		if filter == nil || filter(m) {
			out = append(out, m)
		}
	}
	return out, iter.Error()
}

// SaveUser stores directory reference data for a user.
func SaveUser(u models.User) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := db.Set([]byte(userPrefix+u.ID), data, pebble.Sync); err != nil {
		logger.Error("save_user_failed", "id", u.ID, "error", err)
		return err
	}
	logger.Debug("user_saved", "id", u.ID)
	return nil
}

// GetUser returns the user with the given id, or ErrNotFound.
func GetUser(id string) (models.User, error) {
	var u models.User
	if db == nil {
		return u, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(userPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return u, ErrNotFound
		}
		return u, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &u); err != nil {
		return u, fmt.Errorf("invalid user JSON for %s: %w", id, err)
	}
	return u, nil
}

// ListUsers returns all stored users in key order.
func ListUsers() ([]models.User, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(userPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.User
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var u models.User
		if err := json.Unmarshal(iter.Value(), &u); err != nil {
			logger.Error("list_users_invalid_json", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, u)
	}
	return out, iter.Error()
}

// SaveGroup stores directory reference data for a group.
func SaveGroup(g models.Group) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal group: %w", err)
	}
	if err := db.Set([]byte(groupPrefix+g.ID), data, pebble.Sync); err != nil {
		logger.Error("save_group_failed", "id", g.ID, "error", err)
		return err
	}
	logger.Debug("group_saved", "id", g.ID)
	return nil
}

// GetGroup returns the group with the given id, or ErrNotFound.
func GetGroup(id string) (models.Group, error) {
	var g models.Group
	if db == nil {
		return g, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(groupPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return g, ErrNotFound
		}
		return g, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &g); err != nil {
		return g, fmt.Errorf("invalid group JSON for %s: %w", id, err)
	}
	return g, nil
}

// ListGroups returns all stored groups in key order.
func ListGroups() ([]models.Group, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(groupPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Group
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var g models.Group
		if err := json.Unmarshal(iter.Value(), &g); err != nil {
			logger.Error("list_groups_invalid_json", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, g)
	}
	return out, iter.Error()
}

// ListKeys returns all keys (as strings) that start with the given
// prefix. An empty prefix returns every key in the DB. Used by the
// inspect tool.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	if prefix == "" {
		for iter.First(); iter.Valid(); iter.Next() {
			out = append(out, string(iter.Key()))
		}
		return out, iter.Error()
	}
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key()))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key. Used by the inspect
// tool.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}
