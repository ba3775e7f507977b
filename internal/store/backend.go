package store

import (
	"context"
	"strings"
)

// Storage key names, shared with the browser session storage layout.
const (
	KeyCartItems        = "cartItems"
	KeySelectedCustomer = "selectedCustomer"
)

// Key addresses one value inside a session namespace.
type Key struct {
	Session string
	Name    string
}

func (k Key) String() string {
	return k.Session + ":" + k.Name
}

// ParseKey splits a "<session>:<name>" notification payload.
func ParseKey(s string) (Key, bool) {
	idx := strings.LastIndex(s, ":")
	if idx <= 0 {
		return Key{}, false
	}
	return Key{Session: s[:idx], Name: s[idx+1:]}, true
}

// Backend is a session-scoped key-value store shared by every cart context.
type Backend interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
}

// Change is the notification emitted after another writer touched a key.
// An empty Name means "something in this session changed".
type Change struct {
	Key Key
}

// Notifier publishes changes to other processes.
type Notifier interface {
	Notify(ctx context.Context, change Change) error
}

// Feed delivers changes from every writer. Listen blocks until ctx is done or
// the underlying subscription fails.
type Feed interface {
	Listen(ctx context.Context, fn func(Change)) error
}
