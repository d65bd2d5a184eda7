// Package identity persists the signed-in user between runs.
package identity

import (
	"context"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/vladimirruppel/roomchat/internal/protocol"
)

// Key is the name the user record is stored under.
const Key = "user"

// ErrNotFound is returned by Load when nobody is signed in.
var ErrNotFound = errors.New("identity not found")

// Store keeps one identity record.
type Store interface {
	Load(ctx context.Context) (*protocol.Identity, error)
	Save(ctx context.Context, id protocol.Identity) error
	Clear(ctx context.Context) error
	Close() error
}

// Open picks a backend from the URL scheme:
//
//	file:///home/me/.roomchat/user.json
//	sqlite:///home/me/.roomchat/roomchat.db
//	redis://localhost:6379/0
func Open(ctx context.Context, rawURL string) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse identity store url %q", rawURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "file", "":
		return NewFileStore(pathOf(u)), nil
	case "sqlite":
		return NewSQLiteStore(ctx, pathOf(u))
	case "redis", "rediss":
		return NewRedisStore(ctx, rawURL)
	}
	return nil, errors.Errorf("unsupported identity store scheme %q", u.Scheme)
}

// pathOf accepts both file:///abs/path and file://relative/path.
func pathOf(u *url.URL) string {
	if u.Host != "" {
		return u.Host + u.Path
	}
	if u.Path == "" {
		return u.Opaque
	}
	return u.Path
}
