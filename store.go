package debitor

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pichlex/debitor/pkg/adapters/file"
	"github.com/pichlex/debitor/pkg/adapters/memory"
	"github.com/pichlex/debitor/pkg/adapters/redis"
	"github.com/pichlex/debitor/pkg/adapters/sqlite"
	"github.com/pichlex/debitor/pkg/ports"
)

// backend is an opened checkpoint store plus what it needs on shutdown.
type backend struct {
	store  ports.CheckpointStore
	locker ports.DistributedLocker
	closer io.Closer
}

// openStore resolves a checkpoint DSN:
//
//	""  or memory://       process memory
//	file://<dir>           one JSON file per conversation
//	sqlite:///<relative>   SQLite file relative to the working directory
//	sqlite:////<absolute>  SQLite file at an absolute path
//	redis://... rediss://  Redis, with a distributed lock per conversation
func openStore(dsn string) (*backend, error) {
	switch {
	case dsn == "" || dsn == "memory://":
		return &backend{store: memory.NewStore()}, nil

	case strings.HasPrefix(dsn, "file://"):
		return &backend{store: file.New(strings.TrimPrefix(dsn, "file://"))}, nil

	case strings.HasPrefix(dsn, "sqlite://"):
		path, err := sqlitePath(dsn)
		if err != nil {
			return nil, err
		}
		s, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		return &backend{store: s, closer: s}, nil

	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		s, err := redis.NewFromURL(dsn)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  s,
			locker: redis.NewLocker(s.Client(), s.Prefix()),
			closer: s,
		}, nil
	}
	return nil, fmt.Errorf("unsupported checkpoint dsn %q", dsn)
}

func sqlitePath(dsn string) (string, error) {
	rest := strings.TrimPrefix(dsn, "sqlite://")
	switch {
	case rest == "/:memory:":
		return ":memory:", nil
	case strings.HasPrefix(rest, "//"):
		return rest[1:], nil
	case strings.HasPrefix(rest, "/") && len(rest) > 1:
		return rest[1:], nil
	}
	return "", fmt.Errorf("invalid sqlite dsn %q: want sqlite:///relative or sqlite:////absolute", dsn)
}

// RedactDSN hides credentials embedded in a DSN before it is logged.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
