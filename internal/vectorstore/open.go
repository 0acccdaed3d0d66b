package vectorstore

import (
	"context"
	"fmt"
)

// Open returns the backend named by kind: "sqlite" uses path, "postgres" uses dsn.
func Open(ctx context.Context, kind, path, dsn string) (Backend, error) {
	switch kind {
	case "sqlite":
		return OpenSQLite(path)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
}
