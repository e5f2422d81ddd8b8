// Package vectorutils builds the configured vector store driver.
package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/embedsrv/pkg/config"
	"github.com/papercomputeco/embedsrv/pkg/dotdir"
	"github.com/papercomputeco/embedsrv/pkg/vector"
	"github.com/papercomputeco/embedsrv/pkg/vector/chroma"
	"github.com/papercomputeco/embedsrv/pkg/vector/pgvector"
	"github.com/papercomputeco/embedsrv/pkg/vector/qdrant"
	"github.com/papercomputeco/embedsrv/pkg/vector/remote"
	"github.com/papercomputeco/embedsrv/pkg/vector/sqlitevec"
)

// SQLiteFileName is the database file used when the sqlite provider has no
// explicit target.
const SQLiteFileName = "vectors.sqlite"

type NewVectorDriverOpts struct {
	ProviderType string

	// TargetURL is a URL for remote and chroma, a file path for sqlite, a
	// connection string for pgvector and a host:port for qdrant.
	TargetURL string

	Collection string
	Dimensions uint

	// ConfigDir overrides where the default sqlite database is created.
	ConfigDir string

	Logger *zap.Logger
}

// OptsFromConfig maps the vector_store config section onto driver options.
func OptsFromConfig(c config.VectorStoreConfig, configDir string, logger *zap.Logger) *NewVectorDriverOpts {
	return &NewVectorDriverOpts{
		ProviderType: c.Provider,
		TargetURL:    c.Target,
		Collection:   c.Collection,
		Dimensions:   c.Dimensions,
		ConfigDir:    configDir,
		Logger:       logger,
	}
}

func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "remote":
		return remote.NewDriver(remote.Config{
			URL: o.TargetURL,
		}, o.Logger)

	case "chroma":
		return chroma.NewDriver(ctx, chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
		}, o.Logger)

	case "sqlite":
		path := o.TargetURL
		if path == "" {
			var err error
			path, err = dotdir.NewManager().File(o.ConfigDir, SQLiteFileName)
			if err != nil {
				return nil, fmt.Errorf("resolving sqlite path: %w", err)
			}
		}
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     path,
			Dimensions: o.Dimensions,
		}, o.Logger)

	case "pgvector":
		return pgvector.NewDriver(ctx, pgvector.Config{
			ConnString: o.TargetURL,
			Table:      o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)

	case "qdrant":
		return qdrant.NewDriver(ctx, qdrant.Config{
			Addr:           o.TargetURL,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
		}, o.Logger)

	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}
