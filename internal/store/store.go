package store

import (
	"context"

	"github.com/me/cwlviz/pkg/model"
)

// GraphStore defines the persistence layer for rendered graphs.
type GraphStore interface {
	CreateGraph(ctx context.Context, g *model.Graph) error
	// GetGraph and GetGraphByHash return nil, nil when nothing matches.
	GetGraph(ctx context.Context, id string) (*model.Graph, error)
	GetGraphByHash(ctx context.Context, hash string) (*model.Graph, error)
	ListGraphs(ctx context.Context, opts model.ListOptions) ([]*model.Graph, int, error)
	DeleteGraph(ctx context.Context, id string) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
