package es

import (
	"context"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

// Document is what the sink needs from an indexable record: a stable id, a
// default index name, and the mapping to create that index with.
type Document interface {
	GetID() string
	GetIndex() string
	GetTypeMapping() *types.TypeMapping
}

// TypedEsClient is the typed Elasticsearch sink for crawl results.
type TypedEsClient[D Document] interface {
	GetClient() *elasticsearch.TypedClient
	CreateIndexWithMapping(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	IndexDocWithID(ctx context.Context, doc D) error
	BulkIndexDocsWithID(ctx context.Context, docs []D) error
	CountDocs(ctx context.Context) (int64, error)
	SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error)
}
