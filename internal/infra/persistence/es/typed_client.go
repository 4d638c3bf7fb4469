package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esutil"
	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
	"github.com/phuslu/log"

	"github.com/kvasirlabs/mktcrawl/internal/config"
)

type typedEsClient[D Document] struct {
	client *elasticsearch.TypedClient
	// index overrides the document's default index when non-empty.
	index string
	// zero value, used only for index name and mapping lookups.
	schemaDoc D
}

// InitTypedEsClient connects to the configured Elasticsearch node. An empty
// index falls back to the document type's default.
func InitTypedEsClient[D Document](cfg *config.Config, index string) (TypedEsClient[D], error) {
	typedClient, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
		Addresses: []string{
			cfg.Elasticsearch.Address,
		},
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			// Dev-cluster setups routinely run self-signed certs.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize elasticsearch client: %w", err)
	}
	return &typedEsClient[D]{client: typedClient, index: index}, nil
}

func (tec *typedEsClient[D]) GetClient() *elasticsearch.TypedClient {
	return tec.client
}

func (tec *typedEsClient[D]) indexName() string {
	if tec.index != "" {
		return tec.index
	}
	return tec.schemaDoc.GetIndex()
}

func (tec *typedEsClient[D]) CreateIndexWithMapping(ctx context.Context) error {
	index := tec.indexName()
	exists, err := tec.client.Indices.Exists(index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index existence: %w", err)
	}
	if exists {
		log.Debug().Str("index", index).Msg("index already exists, skipping create")
		return nil
	}

	mapping := tec.schemaDoc.GetTypeMapping()
	if mapping == nil {
		_, err = tec.client.Indices.Create(index).Do(ctx)
	} else {
		_, err = tec.client.Indices.Create(index).Mappings(mapping).Do(ctx)
	}
	if err != nil {
		return fmt.Errorf("create index %q: %w", index, err)
	}
	log.Info().Str("index", index).Msg("index created")
	return nil
}

func (tec *typedEsClient[D]) DeleteIndex(ctx context.Context) error {
	if _, err := tec.client.Indices.Delete(tec.indexName()).Do(ctx); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}

func (tec *typedEsClient[D]) IndexDocWithID(ctx context.Context, doc D) error {
	_, err := tec.client.Index(tec.indexName()).
		Id(doc.GetID()).
		Document(doc).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("index doc %s: %w", doc.GetID(), err)
	}
	return nil
}

func (tec *typedEsClient[D]) BulkIndexDocsWithID(ctx context.Context, docs []D) error {
	if len(docs) == 0 {
		return nil
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         tec.indexName(),
		Client:        tec.client,
		NumWorkers:    2,
		FlushBytes:    5 * 1024 * 1024,
		FlushInterval: 30 * time.Second,
		OnError: func(ctx context.Context, err error) {
			log.Error().Err(err).Msg("bulk indexer error")
		},
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			log.Error().Err(err).Str("id", doc.GetID()).Msg("marshal document")
			continue
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.GetID(),
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					log.Error().Err(err).Str("id", item.DocumentID).Msg("index document")
				} else {
					log.Error().Str("id", item.DocumentID).Str("reason", res.Error.Reason).Msg("index document rejected")
				}
			},
		})
		if err != nil {
			return fmt.Errorf("enqueue doc %s: %w", doc.GetID(), err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}
	stats := bi.Stats()
	log.Info().
		Str("index", tec.indexName()).
		Uint64("indexed", stats.NumIndexed).
		Uint64("failed", stats.NumFailed).
		Msg("bulk indexing completed")
	return nil
}

func (tec *typedEsClient[D]) CountDocs(ctx context.Context) (int64, error) {
	resp, err := tec.client.Count().Index(tec.indexName()).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count docs: %w", err)
	}
	return resp.Count, nil
}

func (tec *typedEsClient[D]) SearchDoc(ctx context.Context, query *types.Query, from, size int) ([]D, int64, error) {
	resp, err := tec.client.Search().
		Index(tec.indexName()).
		Query(query).
		From(from).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("search docs: %w", err)
	}

	results := make([]D, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		var doc D
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			continue
		}
		results = append(results, doc)
	}
	return results, resp.Hits.Total.Value, nil
}
