// Package s3 provides a persistent store that keeps the whole document as a
// single JSON object in an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"portalcore/internal/infra/persistence/memory"
	"portalcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const defaultKey = "portalcore/state.json"

// Config holds explicit construction parameters (mostly for tests). For prod
// we rely primarily on environment variables.
type Config struct {
	Region    string
	Bucket    string
	Key       string // object key for the document slot (default portalcore/state.json)
	Endpoint  string // optional; if set enables custom endpoint (e.g. MinIO)
	PathStyle bool
}

// Store persists state to an S3 object while reusing the in-memory
// implementation for transactions.
type Store struct {
	*memory.Store
	client *s3.Client
	bucket string
	key    string
	mu     sync.Mutex
}

// NewStore creates an S3-backed store from Config. A missing or unreadable
// object slot is treated as absent and seeded.
func NewStore(ctx context.Context, cfg Config, engine *domain.RulesEngine, seed domain.Document) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newWithClient(ctx, client, cfg.Bucket, cfg.Key, engine, seed)
}

func newWithClient(ctx context.Context, client *s3.Client, bucket, key string, engine *domain.RulesEngine, seed domain.Document) (*Store, error) {
	if key == "" {
		key = defaultKey
	}
	s := &Store{Store: memory.NewStore(engine), client: client, bucket: bucket, key: key}

	doc, ok := s.load(ctx)
	if !ok {
		doc = seed.Clone()
	}
	s.ImportState(doc)
	if !ok {
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Key returns the object key holding the document slot.
func (s *Store) Key() string { return s.key }

// load fetches and decodes the document object. Any fetch or decode failure
// is reported as absent; the caller reseeds and overwrites the slot.
func (s *Store) load(ctx context.Context) (domain.Document, bool) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &s.key})
	if err != nil {
		return domain.Document{}, false
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return domain.Document{}, false
	}
	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Document{}, false
	}
	return doc, true
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	contentType := "application/json"
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &s.key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	}); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// RunInTransaction applies the provided function within a transaction, then
// uploads the document if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}
