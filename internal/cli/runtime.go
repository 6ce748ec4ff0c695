package cli

import (
	"context"
	"fmt"
	"strings"

	"dqsurvey/internal/catalog"
	"dqsurvey/internal/shared/config"
	"dqsurvey/internal/shared/storage/object"
	localstore "dqsurvey/internal/shared/storage/object/local"
	s3store "dqsurvey/internal/shared/storage/object/s3"
	"dqsurvey/internal/storageclient"
	"dqsurvey/internal/summary"
	"dqsurvey/internal/survey"
	"dqsurvey/internal/survey/kv"
)

// runtime is the wired survey engine for one command invocation.
type runtime struct {
	cfg       config.ClientConfig
	catalog   *catalog.Catalog
	backend   kv.Store
	flow      *survey.Flow
	projector *summary.Projector
}

func (s *rootState) open(ctx context.Context) (*runtime, error) {
	cfg := s.config()
	cat, err := catalog.Default()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	client, err := storageclient.New(storageclient.Options{
		BaseURL: cfg.APIURL,
		Timeout: cfg.HTTPTimeout,
		Retries: cfg.HTTPRetries,
	})
	if err != nil {
		return nil, err
	}
	backend, err := kv.Open(ctx, kv.Options{
		Backend:       cfg.StoreBackend,
		Dir:           cfg.StoreDir,
		RedisAddr:     cfg.RedisAddr,
		RedisTTL:      cfg.RedisTTL,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", survey.ErrStorageUnavailable, err)
	}
	return &runtime{
		cfg:       cfg,
		catalog:   cat,
		backend:   backend,
		flow:      survey.NewFlow(cat, backend, cfg.Scope, client),
		projector: summary.NewProjector(cat, client),
	}, nil
}

func (r *runtime) Close() error {
	return r.backend.Close()
}

func (r *runtime) exportStore(ctx context.Context) (object.ObjectStore, error) {
	switch r.cfg.ExportStore {
	case "s3":
		if strings.TrimSpace(r.cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("EXPORT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, r.cfg.AWSRegion, r.cfg.S3Bucket, r.cfg.S3Prefix, r.cfg.SSEKMSKeyID)
	default:
		return localstore.New(r.cfg.ExportDir), nil
	}
}

// project renders the current survey without clearing it.
func (r *runtime) project(ctx context.Context) (summary.Summary, error) {
	doc, err := r.flow.Store.Get(ctx)
	if err != nil {
		return summary.Summary{}, err
	}
	ids, err := r.flow.Session.IDs(ctx)
	if err != nil {
		return summary.Summary{}, err
	}
	return r.projector.Project(ctx, r.flow.Store.Scope(), doc, ids)
}

// sectionArg accepts "section3" or the bare number "3".
func sectionArg(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return raw
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return raw
		}
	}
	return "section" + raw
}
