package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/interfaces"
	"github.com/MulatuMekonnen/EthioKidsLearn-sub001/pkg/domain/model"
)

// Fields of a content document written by the cache flag mirror
const (
	FieldIsDownloaded   = "isDownloaded"
	FieldLastDownloaded = "lastDownloaded"
)

// DefaultCollection is the collection holding content documents
const DefaultCollection = "contents"

type config struct {
	databaseID string
	collection string
	clientOpts []option.ClientOption
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithDatabaseID selects a named Firestore database
func WithDatabaseID(id string) Option {
	return func(c *config) {
		c.databaseID = id
	}
}

// WithCollection sets the collection holding content documents
func WithCollection(name string) Option {
	return func(c *config) {
		c.collection = name
	}
}

// WithClientOptions passes options such as credentials to the Firestore client
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}

// Client implements RecordStore on a Firestore collection
type Client struct {
	client     *firestore.Client
	collection string
}

var _ interfaces.RecordStore = (*Client)(nil)

// New creates a Firestore backed RecordStore
func New(ctx context.Context, projectID string, opts ...Option) (*Client, error) {
	cfg := &config{
		databaseID: firestore.DefaultDatabaseID,
		collection: DefaultCollection,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if projectID == "" {
		return nil, goerr.New("Firestore project ID is required")
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, cfg.databaseID, cfg.clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", cfg.databaseID),
		)
	}

	return &Client{
		client:     client,
		collection: cfg.collection,
	}, nil
}

// Close releases the underlying client
func (c *Client) Close() error {
	return c.client.Close()
}

// UpdateCacheFlag updates only the flag fields of the content document. The document
// must exist; a missing document yields an error wrapping model.ErrRecordNotFound.
func (c *Client) UpdateCacheFlag(ctx context.Context, id string, flag model.CacheFlag) error {
	var lastDownloaded any
	if flag.LastDownloaded != nil {
		lastDownloaded = flag.LastDownloaded.UTC()
	}

	_, err := c.client.Collection(c.collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: FieldIsDownloaded, Value: flag.IsDownloaded},
		{Path: FieldLastDownloaded, Value: lastDownloaded},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(model.ErrRecordNotFound, "content document does not exist",
				goerr.V("collection", c.collection),
				goerr.V("id", id),
			)
		}
		return goerr.Wrap(err, "failed to update cache flag",
			goerr.V("collection", c.collection),
			goerr.V("id", id),
		)
	}
	return nil
}

// GetDescriptor reads the content document id and converts it into a descriptor
func (c *Client) GetDescriptor(ctx context.Context, id string) (*model.ContentDescriptor, error) {
	snap, err := c.client.Collection(c.collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrRecordNotFound, "content document does not exist",
				goerr.V("collection", c.collection),
				goerr.V("id", id),
			)
		}
		return nil, goerr.Wrap(err, "failed to get content document",
			goerr.V("collection", c.collection),
			goerr.V("id", id),
		)
	}

	return DescriptorFromDocument(snap.Ref.ID, snap.Data())
}

// DescriptorFromDocument converts Firestore document data into a descriptor. The
// document ID is authoritative over any "id" field. Cache flag fields are dropped
// because they describe this device's cache, not the content.
func DescriptorFromDocument(id string, data map[string]any) (*model.ContentDescriptor, error) {
	d := &model.ContentDescriptor{ID: id}

	if raw, ok := data[model.FieldMediaURLs]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, goerr.New("mediaUrls is not an array",
				goerr.V("id", id),
				goerr.V("type", fmt.Sprintf("%T", raw)),
			)
		}
		d.MediaURLs = make([]string, 0, len(list))
		for i, v := range list {
			s, ok := v.(string)
			if !ok {
				return nil, goerr.New("mediaUrls entry is not a string",
					goerr.V("id", id),
					goerr.V("index", i),
				)
			}
			d.MediaURLs = append(d.MediaURLs, s)
		}
	}

	for k, v := range data {
		switch k {
		case model.FieldID, model.FieldMediaURLs, FieldIsDownloaded, FieldLastDownloaded:
			continue
		}
		if d.Metadata == nil {
			d.Metadata = make(map[string]any, len(data))
		}
		d.Metadata[k] = normalize(v)
	}

	return d, nil
}

// normalize rewrites Firestore specific values into JSON friendly ones
func normalize(v any) any {
	switch x := v.(type) {
	case *firestore.DocumentRef:
		if x == nil {
			return nil
		}
		return x.Path
	case time.Time:
		return x.UTC()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
