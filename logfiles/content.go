package logfiles

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/natsclient"
)

// ContentStore holds the raw bytes of uploaded log files. The Store
// hierarchy records folder and file metadata; the content lives here,
// keyed by the filename the device uploaded.
type ContentStore interface {
	// Put stores data under name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the content stored under name.
	// Returns ErrKeyNotFound when the name is unknown.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes the content stored under name. Deleting an
	// unknown name is a no-op, not an error.
	Delete(ctx context.Context, name string) error

	// List returns every stored name, ascending.
	List(ctx context.Context) ([]string, error)
}

// ObjectContent keeps log file content in a NATS JetStream object
// store bucket. Object stores chunk values, so uploads are not bound
// by the server's max message size the way KV values are.
type ObjectContent struct {
	bucket jetstream.ObjectStore
}

// NewObjectContent creates the content bucket if needed.
func NewObjectContent(client *natsclient.Client, bucketName string) (*ObjectContent, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "LogContent", "NewObjectContent", "nats client is nil")
	}

	bucket, err := client.CreateObjectStoreBucket(context.Background(), jetstream.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: "Uploaded device log file content",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "LogContent", "NewObjectContent", "create object store bucket")
	}

	return &ObjectContent{bucket: bucket}, nil
}

func (s *ObjectContent) Put(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload,
			"LogContent", "Put", "name required")
	}
	if _, err := s.bucket.PutBytes(ctx, name, data); err != nil {
		return errors.WrapTransient(err, "LogContent", "Put", "store "+name)
	}
	return nil
}

func (s *ObjectContent) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.bucket.GetBytes(ctx, name)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, errors.WrapInvalid(errors.ErrKeyNotFound,
				"LogContent", "Get", "lookup "+name)
		}
		return nil, errors.WrapTransient(err, "LogContent", "Get", "fetch "+name)
	}
	return data, nil
}

func (s *ObjectContent) Delete(ctx context.Context, name string) error {
	err := s.bucket.Delete(ctx, name)
	if err != nil && !stderrors.Is(err, jetstream.ErrObjectNotFound) {
		return errors.WrapTransient(err, "LogContent", "Delete", "delete "+name)
	}
	return nil
}

func (s *ObjectContent) List(ctx context.Context) ([]string, error) {
	infos, err := s.bucket.List(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, errors.WrapTransient(err, "LogContent", "List", "list bucket")
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Deleted {
			continue
		}
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names, nil
}
