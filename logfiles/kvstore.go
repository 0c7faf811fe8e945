package logfiles

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/natsclient"
)

// Key layout inside the bucket:
//
//	folder.<folderID>          -> LogFolder
//	file.<folderID>.<fileID>   -> LogFile
const (
	folderKeyPrefix = "folder."
	fileKeyPrefix   = "file."
)

// KVStore keeps the log hierarchy in a NATS KV bucket.
type KVStore struct {
	bucket  jetstream.KeyValue
	kvStore *natsclient.KVStore
}

// NewKVStore creates the log bucket if needed.
func NewKVStore(client *natsclient.Client, bucketName string) (*KVStore, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "LogStore", "NewKVStore", "nats client is nil")
	}

	bucket, err := client.CreateKeyValueBucket(context.Background(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "Per-device log folder and file records",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "LogStore", "NewKVStore", "create KV bucket")
	}

	return &KVStore{
		bucket:  bucket,
		kvStore: client.NewKVStore(bucket),
	}, nil
}

func (s *KVStore) CreateFolder(ctx context.Context, deviceSerial, name string) (LogFolder, error) {
	if deviceSerial == "" || name == "" {
		return LogFolder{}, errors.WrapInvalid(errors.ErrInvalidPayload,
			"LogStore", "CreateFolder", "device serial and name required")
	}

	folder := LogFolder{
		ID:           uuid.NewString(),
		Name:         name,
		DeviceSerial: deviceSerial,
	}
	data, err := json.Marshal(folder)
	if err != nil {
		return LogFolder{}, errors.WrapFatal(err, "LogStore", "CreateFolder", "marshal folder")
	}

	if _, err := s.kvStore.Create(ctx, folderKeyPrefix+folder.ID, data); err != nil {
		return LogFolder{}, errors.WrapTransient(err, "LogStore", "CreateFolder", "create in KV")
	}
	return folder, nil
}

func (s *KVStore) getFolder(ctx context.Context, folderID string) (LogFolder, error) {
	entry, err := s.kvStore.Get(ctx, folderKeyPrefix+folderID)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return LogFolder{}, errors.WrapInvalid(errors.ErrKeyNotFound,
				"LogStore", "getFolder", "lookup "+folderID)
		}
		return LogFolder{}, errors.WrapTransient(err, "LogStore", "getFolder", "get from KV")
	}

	var folder LogFolder
	if err := json.Unmarshal(entry.Value, &folder); err != nil {
		return LogFolder{}, errors.WrapFatal(err, "LogStore", "getFolder", "unmarshal folder")
	}
	return folder, nil
}

func (s *KVStore) keys(ctx context.Context) ([]string, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "LogStore", "keys", "list KV keys")
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KVStore) Folders(ctx context.Context, deviceSerial string) ([]FolderSummary, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	fileCounts := make(map[string]int)
	for _, key := range keys {
		if rest, ok := strings.CutPrefix(key, fileKeyPrefix); ok {
			if folderID, _, ok := strings.Cut(rest, "."); ok {
				fileCounts[folderID]++
			}
		}
	}

	summaries := []FolderSummary{}
	for _, key := range keys {
		folderID, ok := strings.CutPrefix(key, folderKeyPrefix)
		if !ok {
			continue
		}
		folder, err := s.getFolder(ctx, folderID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if folder.DeviceSerial != deviceSerial {
			continue
		}
		summaries = append(summaries, FolderSummary{
			ID:        folder.ID,
			Name:      folder.Name,
			FileCount: fileCounts[folder.ID],
		})
	}
	return summaries, nil
}

func (s *KVStore) AddFile(ctx context.Context, folderID, name, size, modified string) (LogFile, error) {
	if _, err := s.getFolder(ctx, folderID); err != nil {
		return LogFile{}, err
	}

	file := LogFile{
		ID:       uuid.NewString(),
		Name:     name,
		Size:     size,
		Modified: modified,
		FolderID: folderID,
	}
	data, err := json.Marshal(file)
	if err != nil {
		return LogFile{}, errors.WrapFatal(err, "LogStore", "AddFile", "marshal file")
	}

	if _, err := s.kvStore.Create(ctx, fileKeyPrefix+folderID+"."+file.ID, data); err != nil {
		return LogFile{}, errors.WrapTransient(err, "LogStore", "AddFile", "create in KV")
	}
	return file, nil
}

func (s *KVStore) Files(ctx context.Context, folderID string) ([]LogFile, error) {
	if _, err := s.getFolder(ctx, folderID); err != nil {
		return nil, err
	}

	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	files := []LogFile{}
	prefix := fileKeyPrefix + folderID + "."
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.kvStore.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "LogStore", "Files", "get from KV")
		}
		var file LogFile
		if err := json.Unmarshal(entry.Value, &file); err != nil {
			return nil, errors.WrapFatal(err, "LogStore", "Files", "unmarshal file")
		}
		files = append(files, file)
	}
	return files, nil
}

func (s *KVStore) DeleteFolder(ctx context.Context, folderID string) error {
	if _, err := s.getFolder(ctx, folderID); err != nil {
		return err
	}

	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}

	prefix := fileKeyPrefix + folderID + "."
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := s.kvStore.Delete(ctx, key); err != nil {
			return errors.WrapTransient(err, "LogStore", "DeleteFolder", "delete file "+key)
		}
	}

	if err := s.kvStore.Delete(ctx, folderKeyPrefix+folderID); err != nil {
		return errors.WrapTransient(err, "LogStore", "DeleteFolder", "delete folder")
	}
	return nil
}

func (s *KVStore) DeleteByDevice(ctx context.Context, deviceSerial string) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		folderID, ok := strings.CutPrefix(key, folderKeyPrefix)
		if !ok {
			continue
		}
		folder, err := s.getFolder(ctx, folderID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return err
		}
		if folder.DeviceSerial != deviceSerial {
			continue
		}
		if err := s.DeleteFolder(ctx, folderID); err != nil {
			return err
		}
	}
	return nil
}
