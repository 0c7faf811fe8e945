package logfiles

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

// MemStore is the in-memory Store used by tests and single-node dev.
type MemStore struct {
	mu      sync.RWMutex
	folders map[string]LogFolder
	files   map[string]LogFile
}

// NewMemStore creates an empty in-memory log store.
func NewMemStore() *MemStore {
	return &MemStore{
		folders: make(map[string]LogFolder),
		files:   make(map[string]LogFile),
	}
}

func (s *MemStore) CreateFolder(_ context.Context, deviceSerial, name string) (LogFolder, error) {
	if deviceSerial == "" || name == "" {
		return LogFolder{}, errors.WrapInvalid(errors.ErrInvalidPayload,
			"LogStore", "CreateFolder", "device serial and name required")
	}

	folder := LogFolder{ID: uuid.NewString(), Name: name, DeviceSerial: deviceSerial}
	s.mu.Lock()
	s.folders[folder.ID] = folder
	s.mu.Unlock()
	return folder, nil
}

func (s *MemStore) Folders(_ context.Context, deviceSerial string) ([]FolderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, file := range s.files {
		counts[file.FolderID]++
	}

	summaries := []FolderSummary{}
	for _, folder := range s.folders {
		if folder.DeviceSerial != deviceSerial {
			continue
		}
		summaries = append(summaries, FolderSummary{
			ID:        folder.ID,
			Name:      folder.Name,
			FileCount: counts[folder.ID],
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

func (s *MemStore) AddFile(_ context.Context, folderID, name, size, modified string) (LogFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.folders[folderID]; !ok {
		return LogFile{}, errors.WrapInvalid(errors.ErrKeyNotFound,
			"LogStore", "AddFile", "lookup "+folderID)
	}

	file := LogFile{ID: uuid.NewString(), Name: name, Size: size, Modified: modified, FolderID: folderID}
	s.files[file.ID] = file
	return file, nil
}

func (s *MemStore) Files(_ context.Context, folderID string) ([]LogFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.folders[folderID]; !ok {
		return nil, errors.WrapInvalid(errors.ErrKeyNotFound,
			"LogStore", "Files", "lookup "+folderID)
	}

	files := []LogFile{}
	for _, file := range s.files {
		if file.FolderID == folderID {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

func (s *MemStore) DeleteFolder(_ context.Context, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteFolderLocked(folderID)
}

func (s *MemStore) deleteFolderLocked(folderID string) error {
	if _, ok := s.folders[folderID]; !ok {
		return errors.WrapInvalid(errors.ErrKeyNotFound,
			"LogStore", "DeleteFolder", "lookup "+folderID)
	}
	for id, file := range s.files {
		if file.FolderID == folderID {
			delete(s.files, id)
		}
	}
	delete(s.folders, folderID)
	return nil
}

func (s *MemStore) DeleteByDevice(_ context.Context, deviceSerial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, folder := range s.folders {
		if folder.DeviceSerial == deviceSerial {
			if err := s.deleteFolderLocked(id); err != nil {
				return err
			}
		}
	}
	return nil
}
