package logfiles

import (
	"context"
)

// LogFolder groups the files one device uploaded under one name,
// typically a date or trip identifier.
type LogFolder struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DeviceSerial string `json:"device_serial"`
}

// FolderSummary is the listing view of a folder.
type FolderSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FileCount int    `json:"file_count"`
}

// LogFile is one uploaded log entry.
type LogFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     string `json:"size"`
	Modified string `json:"modified"`
	FolderID string `json:"folder_id"`
}

// Store is the log hierarchy contract.
type Store interface {
	// CreateFolder adds a folder under a device.
	CreateFolder(ctx context.Context, deviceSerial, name string) (LogFolder, error)

	// Folders lists a device's folders with their file counts,
	// ascending by folder id.
	Folders(ctx context.Context, deviceSerial string) ([]FolderSummary, error)

	// AddFile records a file entry under a folder.
	// Returns ErrKeyNotFound when the folder does not exist.
	AddFile(ctx context.Context, folderID, name, size, modified string) (LogFile, error)

	// Files lists a folder's files, ascending by file id.
	// Returns ErrKeyNotFound when the folder does not exist.
	Files(ctx context.Context, folderID string) ([]LogFile, error)

	// DeleteFolder removes a folder and every file in it.
	DeleteFolder(ctx context.Context, folderID string) error

	// DeleteByDevice removes every folder and file a device owns. Used
	// as the registry's cascade hook; deleting a device with no logs is
	// a no-op, not an error.
	DeleteByDevice(ctx context.Context, deviceSerial string) error
}
