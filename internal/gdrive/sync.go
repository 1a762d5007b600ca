// Package gdrive backs up call recordings and the session database to a
// Google Drive folder using a service account.
package gdrive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type Syncer struct {
	service  *drive.Service
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithParams(ctx, creds, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Syncer{
		service:  svc,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}, nil
}

// UploadRecording pushes one finished call recording. Re-uploading the
// same session replaces the previous copy instead of duplicating it.
func (s *Syncer) UploadRecording(sessionID, localPath string) error {
	return s.upload("recording:"+sessionID, fmt.Sprintf("callcoach-%s%s", sessionID, filepath.Ext(localPath)), localPath, "audio/wav")
}

// BackupDatabase pushes the sqlite database snapshot for a given day.
func (s *Syncer) BackupDatabase(date, dbPath string) error {
	return s.upload("db:"+date, fmt.Sprintf("callcoach-db-%s.sqlite", date), dbPath, "application/octet-stream")
}

func (s *Syncer) upload(key, name, localPath, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[key]; ok {
		if _, err := s.service.Files.Update(fileID, &drive.File{}).Media(f).Do(); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	doc, err := s.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{s.folderID},
	}).Media(f).Do()
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[key] = doc.Id
	return nil
}
