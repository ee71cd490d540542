package storage

import (
	"context"
	"fmt"
	"strings"

	"wanworker/internal/adapters/storage/gdrive"
	"wanworker/internal/adapters/storage/localfs"
	"wanworker/internal/adapters/storage/s3"
	"wanworker/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// NewProvider picks the delivery backend. S3 wins whenever its four
// credentials are set; otherwise STORAGE_PROVIDER decides. A nil
// Provider with a nil error means results are returned inline.
func NewProvider(ctx context.Context, cfg config.Config) (Provider, error) {
	if cfg.S3.Enabled() {
		return s3.New(s3.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
		}), nil
	}

	switch strings.ToLower(cfg.StorageProvider) {
	case "", "inline", "none":
		return nil, nil

	case "localfs":
		if cfg.StorageLocalRoot == "" {
			return nil, fmt.Errorf("missing env: STORAGE_LOCAL_ROOT")
		}
		return localfs.New(cfg.StorageLocalRoot), nil

	case "gdrive":
		return newGDriveProvider(ctx, cfg.GDrive)

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}

func newGDriveProvider(ctx context.Context, g config.GDrive) (Provider, error) {
	for k, v := range map[string]string{
		"GDRIVE_CLIENT_ID":     g.ClientID,
		"GDRIVE_CLIENT_SECRET": g.ClientSecret,
		"GDRIVE_REFRESH_TOKEN": g.RefreshToken,
	} {
		if v == "" {
			return nil, fmt.Errorf("missing env: %s", k)
		}
	}

	conf := &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	tok := &oauth2.Token{RefreshToken: g.RefreshToken}
	httpClient := conf.Client(ctx, tok)

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	return gdrive.NewClient(srv, g.FolderID), nil
}
