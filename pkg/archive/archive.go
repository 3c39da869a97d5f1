// Package archive provides durable artifact storage for the learning pipeline,
// backed by Azure Blob Storage. Sanitized transcripts and published knowledge
// snapshots are written here for later audit. Archival is optional: when no
// connection string is configured, Store and Fetch return ErrDisabled and the
// pipeline continues without durable artifacts.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/stillpoint/parley/pkg/lifecycle"
)

// System manages artifact archival and lifecycle coordination.
type System interface {
	// Enabled reports whether archive storage is configured.
	Enabled() bool
	// Start registers a startup hook that initializes the archive container.
	Start(lc *lifecycle.Coordinator) error
	// Store writes an artifact at the given key with the specified content type.
	Store(ctx context.Context, key string, data []byte, contentType string) error
	// Fetch returns the artifact at the given key.
	// Returns ErrNotFound if the artifact does not exist.
	Fetch(ctx context.Context, key string) ([]byte, error)
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

type noop struct{}

// New creates an archive system from the given configuration. When the
// configuration is disabled, a no-op system is returned.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if !cfg.Enabled() {
		return noop{}, nil
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create archive client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger.With("system", "archive"),
	}, nil
}

func (a *azure) Enabled() bool {
	return true
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	a.logger.Info("starting archive system")

	lc.OnStartup(func() {
		_, err := a.client.CreateContainer(lc.Context(), a.container, nil)
		if err != nil {
			if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
				a.logger.Error("archive container initialization failed", "error", err)
				return
			}
		}

		a.logger.Info("archive container ready", "container", a.container)
	})

	return nil
}

func (a *azure) Store(ctx context.Context, key string, data []byte, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	}

	_, err := a.client.UploadStream(ctx, a.container, key, bytes.NewReader(data), opts)
	if err != nil {
		return fmt.Errorf("store artifact %s: %w", key, err)
	}

	return nil
}

func (a *azure) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch artifact %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}

	return data, nil
}

func (noop) Enabled() bool                         { return false }
func (noop) Start(lc *lifecycle.Coordinator) error { return nil }
func (noop) Store(context.Context, string, []byte, string) error {
	return ErrDisabled
}
func (noop) Fetch(context.Context, string) ([]byte, error) {
	return nil, ErrDisabled
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
