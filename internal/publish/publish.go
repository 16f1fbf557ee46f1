// Package publish uploads run artifacts to Azure blob storage so CI
// runs leave a durable record beside the local files.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/suitepulse/suitepulse/internal/reporting"
)

// OutcomeBlobName is the artifact name of the outcome document.
const OutcomeBlobName = "outcome.json"

// Uploader puts one artifact into storage.
type Uploader interface {
	Upload(ctx context.Context, blobName string, data []byte) error
}

// ContainerUploader uploads into one blob container using the ambient
// Azure credential chain.
type ContainerUploader struct {
	client *container.Client
}

// NewContainerUploader builds an uploader for the given container URL.
func NewContainerUploader(containerURL string) (*ContainerUploader, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("building azure credential: %w", err)
	}
	client, err := container.NewClient(containerURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating container client: %w", err)
	}
	return &ContainerUploader{client: client}, nil
}

// Upload writes data to the named block blob, overwriting any previous
// run with the same name.
func (u *ContainerUploader) Upload(ctx context.Context, blobName string, data []byte) error {
	blob := u.client.NewBlockBlobClient(blobName)
	if _, err := blob.UploadBuffer(ctx, data, nil); err != nil {
		return fmt.Errorf("uploading %s: %w", blobName, describeAzureError(err))
	}
	return nil
}

// describeAzureError pulls the service error code forward so the
// operator sees ContainerNotFound or AuthorizationFailure instead of a
// bare HTTP status.
func describeAzureError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return fmt.Errorf("%s (HTTP %d): %w", respErr.ErrorCode, respErr.StatusCode, err)
	}
	return err
}

// BlobName joins the configured prefix, the session ID, and the
// artifact name into a blob path.
func BlobName(prefix, sessionID, artifact string) string {
	return path.Join(prefix, sessionID, artifact)
}

// Publisher uploads the artifacts of one run under a common prefix,
// keyed by session ID so reruns never collide.
type Publisher struct {
	uploader Uploader
	prefix   string
}

// New returns a publisher writing through the given uploader.
func New(uploader Uploader, prefix string) *Publisher {
	return &Publisher{uploader: uploader, prefix: prefix}
}

// Outcome uploads the outcome document and returns its blob name.
func (p *Publisher) Outcome(ctx context.Context, report *reporting.RunReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling outcome JSON: %w", err)
	}

	name := BlobName(p.prefix, report.SessionID, OutcomeBlobName)
	if err := p.uploader.Upload(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}

// File uploads an artifact file, keeping its base name, and returns the
// blob name.
func (p *Publisher) File(ctx context.Context, sessionID, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading artifact: %w", err)
	}

	name := BlobName(p.prefix, sessionID, filepath.Base(filePath))
	if err := p.uploader.Upload(ctx, name, data); err != nil {
		return "", err
	}
	return name, nil
}
