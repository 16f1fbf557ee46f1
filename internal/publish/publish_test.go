package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suitepulse/suitepulse/internal/reporting"
)

type fakeUploader struct {
	blobs map[string][]byte
	err   error
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{blobs: make(map[string][]byte)}
}

func (f *fakeUploader) Upload(_ context.Context, blobName string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.blobs[blobName] = data
	return nil
}

func TestBlobName(t *testing.T) {
	assert.Equal(t, "tudat/nightly/s-1/outcome.json", BlobName("tudat/nightly", "s-1", "outcome.json"))
	assert.Equal(t, "s-1/outcome.json", BlobName("", "s-1", "outcome.json"))
}

func TestPublisher_Outcome(t *testing.T) {
	up := newFakeUploader()
	p := New(up, "tudat/nightly")

	report := &reporting.RunReport{Suite: "tudat", SessionID: "s-42", Total: 3, Passed: 3}

	name, err := p.Outcome(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, "tudat/nightly/s-42/outcome.json", name)

	data, ok := up.blobs[name]
	require.True(t, ok)

	var parsed reporting.RunReport
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "s-42", parsed.SessionID)
	assert.Equal(t, 3, parsed.Total)
}

func TestPublisher_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.jsonl.zst")
	require.NoError(t, os.WriteFile(path, []byte("artifact bytes"), 0644))

	up := newFakeUploader()
	p := New(up, "")

	name, err := p.File(context.Background(), "s-42", path)
	require.NoError(t, err)
	assert.Equal(t, "s-42/run.jsonl.zst", name)
	assert.Equal(t, []byte("artifact bytes"), up.blobs[name])
}

func TestPublisher_FileMissing(t *testing.T) {
	p := New(newFakeUploader(), "")
	_, err := p.File(context.Background(), "s-1", filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading artifact")
}

func TestPublisher_UploadErrorPropagates(t *testing.T) {
	up := newFakeUploader()
	up.err = errors.New("container sealed")
	p := New(up, "")

	_, err := p.Outcome(context.Background(), &reporting.RunReport{SessionID: "s-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container sealed")
}

func TestDescribeAzureError(t *testing.T) {
	respErr := &azcore.ResponseError{
		ErrorCode:   "ContainerNotFound",
		StatusCode:  404,
		RawResponse: &http.Response{StatusCode: 404, Status: "404 Not Found", Body: http.NoBody},
	}
	err := describeAzureError(respErr)
	assert.Contains(t, err.Error(), "ContainerNotFound")
	assert.Contains(t, err.Error(), "404")

	plain := errors.New("dial tcp: timeout")
	assert.Equal(t, plain, describeAzureError(plain))
}
