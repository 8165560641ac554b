// Package archive persists raw feed payloads so a poll can be replayed or
// audited after the leak site takes a posting down.
package archive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/sirupsen/logrus"
)

// Archive is the contract for raw poll snapshot storage.
type Archive interface {
	// StoreSnapshot saves the raw feed payload for one poll of a group
	// and returns the snapshot name.
	StoreSnapshot(ctx context.Context, group string, at time.Time, payload []byte) (string, error)
	// Retrieve returns a previously stored snapshot by name.
	Retrieve(ctx context.Context, name string) ([]byte, error)
	// ListSnapshots returns the snapshot names recorded for a group.
	ListSnapshots(ctx context.Context, group string) ([]string, error)
	// Delete removes a snapshot.
	Delete(ctx context.Context, name string) error
}

// BlobArchive implements Archive on Azure Blob Storage.
type BlobArchive struct {
	client        *azblob.Client
	containerName string
}

var _ Archive = (*BlobArchive)(nil)

// NewBlobArchive creates an archive backed by the given storage account,
// authenticating with the ambient Azure credential chain.
func NewBlobArchive(accountName, containerName string) (*BlobArchive, error) {
	if accountName == "" {
		return nil, fmt.Errorf("storage account name is required")
	}

	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)
	client, err := azblob.NewClient(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	a := &BlobArchive{
		client:        client,
		containerName: containerName,
	}

	if err := a.ensureContainer(); err != nil {
		return nil, fmt.Errorf("failed to ensure container exists: %w", err)
	}

	return a, nil
}

func (a *BlobArchive) ensureContainer() error {
	ctx := context.Background()

	_, err := a.client.CreateContainer(ctx, a.containerName, nil)
	if err != nil {
		if !strings.Contains(err.Error(), "ContainerAlreadyExists") {
			return fmt.Errorf("failed to create container: %w", err)
		}
		logrus.Debugf("Container %s already exists", a.containerName)
	} else {
		logrus.Infof("Created container %s", a.containerName)
	}

	return nil
}

// snapshotName builds the blob path for one poll of a group.
func snapshotName(group string, at time.Time) string {
	return fmt.Sprintf("polls/%s/%s.json", strings.ToLower(group), at.UTC().Format("20060102T150405Z"))
}

func (a *BlobArchive) StoreSnapshot(ctx context.Context, group string, at time.Time, payload []byte) (string, error) {
	name := snapshotName(group, at)

	_, err := a.client.UploadBuffer(ctx, a.containerName, name, payload, &azblob.UploadBufferOptions{
		BlockSize:   int64(1024 * 1024),
		Concurrency: 3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot %s: %w", name, err)
	}

	logrus.Infof("Archived poll snapshot %s", name)
	return name, nil
}

func (a *BlobArchive) Retrieve(ctx context.Context, name string) ([]byte, error) {
	response, err := a.client.DownloadStream(ctx, a.containerName, name, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to download snapshot %s: %w", name, err)
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot content: %w", err)
	}

	return data, nil
}

func (a *BlobArchive) ListSnapshots(ctx context.Context, group string) ([]string, error) {
	prefix := "polls/" + strings.ToLower(group) + "/"

	var names []string
	pager := a.client.NewListBlobsFlatPager(a.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}

	return names, nil
}

func (a *BlobArchive) Delete(ctx context.Context, name string) error {
	_, err := a.client.DeleteBlob(ctx, a.containerName, name, nil)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", name, err)
	}

	logrus.Infof("Deleted poll snapshot %s", name)
	return nil
}
