package cloud

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

// ErrObjectExists is the cause of the Backend error raised when staging under a
// key that is already taken.
var ErrObjectExists = errors.New("staged object already exists")

// ObjectStore holds staged image bytes until the provider has imported them.
type ObjectStore interface {
	Bucket() string
	EnsureBucket(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, body io.Reader) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Compute is the provider's machine image service.
type Compute interface {
	ImportImage(ctx context.Context, req ImportRequest) (string, error)
	DescribeImportTask(ctx context.Context, taskId string) (*model.ImportTask, error)
	DeregisterImage(ctx context.Context, imageId string) error
	CreateTags(ctx context.Context, imageId string, tags []model.Tag) error
	DescribeImages(ctx context.Context, filters []model.Filter) ([]model.MachineImage, error)
}

type ImportRequest struct {
	Description string
	Format      string
	Bucket      string
	Key         string
}
