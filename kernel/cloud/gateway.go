package cloud

import (
	"context"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/logging"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/tags"
)

var errImportPending = errors.New("import pending")

// Gateway owns the staging bucket and the compute handle. It holds no per-call
// state and is safe for concurrent use.
type Gateway struct {
	objects       ObjectStore
	compute       Compute
	pollInterval  time.Duration
	pollTimeout   time.Duration
	successStatus map[string]struct{}
	failureStatus map[string]struct{}
	progress      bool
}

// NewGateway ensures the staging bucket exists before returning.
func NewGateway(ctx context.Context, objects ObjectStore, compute Compute, cfg *model.Config) (*Gateway, error) {
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return &Gateway{
		objects:       objects,
		compute:       compute,
		pollInterval:  cfg.PollingIntervalDuration(),
		pollTimeout:   cfg.PollingTimeoutDuration(),
		successStatus: statusSet(cfg.ImportSuccessStatus),
		failureStatus: statusSet(cfg.ImportFailureStatus),
		progress:      cfg.Progress,
	}, nil
}

func statusSet(statuses []string) map[string]struct{} {
	set := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		set[strings.ToLower(status)] = struct{}{}
	}
	return set
}

// StageStream returns a sink whose bytes are uploaded into a new object under key.
func (g *Gateway) StageStream(ctx context.Context, key string) (*StagedWriter, error) {
	if err := g.ensureAbsent(ctx, key); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	w := &StagedWriter{key: key, pipe: pw, done: make(chan error, 1)}
	go func() {
		err := g.objects.Put(ctx, key, pr)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// StageFile uploads the local file at path into a new object under key.
func (g *Gateway) StageFile(ctx context.Context, key, path string) error {
	if err := g.ensureAbsent(ctx, key); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return model.WrapError(model.KindBackend, err, "cannot open local image [%s]", path)
	}
	defer f.Close()
	if err := g.objects.Put(ctx, key, f); err != nil {
		return model.WrapError(model.KindBackend, err, "cannot upload [%s] to [%s/%s]", path, g.objects.Bucket(), key)
	}
	return nil
}

func (g *Gateway) ensureAbsent(ctx context.Context, key string) error {
	exists, err := g.objects.Exists(ctx, key)
	if err != nil {
		return model.WrapError(model.KindBackend, err, "cannot inspect [%s/%s]", g.objects.Bucket(), key)
	}
	if exists {
		return model.WrapError(model.KindBackend, ErrObjectExists, "file %s in bucket %s", key, g.objects.Bucket())
	}
	return nil
}

// DeleteStaged removes the staged object. A missing object is a no-op.
func (g *Gateway) DeleteStaged(ctx context.Context, key string) error {
	if err := g.objects.Delete(ctx, key); err != nil {
		return model.WrapError(model.KindBackend, err, "cannot delete [%s/%s]", g.objects.Bucket(), key)
	}
	return nil
}

// StartImport asks the provider to import the object staged under the
// appliance identifier and returns the import task id.
func (g *Gateway) StartImport(ctx context.Context, a *model.Appliance) (string, error) {
	if a.Image == nil {
		return "", model.NewError(model.KindBackend, "appliance [%s] has no image", a.Identifier)
	}
	taskId, err := g.compute.ImportImage(ctx, ImportRequest{
		Description: tags.Truncate(a.Description),
		Format:      strings.ToLower(string(a.Image.Format)),
		Bucket:      g.objects.Bucket(),
		Key:         a.Identifier,
	})
	if err != nil {
		return "", errors.Wrapf(err, "cannot start import of appliance [%s]", a.Identifier)
	}
	logging.From(ctx).WithField("appliance", a.Identifier).WithField("task", taskId).Debug("import started")
	return taskId, nil
}

// PollImport blocks until the import task reaches a terminal status, the
// polling deadline passes or ctx is cancelled.
func (g *Gateway) PollImport(ctx context.Context, taskId string) (string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, g.pollTimeout)
	defer cancel()

	log := logging.From(ctx).WithField("task", taskId)
	poll := func() (string, error) {
		task, err := g.compute.DescribeImportTask(pollCtx, taskId)
		if err != nil {
			if pollCtx.Err() != nil {
				return "", pollCtx.Err()
			}
			return "", backoff.Permanent(errors.Wrapf(err, "cannot describe import task [%s]", taskId))
		}
		status := strings.ToLower(task.Status)
		if _, failed := g.failureStatus[status]; failed {
			return "", backoff.Permanent(model.NewError(model.KindImageImport,
				"import task [%s] ended with status [%s]: %s", taskId, task.Status, task.StatusMessage))
		}
		if _, succeeded := g.successStatus[status]; succeeded {
			return task.ImageId, nil
		}
		if g.progress {
			log.Infof("import status [%s] progress [%s%%] %s", task.Status, task.Progress, task.StatusMessage)
		} else {
			log.Debugf("import status [%s]", task.Status)
		}
		return "", errImportPending
	}

	imageId, err := backoff.RetryWithData(poll, backoff.WithContext(backoff.NewConstantBackOff(g.pollInterval), pollCtx))
	if err == nil {
		log.WithField("image", imageId).Debug("import completed")
		return imageId, nil
	}
	if model.IsKind(err, model.KindImageImport) {
		return "", err
	}
	if ctx.Err() != nil {
		return "", model.WrapError(model.KindCancelled, ctx.Err(), "polling of import task [%s] cancelled", taskId)
	}
	if pollCtx.Err() != nil {
		return "", model.NewError(model.KindTimeout, "import task [%s] still pending after %s", taskId, g.pollTimeout)
	}
	return "", err
}

func (g *Gateway) Deregister(ctx context.Context, imageId string) error {
	if err := g.compute.DeregisterImage(ctx, imageId); err != nil {
		return errors.Wrapf(err, "cannot deregister image [%s]", imageId)
	}
	logging.From(ctx).WithField("image", imageId).Debug("image deregistered")
	return nil
}

func (g *Gateway) SetTags(ctx context.Context, tagSet []model.Tag, imageId string) error {
	if err := g.compute.CreateTags(ctx, imageId, tagSet); err != nil {
		return errors.Wrapf(err, "cannot tag image [%s]", imageId)
	}
	return nil
}

// Search returns every machine image matching all filters, with its tags.
func (g *Gateway) Search(ctx context.Context, filters []model.Filter) ([]model.MachineImage, error) {
	images, err := g.compute.DescribeImages(ctx, filters)
	if err != nil {
		return nil, errors.Wrap(err, "cannot search images")
	}
	return images, nil
}

// StagedWriter streams bytes into a staged object. Close commits the upload;
// Abort discards it.
type StagedWriter struct {
	key     string
	pipe    *io.PipeWriter
	done    chan error
	written atomic.Int64
}

func (w *StagedWriter) Write(p []byte) (int, error) {
	n, err := w.pipe.Write(p)
	w.written.Add(int64(n))
	return n, err
}

func (w *StagedWriter) Written() int64 {
	return w.written.Load()
}

func (w *StagedWriter) Close() error {
	_ = w.pipe.Close()
	if err := <-w.done; err != nil {
		return model.WrapError(model.KindBackend, err, "cannot upload [%s] after %s", w.key, humanize.Bytes(uint64(w.Written())))
	}
	return nil
}

func (w *StagedWriter) Abort(cause error) {
	_ = w.pipe.CloseWithError(cause)
	<-w.done
}
