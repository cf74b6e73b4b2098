package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/tags"
)

// MemoryObjectStore is an in-process ObjectStore used by tests and --memory runs.
type MemoryObjectStore struct {
	bucket  string
	objects cmap.ConcurrentMap[string, []byte]
	deletes cmap.ConcurrentMap[string, int]
	// PutErr, when set, fails every upload after the body has been drained.
	PutErr error
}

func NewMemoryObjectStore(bucket string) *MemoryObjectStore {
	return &MemoryObjectStore{
		bucket:  bucket,
		objects: cmap.New[[]byte](),
		deletes: cmap.New[int](),
	}
}

func (s *MemoryObjectStore) Bucket() string {
	return s.bucket
}

func (s *MemoryObjectStore) EnsureBucket(context.Context) error {
	return nil
}

func (s *MemoryObjectStore) Exists(_ context.Context, key string) (bool, error) {
	return s.objects.Has(key), nil
}

func (s *MemoryObjectStore) Put(ctx context.Context, key string, body io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.PutErr != nil {
		return s.PutErr
	}
	s.objects.Set(key, buf.Bytes())
	return nil
}

func (s *MemoryObjectStore) Delete(_ context.Context, key string) error {
	s.deletes.Upsert(key, 1, func(exist bool, current, inc int) int {
		if exist {
			return current + inc
		}
		return inc
	})
	s.objects.Remove(key)
	return nil
}

// Object returns the staged bytes under key.
func (s *MemoryObjectStore) Object(key string) ([]byte, bool) {
	return s.objects.Get(key)
}

// Deletes reports how many times key was deleted.
func (s *MemoryObjectStore) Deletes(key string) int {
	n, _ := s.deletes.Get(key)
	return n
}

func (s *MemoryObjectStore) Keys() []string {
	return s.objects.Keys()
}

const (
	imagesTable = "images"
	tasksTable  = "tasks"
)

type imageRecord struct {
	Id   string
	Tags []model.Tag
}

type taskRecord struct {
	Id      string
	Request ImportRequest
	Polls   int
	ImageId string
}

// MemoryCompute is an in-process Compute. Import tasks walk through the
// scripted status sequence, one status per describe call, and stay on the
// last one.
type MemoryCompute struct {
	db       *memdb.MemDB
	mu       sync.Mutex
	statuses []string
	imageId  func(task string) string
	taskSeq  atomic.Int64
	imageSeq atomic.Int64
	// ImportErr, when set, rejects every import request.
	ImportErr error
	// TagErr, when set, fails every tagging call.
	TagErr error
}

func NewMemoryCompute(statuses ...string) *MemoryCompute {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			imagesTable: {
				Name: imagesTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Id"}},
				},
			},
			tasksTable: {
				Name: tasksTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Id"}},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic(err)
	}
	if len(statuses) == 0 {
		statuses = []string{"completed"}
	}
	c := &MemoryCompute{db: db, statuses: statuses}
	c.imageId = func(string) string {
		return fmt.Sprintf("ami-%08d", c.imageSeq.Add(1))
	}
	return c
}

// WithImageIds makes completed imports produce the given image ids in order.
func (c *MemoryCompute) WithImageIds(ids ...string) *MemoryCompute {
	var next atomic.Int64
	c.imageId = func(string) string {
		i := int(next.Add(1) - 1)
		if i < len(ids) {
			return ids[i]
		}
		return fmt.Sprintf("ami-%08d", c.imageSeq.Add(1))
	}
	return c
}

// SeedImage registers an image directly, bypassing the import flow.
func (c *MemoryCompute) SeedImage(id string, tagSet []model.Tag) {
	txn := c.db.Txn(true)
	defer txn.Abort()
	_ = txn.Insert(imagesTable, &imageRecord{Id: id, Tags: tagSet})
	txn.Commit()
}

func (c *MemoryCompute) ImportImage(_ context.Context, req ImportRequest) (string, error) {
	if c.ImportErr != nil {
		return "", c.ImportErr
	}
	id := fmt.Sprintf("import-ami-%d", c.taskSeq.Add(1))
	txn := c.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tasksTable, &taskRecord{Id: id, Request: req}); err != nil {
		return "", err
	}
	txn.Commit()
	return id, nil
}

func (c *MemoryCompute) DescribeImportTask(ctx context.Context, taskId string) (*model.ImportTask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	txn := c.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(tasksTable, "id", taskId)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, model.NewError(model.KindBackend, "import task [%s] not found", taskId)
	}
	prev := raw.(*taskRecord)
	record := &taskRecord{Id: prev.Id, Request: prev.Request, Polls: prev.Polls + 1, ImageId: prev.ImageId}
	step := record.Polls - 1
	if step >= len(c.statuses) {
		step = len(c.statuses) - 1
	}
	task := &model.ImportTask{Id: taskId, Status: c.statuses[step], Progress: fmt.Sprintf("%d", record.Polls)}
	if step == len(c.statuses)-1 && c.statuses[step] == "completed" {
		if record.ImageId == "" {
			record.ImageId = c.imageId(taskId)
			if err := txn.Insert(imagesTable, &imageRecord{Id: record.ImageId}); err != nil {
				return nil, err
			}
		}
		task.ImageId = record.ImageId
	}
	if err := txn.Insert(tasksTable, record); err != nil {
		return nil, err
	}
	txn.Commit()
	return task, nil
}

func (c *MemoryCompute) DeregisterImage(_ context.Context, imageId string) error {
	txn := c.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(imagesTable, "id", imageId)
	if err != nil {
		return err
	}
	if raw == nil {
		return model.NewError(model.KindBackend, "image [%s] not found", imageId)
	}
	if err := txn.Delete(imagesTable, raw); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (c *MemoryCompute) CreateTags(_ context.Context, imageId string, tagSet []model.Tag) error {
	if c.TagErr != nil {
		return c.TagErr
	}
	txn := c.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(imagesTable, "id", imageId)
	if err != nil {
		return err
	}
	if raw == nil {
		return model.NewError(model.KindBackend, "image [%s] not found", imageId)
	}
	merged := mergeTags(raw.(*imageRecord).Tags, tagSet)
	if err := txn.Insert(imagesTable, &imageRecord{Id: imageId, Tags: merged}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (c *MemoryCompute) DescribeImages(_ context.Context, filters []model.Filter) ([]model.MachineImage, error) {
	txn := c.db.Txn(false)
	it, err := txn.Get(imagesTable, "id")
	if err != nil {
		return nil, err
	}
	var result []model.MachineImage
	for raw := it.Next(); raw != nil; raw = it.Next() {
		record := raw.(*imageRecord)
		image := model.MachineImage{Id: record.Id, Tags: append([]model.Tag(nil), record.Tags...)}
		if tags.Matches(filters, &image) {
			result = append(result, image)
		}
	}
	return result, nil
}

// Images returns the ids of every registered image.
func (c *MemoryCompute) Images() []string {
	images, _ := c.DescribeImages(context.Background(), nil)
	ids := make([]string, 0, len(images))
	for _, image := range images {
		ids = append(ids, image.Id)
	}
	return ids
}

// mergeTags overwrites existing keys and appends new ones, like the provider does.
func mergeTags(existing, update []model.Tag) []model.Tag {
	merged := append([]model.Tag(nil), existing...)
	index := make(map[string]int, len(merged))
	for i, tag := range merged {
		index[tag.Key] = i
	}
	for _, tag := range update {
		if i, found := index[tag.Key]; found {
			merged[i] = tag
			continue
		}
		index[tag.Key] = len(merged)
		merged = append(merged, tag)
	}
	return merged
}
