package cloud

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/michaelquigley/pfxlog"
	"github.com/pkg/errors"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

const defaultRegion = "us-east-1"

// NewAWSBackend opens one session and returns the S3 staging store and EC2
// compute handle built on it.
func NewAWSBackend(cfg *model.Config) (*S3ObjectStore, *EC2Compute, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Aws.Region)
	if cfg.Aws.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Aws.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, nil, model.WrapError(model.KindInvalidConfiguration, err, "cannot open aws session")
	}
	s3Client := s3.New(sess)
	objects := NewS3ObjectStore(s3Client, s3manager.NewUploaderWithClient(s3Client), cfg.BucketName, cfg.Aws.Region)
	return objects, NewEC2Compute(ec2.New(sess)), nil
}

type S3ObjectStore struct {
	client   s3iface.S3API
	uploader s3manageriface.UploaderAPI
	bucket   string
	region   string
}

func NewS3ObjectStore(client s3iface.S3API, uploader s3manageriface.UploaderAPI, bucket, region string) *S3ObjectStore {
	return &S3ObjectStore{client: client, uploader: uploader, bucket: bucket, region: region}
}

func (s *S3ObjectStore) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the staging bucket when it does not exist. A bucket
// owned by somebody else raises NoBucketPermission.
func (s *S3ObjectStore) EnsureBucket(ctx context.Context) error {
	log := pfxlog.Logger().WithField("bucket", s.bucket)
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		log.Debug("staging bucket present")
		return nil
	}
	switch awsCode(err) {
	case "Forbidden", "AccessDenied":
		return model.WrapError(model.KindNoBucketPermission, err, "no permission to bucket [%s]", s.bucket)
	case "NotFound", s3.ErrCodeNoSuchBucket:
	default:
		return model.WrapError(model.KindBackend, err, "cannot inspect bucket [%s]", s.bucket)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	if s.region != "" && s.region != defaultRegion {
		input.CreateBucketConfiguration = &s3.CreateBucketConfiguration{LocationConstraint: aws.String(s.region)}
	}
	if _, err := s.client.CreateBucketWithContext(ctx, input); err != nil {
		switch awsCode(err) {
		case s3.ErrCodeBucketAlreadyOwnedByYou:
			return nil
		case s3.ErrCodeBucketAlreadyExists, "AccessDenied", "Forbidden":
			return model.WrapError(model.KindNoBucketPermission, err, "no permission to bucket [%s]", s.bucket)
		}
		return model.WrapError(model.KindBackend, err, "cannot create bucket [%s]", s.bucket)
	}
	log.Info("staging bucket created")
	return nil
}

func (s *S3ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	switch awsCode(err) {
	case "NotFound", s3.ErrCodeNoSuchKey:
		return false, nil
	}
	return false, err
}

func (s *S3ObjectStore) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	return err
}

func (s *S3ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil && awsCode(err) != s3.ErrCodeNoSuchKey {
		return err
	}
	return nil
}

type EC2Compute struct {
	client ec2iface.EC2API
}

func NewEC2Compute(client ec2iface.EC2API) *EC2Compute {
	return &EC2Compute{client: client}
}

func (c *EC2Compute) ImportImage(ctx context.Context, req ImportRequest) (string, error) {
	out, err := c.client.ImportImageWithContext(ctx, &ec2.ImportImageInput{
		Description: aws.String(req.Description),
		DiskContainers: []*ec2.ImageDiskContainer{{
			Description: aws.String(req.Description),
			Format:      aws.String(req.Format),
			UserBucket: &ec2.UserBucket{
				S3Bucket: aws.String(req.Bucket),
				S3Key:    aws.String(req.Key),
			},
		}},
	})
	if err != nil {
		return "", model.WrapError(model.KindBackend, err, "import of [%s/%s] rejected", req.Bucket, req.Key)
	}
	return aws.StringValue(out.ImportTaskId), nil
}

func (c *EC2Compute) DescribeImportTask(ctx context.Context, taskId string) (*model.ImportTask, error) {
	out, err := c.client.DescribeImportImageTasksWithContext(ctx, &ec2.DescribeImportImageTasksInput{
		ImportTaskIds: aws.StringSlice([]string{taskId}),
	})
	if err != nil {
		return nil, model.WrapError(model.KindBackend, err, "cannot describe import task [%s]", taskId)
	}
	if len(out.ImportImageTasks) == 0 {
		return nil, model.NewError(model.KindBackend, "import task [%s] not found", taskId)
	}
	task := out.ImportImageTasks[0]
	return &model.ImportTask{
		Id:            aws.StringValue(task.ImportTaskId),
		Status:        aws.StringValue(task.Status),
		StatusMessage: aws.StringValue(task.StatusMessage),
		Progress:      aws.StringValue(task.Progress),
		ImageId:       aws.StringValue(task.ImageId),
	}, nil
}

func (c *EC2Compute) DeregisterImage(ctx context.Context, imageId string) error {
	if _, err := c.client.DeregisterImageWithContext(ctx, &ec2.DeregisterImageInput{ImageId: aws.String(imageId)}); err != nil {
		return model.WrapError(model.KindBackend, err, "cannot deregister image [%s]", imageId)
	}
	return nil
}

func (c *EC2Compute) CreateTags(ctx context.Context, imageId string, tags []model.Tag) error {
	awsTags := make([]*ec2.Tag, 0, len(tags))
	for _, tag := range tags {
		awsTags = append(awsTags, &ec2.Tag{Key: aws.String(tag.Key), Value: aws.String(tag.Value)})
	}
	_, err := c.client.CreateTagsWithContext(ctx, &ec2.CreateTagsInput{
		Resources: aws.StringSlice([]string{imageId}),
		Tags:      awsTags,
	})
	if err != nil {
		return model.WrapError(model.KindBackend, err, "cannot tag image [%s]", imageId)
	}
	return nil
}

// DescribeImages lists images owned by the account that match every filter.
func (c *EC2Compute) DescribeImages(ctx context.Context, filters []model.Filter) ([]model.MachineImage, error) {
	awsFilters := make([]*ec2.Filter, 0, len(filters))
	for _, f := range filters {
		awsFilters = append(awsFilters, &ec2.Filter{Name: aws.String(f.Name), Values: aws.StringSlice(f.Values)})
	}
	out, err := c.client.DescribeImagesWithContext(ctx, &ec2.DescribeImagesInput{
		Owners:  aws.StringSlice([]string{"self"}),
		Filters: awsFilters,
	})
	if err != nil {
		return nil, model.WrapError(model.KindBackend, err, "cannot describe images")
	}
	images := make([]model.MachineImage, 0, len(out.Images))
	for _, image := range out.Images {
		mi := model.MachineImage{Id: aws.StringValue(image.ImageId)}
		for _, tag := range image.Tags {
			mi.Tags = append(mi.Tags, model.Tag{Key: aws.StringValue(tag.Key), Value: aws.StringValue(tag.Value)})
		}
		images = append(images, mi)
	}
	return images, nil
}

func awsCode(err error) string {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code()
	}
	return ""
}
