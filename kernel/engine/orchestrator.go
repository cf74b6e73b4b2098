package engine

import (
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/cloud"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/download"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/logging"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/tags"
)

// Fetcher opens the byte stream of a remote image.
type Fetcher interface {
	Download(ctx context.Context, uri string, credentials *download.Credentials) (io.ReadCloser, error)
}

// Observer is told about every finished import attempt.
type Observer interface {
	ImportFinished(a *model.Appliance, duration time.Duration, err error)
}

// Notifier receives catalog change events. Delivery failures are the
// notifier's concern and never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, event model.Event)
}

type Option func(*Orchestrator)

func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

func WithNotifier(notifier Notifier) Option {
	return func(o *Orchestrator) { o.notifier = notifier }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator drives the appliance lifecycle against the backend. The
// backend tags are the only state; nothing is cached between calls.
type Orchestrator struct {
	gateway  *cloud.Gateway
	codec    *tags.Codec
	fetcher  Fetcher
	observer Observer
	notifier Notifier
	now      func() time.Time
}

func New(gateway *cloud.Gateway, codec *tags.Codec, fetcher Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway: gateway,
		codec:   codec,
		fetcher: fetcher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Owner() string {
	return o.codec.Owner()
}

// Register stages the image, imports it and tags the resulting machine image.
// The staged object is deleted on every exit path, except when staging was
// refused because the key was already taken by someone else.
func (o *Orchestrator) Register(ctx context.Context, a *model.Appliance) error {
	if a.Image == nil {
		return model.NewError(model.KindBackend, "appliance [%s] carries no image", a.Identifier)
	}
	if err := tags.CheckKeys(a); err != nil {
		return err
	}
	log := logging.From(ctx).WithField("appliance", a.Identifier).WithField("imageList", a.ImageListIdentifier)
	log.Debug("registering appliance")

	start := o.now()
	imageId, err := o.importAppliance(ctx, a, log)
	if o.observer != nil {
		o.observer.ImportFinished(a, o.now().Sub(start), err)
	}
	if err != nil {
		return err
	}
	log.WithField("image", imageId).Info("appliance registered")
	o.notify(ctx, model.EventRegistered, a, imageId)
	return nil
}

func (o *Orchestrator) importAppliance(ctx context.Context, a *model.Appliance, log *logrus.Entry) (imageId string, err error) {
	defer func() {
		if !errors.Is(err, cloud.ErrObjectExists) {
			o.cleanup(ctx, a.Identifier, log)
		}
	}()

	if err = o.stage(ctx, a, log); err != nil {
		return "", err
	}
	taskId, err := o.gateway.StartImport(ctx, a)
	if err != nil {
		return "", err
	}
	log = log.WithField("task", taskId)
	if imageId, err = o.gateway.PollImport(ctx, taskId); err != nil {
		return "", err
	}
	if err = o.gateway.SetTags(ctx, o.codec.Encode(a), imageId); err != nil {
		log.WithField("image", imageId).Warn("machine image imported but left untagged, remove it manually")
		return "", err
	}
	return imageId, nil
}

func (o *Orchestrator) stage(ctx context.Context, a *model.Appliance, log *logrus.Entry) error {
	image := a.Image
	if image.Mode == model.ModeLocal {
		log.WithField("path", image.Location).Debug("staging local image")
		return o.gateway.StageFile(ctx, a.Identifier, image.Location)
	}

	location := image.Location
	if location == "" {
		location = image.Uri
	}
	sink, err := o.gateway.StageStream(ctx, a.Identifier)
	if err != nil {
		return err
	}
	var credentials *download.Credentials
	if image.HasCredentials() {
		credentials = &download.Credentials{Username: image.Username, Password: image.Password}
	}
	body, err := o.fetcher.Download(ctx, location, credentials)
	if err != nil {
		sink.Abort(err)
		return err
	}
	defer body.Close()

	if _, err := io.Copy(sink, body); err != nil {
		sink.Abort(err)
		if ctx.Err() != nil {
			return model.WrapError(model.KindCancelled, ctx.Err(), "staging of [%s] cancelled", a.Identifier)
		}
		return model.WrapError(model.KindImageDownload, err, "cannot stream image from [%s]", location)
	}
	if err := sink.Close(); err != nil {
		return err
	}
	log.Debugf("staged %s", humanize.Bytes(uint64(sink.Written())))
	return nil
}

// cleanup runs detached from ctx so a cancelled request still removes its
// staged object. Its failure is logged and never replaces the caller's error.
func (o *Orchestrator) cleanup(ctx context.Context, key string, log *logrus.Entry) {
	if err := o.gateway.DeleteStaged(context.WithoutCancel(ctx), key); err != nil {
		log.WithError(err).Error("cannot delete staged object")
	}
}

// Deregister removes the single machine image carrying the appliance identifier.
func (o *Orchestrator) Deregister(ctx context.Context, a *model.Appliance) error {
	image, err := o.findUnique(ctx, a.Identifier)
	if err != nil {
		return err
	}
	if err := o.gateway.Deregister(ctx, image.Id); err != nil {
		return err
	}
	logging.From(ctx).WithField("appliance", a.Identifier).WithField("image", image.Id).Info("appliance removed")
	o.notify(ctx, model.EventRemoved, a, image.Id)
	return nil
}

// Modify replaces the machine image of an appliance. The appliance is absent
// from the catalog between the two steps.
func (o *Orchestrator) Modify(ctx context.Context, a *model.Appliance) error {
	if err := o.Deregister(ctx, a); err != nil {
		return err
	}
	return o.Register(ctx, a)
}

// Retag rewrites the metadata tags of an appliance without touching its image.
func (o *Orchestrator) Retag(ctx context.Context, a *model.Appliance) error {
	if err := tags.CheckKeys(a); err != nil {
		return err
	}
	image, err := o.findUnique(ctx, a.Identifier)
	if err != nil {
		return err
	}
	if err := o.gateway.SetTags(ctx, o.codec.Encode(a), image.Id); err != nil {
		return err
	}
	logging.From(ctx).WithField("appliance", a.Identifier).WithField("image", image.Id).Debug("appliance retagged")
	o.notify(ctx, model.EventRetagged, a, image.Id)
	return nil
}

// DeregisterImageList removes every machine image of the image list. It stops
// at the first failure and leaves the rest in place.
func (o *Orchestrator) DeregisterImageList(ctx context.Context, imageListId string) error {
	images, err := o.gateway.Search(ctx, tags.ImageList(o.Owner(), imageListId))
	if err != nil {
		return err
	}
	log := logging.From(ctx).WithField("imageList", imageListId)
	for i := range images {
		if err := o.gateway.Deregister(ctx, images[i].Id); err != nil {
			return err
		}
		identifier, _ := images[i].Tag(tags.ApplianceIdKey)
		o.notify(ctx, model.EventRemoved, &model.Appliance{Identifier: identifier, ImageListIdentifier: imageListId}, images[i].Id)
	}
	log.Infof("removed %d machine image(s)", len(images))
	return nil
}

// ListImageLists returns the distinct image list identifiers in first-seen order.
func (o *Orchestrator) ListImageLists(ctx context.Context) ([]string, error) {
	images, err := o.gateway.Search(ctx, tags.AllImageLists(o.Owner()))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var result []string
	for i := range images {
		id, found := images[i].Tag(tags.ImageListKey)
		if !found {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result, nil
}

func (o *Orchestrator) FetchAppliances(ctx context.Context, imageListId string) ([]*model.Appliance, error) {
	images, err := o.gateway.Search(ctx, tags.ImageList(o.Owner(), imageListId))
	if err != nil {
		return nil, err
	}
	return o.decodeAll(images)
}

// SweepExpired deregisters every owned machine image whose appliance expired
// at or before now and returns the removed appliances.
func (o *Orchestrator) SweepExpired(ctx context.Context) ([]*model.Appliance, error) {
	images, err := o.gateway.Search(ctx, tags.Owned(o.Owner()))
	if err != nil {
		return nil, err
	}
	now := o.now().Unix()
	var removed []*model.Appliance
	for i := range images {
		a, err := o.codec.Decode(images[i].Tags)
		if err != nil {
			logging.From(ctx).WithField("image", images[i].Id).WithError(err).Warn("skipping machine image with unreadable tags")
			continue
		}
		if !a.Expired(now) {
			continue
		}
		if err := o.gateway.Deregister(ctx, images[i].Id); err != nil {
			return removed, err
		}
		logging.From(ctx).WithField("appliance", a.Identifier).WithField("image", images[i].Id).Info("expired appliance removed")
		o.notify(ctx, model.EventRemoved, a, images[i].Id)
		removed = append(removed, a)
	}
	return removed, nil
}

func (o *Orchestrator) findUnique(ctx context.Context, identifier string) (*model.MachineImage, error) {
	images, err := o.gateway.Search(ctx, tags.Appliance(o.Owner(), identifier))
	if err != nil {
		return nil, err
	}
	switch len(images) {
	case 0:
		return nil, model.NewError(model.KindApplianceNotFound, "appliance [%s] not found", identifier)
	case 1:
		return &images[0], nil
	default:
		return nil, model.NewError(model.KindMultipleAppliancesFound,
			"appliance [%s] backed by %d machine images", identifier, len(images))
	}
}

func (o *Orchestrator) decodeAll(images []model.MachineImage) ([]*model.Appliance, error) {
	result := make([]*model.Appliance, 0, len(images))
	for i := range images {
		a, err := o.codec.Decode(images[i].Tags)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot decode machine image [%s]", images[i].Id)
		}
		result = append(result, a)
	}
	return result, nil
}

func (o *Orchestrator) notify(ctx context.Context, eventType model.EventType, a *model.Appliance, imageId string) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, model.Event{
		Type:                eventType,
		Owner:               o.Owner(),
		ApplianceIdentifier: a.Identifier,
		ImageListIdentifier: a.ImageListIdentifier,
		ImageId:             imageId,
		Timestamp:           o.now().UTC(),
	})
}
