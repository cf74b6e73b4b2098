package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/michaelquigley/pfxlog"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

const SubjectPrefix = "cloudkeeper.appliance."

type conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends catalog change events to NATS. A failed publish is logged
// and dropped.
type Publisher struct {
	conn conn
	nc   *nats.Conn
}

func NewPublisher(url, name string) (*Publisher, error) {
	log := pfxlog.Logger().WithField("url", url)
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.WithError(err).Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to nats at [%s]", url)
	}
	return &Publisher{conn: nc, nc: nc}, nil
}

func Subject(eventType model.EventType) string {
	return SubjectPrefix + string(eventType)
}

func (p *Publisher) Notify(_ context.Context, event model.Event) {
	log := pfxlog.Logger().WithField("appliance", event.ApplianceIdentifier).WithField("type", event.Type)
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("cannot encode event")
		return
	}
	if err := p.conn.Publish(Subject(event.Type), payload); err != nil {
		log.WithError(err).Warn("cannot publish event")
		return
	}
	log.Debug("event published")
}

func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
