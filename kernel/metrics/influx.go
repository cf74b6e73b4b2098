package metrics

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
)

const (
	importMeasurement = "cloudkeeper_import"
	writeTimeout      = 5 * time.Second
)

// InfluxSink writes one point per import to an InfluxDB v2 bucket.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	owner  string
}

func NewInfluxSink(cfg model.InfluxConfig, owner string) *InfluxSink {
	client := influxdb2.NewClient(cfg.Url, cfg.Token)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		owner:  owner,
	}
}

func (s *InfluxSink) RecordImport(a *model.Appliance, duration time.Duration, result string) {
	point := influxdb2.NewPoint(importMeasurement,
		map[string]string{
			"owner":      s.owner,
			"image_list": a.ImageListIdentifier,
			"result":     result,
		},
		map[string]interface{}{
			"appliance":        a.Identifier,
			"duration_seconds": duration.Seconds(),
		},
		time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, point); err != nil {
		logrus.WithError(err).WithField("appliance", a.Identifier).Warn("cannot write import point to influxdb")
	}
}

func (s *InfluxSink) Close() {
	s.client.Close()
}
