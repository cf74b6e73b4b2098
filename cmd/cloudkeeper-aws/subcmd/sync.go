/*
	(c) Copyright NetFoundry Inc. Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package subcmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/engine"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/events"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/metrics"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/rpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

func init() {
	RootCmd.AddCommand(NewSyncCommand())
}

func NewSyncCommand() *cobra.Command {
	syncCmd := &SyncCommand{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Serve the cloudkeeper core over gRPC",
		Long: `Start the connector. The cloudkeeper core calls it during every
synchronization to register, update and remove appliances, which are
imported as EC2 machine images through an S3 staging bucket.`,
		Args: cobra.NoArgs,
		RunE: syncCmd.run,
	}

	syncCmd.settings.bind(cmd)
	cmd.Flags().BoolVar(&syncCmd.UseMemory, "memory", false, "use in-memory backends instead of AWS")

	return cmd
}

type SyncCommand struct {
	settings  settingsFlags
	UseMemory bool
}

func (s *SyncCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := s.settings.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []metrics.ImportSink
	if cfg.Influx.Enabled() {
		influx := metrics.NewInfluxSink(cfg.Influx, cfg.Identifier)
		defer influx.Close()
		sinks = append(sinks, influx)
	}
	collector := metrics.NewCollector(sinks...)

	opts := []engine.Option{engine.WithObserver(collector)}
	if cfg.NatsUrl != "" {
		publisher, err := events.NewPublisher(cfg.NatsUrl, cfg.Identifier)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, engine.WithNotifier(publisher))
	}

	orchestrator, err := newOrchestrator(ctx, cfg, s.UseMemory, opts...)
	if err != nil {
		return err
	}
	gs, err := rpc.NewGRPCServer(cfg, rpc.NewServer(orchestrator), collector)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on [%s]", cfg.ListenAddress)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		metrics.RegisterMetrics(mux, metrics.Registry(collector))
		metricsServer = &http.Server{Addr: cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithField("owner", cfg.Identifier).Infof("serving on [%s]", lis.Addr())
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return errors.Wrap(err, "grpc server failed")
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			logrus.Infof("serving metrics on [%s]", cfg.MetricsAddress)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server failed")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logrus.Info("shutting down")
		gs.GracefulStop()
		if metricsServer == nil {
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
