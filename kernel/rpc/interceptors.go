package rpc

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/michaelquigley/pfxlog"
	"github.com/sirupsen/logrus"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryInterceptor gives each call a request id carried by the logger in its
// context, logs the outcome and reports it to observer.
func UnaryInterceptor(observer CallObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		log := requestLogger(info.FullMethod)
		resp, err := handler(logging.WithLogger(ctx, log), req)
		finish(log, info.FullMethod, start, err, observer)
		return resp, err
	}
}

func StreamInterceptor(observer CallObserver) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		log := requestLogger(info.FullMethod)
		err := handler(srv, &loggedStream{ServerStream: ss, ctx: logging.WithLogger(ss.Context(), log)})
		finish(log, info.FullMethod, start, err, observer)
		return err
	}
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context {
	return s.ctx
}

func requestLogger(fullMethod string) *logrus.Entry {
	return pfxlog.Logger().WithFields(logrus.Fields{
		"request": uuid.NewString(),
		"method":  path.Base(fullMethod),
	})
}

func finish(log *logrus.Entry, fullMethod string, start time.Time, err error, observer CallObserver) {
	code := status.Code(err)
	log = log.WithFields(logrus.Fields{
		"code":     code.String(),
		"duration": time.Since(start).Round(time.Millisecond),
	})
	if err != nil {
		log.WithError(err).Error("call failed")
	} else {
		log.Debug("call handled")
	}
	if observer != nil {
		observer.ObserveCall(path.Base(fullMethod), code.String())
	}
}
