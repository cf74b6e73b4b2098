package rpc

import (
	"context"

	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/engine"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/logging"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CallObserver is told the outcome of every handled call.
type CallObserver interface {
	ObserveCall(method, code string)
}

// Server adapts the orchestrator to the Communicator service.
type Server struct {
	orchestrator *engine.Orchestrator
}

func NewServer(orchestrator *engine.Orchestrator) *Server {
	return &Server{orchestrator: orchestrator}
}

// NewGRPCServer builds a grpc.Server serving s, with mutual TLS when
// authentication is enabled. observer may be nil.
func NewGRPCServer(cfg *model.Config, s *Server, observer CallObserver) (*grpc.Server, error) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryInterceptor(observer)),
		grpc.ChainStreamInterceptor(StreamInterceptor(observer)),
	}
	if cfg.Authentication {
		creds, err := ServerCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}
	gs := grpc.NewServer(opts...)
	RegisterCommunicatorServer(gs, s)
	return gs, nil
}

func (s *Server) PreAction(ctx context.Context, _ *Empty) (*Empty, error) {
	logging.From(ctx).Debug("synchronization starting")
	return &Empty{}, nil
}

func (s *Server) PostAction(ctx context.Context, _ *Empty) (*Empty, error) {
	logging.From(ctx).Debug("synchronization finished")
	return &Empty{}, nil
}

func (s *Server) AddAppliance(ctx context.Context, a *model.Appliance) (*Empty, error) {
	return empty(s.orchestrator.Register(ctx, a))
}

func (s *Server) UpdateAppliance(ctx context.Context, a *model.Appliance) (*Empty, error) {
	return empty(s.orchestrator.Modify(ctx, a))
}

func (s *Server) UpdateApplianceMetadata(ctx context.Context, a *model.Appliance) (*Empty, error) {
	return empty(s.orchestrator.Retag(ctx, a))
}

func (s *Server) RemoveAppliance(ctx context.Context, a *model.Appliance) (*Empty, error) {
	return empty(s.orchestrator.Deregister(ctx, a))
}

func (s *Server) RemoveImageList(ctx context.Context, id *ImageListIdentifier) (*Empty, error) {
	return empty(s.orchestrator.DeregisterImageList(ctx, id.ImageListIdentifier))
}

func (s *Server) RemoveExpiredAppliances(ctx context.Context, _ *Empty) (*Empty, error) {
	_, err := s.orchestrator.SweepExpired(ctx)
	return empty(err)
}

func (s *Server) ImageLists(_ *Empty, stream Communicator_ImageListsServer) error {
	ids, err := s.orchestrator.ListImageLists(stream.Context())
	if err != nil {
		return ToStatus(err)
	}
	for _, id := range ids {
		if err := stream.Send(&ImageListIdentifier{ImageListIdentifier: id}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) Appliances(id *ImageListIdentifier, stream Communicator_AppliancesServer) error {
	appliances, err := s.orchestrator.FetchAppliances(stream.Context(), id.ImageListIdentifier)
	if err != nil {
		return ToStatus(err)
	}
	for _, a := range appliances {
		if err := stream.Send(a); err != nil {
			return err
		}
	}
	return nil
}

func empty(err error) (*Empty, error) {
	if err != nil {
		return nil, ToStatus(err)
	}
	return &Empty{}, nil
}

// ToStatus maps an error kind to the status the caller sees.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(Code(model.KindOf(err)), err.Error())
}

func Code(kind model.ErrorKind) codes.Code {
	switch kind {
	case model.KindApplianceNotFound:
		return codes.NotFound
	case model.KindMultipleAppliancesFound:
		return codes.FailedPrecondition
	case model.KindImageImport, model.KindTimeout:
		return codes.Aborted
	case model.KindCancelled:
		return codes.Canceled
	case model.KindNoBucketPermission:
		return codes.PermissionDenied
	default:
		return codes.Unknown
	}
}
