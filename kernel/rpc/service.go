package rpc

import (
	"context"

	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"google.golang.org/grpc"
)

const ServiceName = "cloudkeeper.Communicator"

// CommunicatorServer is the service the core drives during a synchronization.
// Wire messages are converted before they reach it.
type CommunicatorServer interface {
	PreAction(context.Context, *Empty) (*Empty, error)
	PostAction(context.Context, *Empty) (*Empty, error)
	AddAppliance(context.Context, *model.Appliance) (*Empty, error)
	UpdateAppliance(context.Context, *model.Appliance) (*Empty, error)
	UpdateApplianceMetadata(context.Context, *model.Appliance) (*Empty, error)
	RemoveAppliance(context.Context, *model.Appliance) (*Empty, error)
	RemoveImageList(context.Context, *ImageListIdentifier) (*Empty, error)
	RemoveExpiredAppliances(context.Context, *Empty) (*Empty, error)
	ImageLists(*Empty, Communicator_ImageListsServer) error
	Appliances(*ImageListIdentifier, Communicator_AppliancesServer) error
}

func RegisterCommunicatorServer(s grpc.ServiceRegistrar, srv CommunicatorServer) {
	s.RegisterService(&Communicator_ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func decodeEmpty(dec func(interface{}) error) (*Empty, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeAppliance(dec func(interface{}) error) (*model.Appliance, error) {
	in := NewApplianceMessage()
	if err := dec(in); err != nil {
		return nil, err
	}
	return ApplianceFromProto(in), nil
}

func decodeImageListIdentifier(dec func(interface{}) error) (*ImageListIdentifier, error) {
	in := NewImageListIdentifierMessage()
	if err := dec(in); err != nil {
		return nil, err
	}
	return ImageListIdentifierFromProto(in), nil
}

func unaryHandler[Req any](name string, decode func(func(interface{}) error) (*Req, error), call func(CommunicatorServer, context.Context, *Req) (*Empty, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in, err := decode(dec)
		if err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CommunicatorServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(CommunicatorServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type Communicator_ImageListsServer interface {
	Send(*ImageListIdentifier) error
	grpc.ServerStream
}

type communicatorImageListsServer struct {
	grpc.ServerStream
}

func (x *communicatorImageListsServer) Send(m *ImageListIdentifier) error {
	return x.ServerStream.SendMsg(ImageListIdentifierToProto(m.ImageListIdentifier))
}

func _Communicator_ImageLists_Handler(srv interface{}, stream grpc.ServerStream) error {
	m, err := decodeEmpty(stream.RecvMsg)
	if err != nil {
		return err
	}
	return srv.(CommunicatorServer).ImageLists(m, &communicatorImageListsServer{stream})
}

type Communicator_AppliancesServer interface {
	Send(*model.Appliance) error
	grpc.ServerStream
}

type communicatorAppliancesServer struct {
	grpc.ServerStream
}

func (x *communicatorAppliancesServer) Send(m *model.Appliance) error {
	return x.ServerStream.SendMsg(ApplianceToProto(m))
}

func _Communicator_Appliances_Handler(srv interface{}, stream grpc.ServerStream) error {
	m, err := decodeImageListIdentifier(stream.RecvMsg)
	if err != nil {
		return err
	}
	return srv.(CommunicatorServer).Appliances(m, &communicatorAppliancesServer{stream})
}

const (
	imageListsStream = iota
	appliancesStream
)

var Communicator_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CommunicatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PreAction", Handler: unaryHandler("PreAction", decodeEmpty, CommunicatorServer.PreAction)},
		{MethodName: "PostAction", Handler: unaryHandler("PostAction", decodeEmpty, CommunicatorServer.PostAction)},
		{MethodName: "AddAppliance", Handler: unaryHandler("AddAppliance", decodeAppliance, CommunicatorServer.AddAppliance)},
		{MethodName: "UpdateAppliance", Handler: unaryHandler("UpdateAppliance", decodeAppliance, CommunicatorServer.UpdateAppliance)},
		{MethodName: "UpdateApplianceMetadata", Handler: unaryHandler("UpdateApplianceMetadata", decodeAppliance, CommunicatorServer.UpdateApplianceMetadata)},
		{MethodName: "RemoveAppliance", Handler: unaryHandler("RemoveAppliance", decodeAppliance, CommunicatorServer.RemoveAppliance)},
		{MethodName: "RemoveImageList", Handler: unaryHandler("RemoveImageList", decodeImageListIdentifier, CommunicatorServer.RemoveImageList)},
		{MethodName: "RemoveExpiredAppliances", Handler: unaryHandler("RemoveExpiredAppliances", decodeEmpty, CommunicatorServer.RemoveExpiredAppliances)},
	},
	Streams: []grpc.StreamDesc{
		imageListsStream: {StreamName: "ImageLists", Handler: _Communicator_ImageLists_Handler, ServerStreams: true},
		appliancesStream: {StreamName: "Appliances", Handler: _Communicator_Appliances_Handler, ServerStreams: true},
	},
	Metadata: "cloudkeeper.proto",
}
