package rpc

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client talks to a running connector.
type Client struct {
	cc *grpc.ClientConn
}

// WithJSONEncoding makes every call use the JSON content-subtype instead of
// protobuf.
func WithJSONEncoding() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName))
}

// Dial connects to target, with mutual TLS when authentication is enabled.
// Extra options are appended last.
func Dial(target string, cfg *model.Config, opts ...grpc.DialOption) (*Client, error) {
	var dialOpts []grpc.DialOption
	if cfg != nil && cfg.Authentication {
		creds, err := ClientCredentials(cfg)
		if err != nil {
			return nil, err
		}
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	cc, err := grpc.NewClient(target, append(dialOpts, opts...)...)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot connect to [%s]", target)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in proto.Message) error {
	return c.cc.Invoke(ctx, fullMethod(method), in, &Empty{})
}

func (c *Client) PreAction(ctx context.Context) error {
	return c.invoke(ctx, "PreAction", &Empty{})
}

func (c *Client) PostAction(ctx context.Context) error {
	return c.invoke(ctx, "PostAction", &Empty{})
}

func (c *Client) AddAppliance(ctx context.Context, a *model.Appliance) error {
	return c.invoke(ctx, "AddAppliance", ApplianceToProto(a))
}

func (c *Client) UpdateAppliance(ctx context.Context, a *model.Appliance) error {
	return c.invoke(ctx, "UpdateAppliance", ApplianceToProto(a))
}

func (c *Client) UpdateApplianceMetadata(ctx context.Context, a *model.Appliance) error {
	return c.invoke(ctx, "UpdateApplianceMetadata", ApplianceToProto(a))
}

func (c *Client) RemoveAppliance(ctx context.Context, a *model.Appliance) error {
	return c.invoke(ctx, "RemoveAppliance", ApplianceToProto(a))
}

func (c *Client) RemoveImageList(ctx context.Context, imageListId string) error {
	return c.invoke(ctx, "RemoveImageList", ImageListIdentifierToProto(imageListId))
}

func (c *Client) RemoveExpiredAppliances(ctx context.Context) error {
	return c.invoke(ctx, "RemoveExpiredAppliances", &Empty{})
}

// ListImageLists calls the ImageLists stream and collects every identifier.
func (c *Client) ListImageLists(ctx context.Context) ([]string, error) {
	var result []string
	err := c.stream(ctx, imageListsStream, &Empty{}, NewImageListIdentifierMessage, func(m *dynamicpb.Message) {
		result = append(result, ImageListIdentifierFromProto(m).ImageListIdentifier)
	})
	return result, err
}

// ListAppliances calls the Appliances stream for one image list.
func (c *Client) ListAppliances(ctx context.Context, imageListId string) ([]*model.Appliance, error) {
	var result []*model.Appliance
	err := c.stream(ctx, appliancesStream, ImageListIdentifierToProto(imageListId), NewApplianceMessage, func(m *dynamicpb.Message) {
		result = append(result, ApplianceFromProto(m))
	})
	return result, err
}

func (c *Client) stream(ctx context.Context, index int, in proto.Message, alloc func() *dynamicpb.Message, collect func(*dynamicpb.Message)) error {
	desc := &Communicator_ServiceDesc.Streams[index]
	stream, err := c.cc.NewStream(ctx, desc, fullMethod(desc.StreamName))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(in); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		m := alloc()
		if err := stream.RecvMsg(m); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		collect(m)
	}
}
