package rpc

import (
	"context"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/cloud"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/download"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/engine"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/tags"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
)

const owner = "cloudkeeper-aws"

type stubFetcher struct{}

func (stubFetcher) Download(context.Context, string, *download.Credentials) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("image data")), nil
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveCall(method, code string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, method+"/"+code)
}

func (o *recordingObserver) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

type harness struct {
	client   *Client
	conn     *grpc.ClientConn
	compute  *cloud.MemoryCompute
	observer *recordingObserver
}

func newHarness(t *testing.T, statuses ...string) *harness {
	t.Helper()
	return newHarnessWith(t, nil, statuses...)
}

func newHarnessWith(t *testing.T, dialOpts []grpc.DialOption, statuses ...string) *harness {
	t.Helper()
	cfg := model.DefaultConfig()
	cfg.PollingInterval = 0
	cfg.PollingTimeout = 5

	compute := cloud.NewMemoryCompute(statuses...)
	gateway, err := cloud.NewGateway(context.Background(), cloud.NewMemoryObjectStore(cfg.BucketName), compute, cfg)
	require.NoError(t, err)
	orchestrator := engine.New(gateway, tags.NewCodec(owner), stubFetcher{})

	observer := &recordingObserver{}
	gs, err := NewGRPCServer(cfg, NewServer(orchestrator), observer)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, err := Dial("passthrough:///bufnet", nil, append([]grpc.DialOption{dialer}, dialOpts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	conn, err := grpc.NewClient("passthrough:///bufnet", dialer, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{client: client, conn: conn, compute: compute, observer: observer}
}

func (h *harness) seed(id string, a *model.Appliance) {
	h.compute.SeedImage(id, tags.NewCodec(owner).Encode(a))
}

func appliance(identifier, imageList string) *model.Appliance {
	return &model.Appliance{
		Identifier:          identifier,
		Title:               "title " + identifier,
		ImageListIdentifier: imageList,
		ExpirationDate:      1,
		Ram:                 2048,
		Image: &model.Image{
			Mode:     model.ModeRemote,
			Location: "http://example.org/" + identifier,
			Format:   model.FormatRaw,
			Size:     1024,
		},
	}
}

func TestActions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.PreAction(context.Background()))
	require.NoError(t, h.client.PostAction(context.Background()))
	assert.Equal(t, []string{"PreAction/OK", "PostAction/OK"}, h.observer.Calls())
}

func TestAddAndListAppliances(t *testing.T) {
	h := newHarness(t, "active", "completed")
	ctx := context.Background()

	require.NoError(t, h.client.AddAppliance(ctx, appliance("appliance-1", "list-1")))
	require.NoError(t, h.client.AddAppliance(ctx, appliance("appliance-2", "list-2")))

	lists, err := h.client.ListImageLists(ctx)
	require.NoError(t, err)
	sort.Strings(lists)
	assert.Equal(t, []string{"list-1", "list-2"}, lists)

	appliances, err := h.client.ListAppliances(ctx, "list-1")
	require.NoError(t, err)
	require.Len(t, appliances, 1)
	assert.Equal(t, "appliance-1", appliances[0].Identifier)
	assert.Equal(t, int64(2048), appliances[0].Ram)
	assert.Equal(t, model.FormatRaw, appliances[0].Image.Format)
}

func TestUpdateApplianceMetadata(t *testing.T) {
	h := newHarness(t)
	h.seed("ami-1", appliance("appliance-1", "list-1"))

	updated := appliance("appliance-1", "list-1")
	updated.Title = "new title"
	require.NoError(t, h.client.UpdateApplianceMetadata(context.Background(), updated))

	appliances, err := h.client.ListAppliances(context.Background(), "list-1")
	require.NoError(t, err)
	require.Len(t, appliances, 1)
	assert.Equal(t, "new title", appliances[0].Title)
}

func TestUpdateAppliance(t *testing.T) {
	h := newHarness(t)
	h.compute.WithImageIds("ami-new")
	h.seed("ami-old", appliance("appliance-1", "list-1"))

	require.NoError(t, h.client.UpdateAppliance(context.Background(), appliance("appliance-1", "list-1")))
	assert.Equal(t, []string{"ami-new"}, h.compute.Images())
}

func TestRemoveAppliance_StatusCodes(t *testing.T) {
	h := newHarness(t)

	err := h.client.RemoveAppliance(context.Background(), appliance("missing", "list-1"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	h.seed("ami-1", appliance("twice", "list-1"))
	h.seed("ami-2", appliance("twice", "list-1"))
	err = h.client.RemoveAppliance(context.Background(), appliance("twice", "list-1"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	h.seed("ami-3", appliance("once", "list-1"))
	require.NoError(t, h.client.RemoveAppliance(context.Background(), appliance("once", "list-1")))
	assert.Contains(t, h.observer.Calls(), "RemoveAppliance/NotFound")
}

func TestAddAppliance_ImportFailure(t *testing.T) {
	h := newHarness(t, "deleted")
	err := h.client.AddAppliance(context.Background(), appliance("appliance-1", "list-1"))
	assert.Equal(t, codes.Aborted, status.Code(err))
}

func TestRemoveImageList(t *testing.T) {
	h := newHarness(t)
	h.seed("0", appliance("appliance-0", "L"))
	h.seed("1", appliance("appliance-1", "L"))
	h.seed("2", appliance("appliance-2", "other"))

	require.NoError(t, h.client.RemoveImageList(context.Background(), "L"))
	assert.Equal(t, []string{"2"}, h.compute.Images())
}

func TestRemoveExpiredAppliances(t *testing.T) {
	h := newHarness(t)
	h.seed("ami-expired", appliance("expired", "L"))
	fresh := appliance("fresh", "L")
	fresh.ExpirationDate = 1 << 40
	h.seed("ami-fresh", fresh)

	require.NoError(t, h.client.RemoveExpiredAppliances(context.Background()))
	assert.Equal(t, []string{"ami-fresh"}, h.compute.Images())
}

func TestCode(t *testing.T) {
	assert.Equal(t, codes.NotFound, Code(model.KindApplianceNotFound))
	assert.Equal(t, codes.FailedPrecondition, Code(model.KindMultipleAppliancesFound))
	assert.Equal(t, codes.Aborted, Code(model.KindImageImport))
	assert.Equal(t, codes.Aborted, Code(model.KindTimeout))
	assert.Equal(t, codes.Canceled, Code(model.KindCancelled))
	assert.Equal(t, codes.PermissionDenied, Code(model.KindNoBucketPermission))
	assert.Equal(t, codes.Unknown, Code(model.KindBackend))
	assert.Equal(t, codes.Unknown, Code(model.KindImageDownload))
	assert.Equal(t, codes.Unknown, Code(model.KindUnknown))
}

func TestServerCredentials_MissingFiles(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Authentication = true
	cfg.Certificate = "/nonexistent/cert.pem"
	cfg.Key = "/nonexistent/key.pem"

	_, err := ServerCredentials(cfg)
	assert.Equal(t, model.KindInvalidConfiguration, model.KindOf(err))
	_, err = NewGRPCServer(cfg, NewServer(nil), nil)
	assert.Equal(t, model.KindInvalidConfiguration, model.KindOf(err))
}

func TestProtobufCallWithoutSubtype(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.conn.Invoke(ctx, "/cloudkeeper.Communicator/PreAction", &emptypb.Empty{}, &emptypb.Empty{}))

	h.seed("ami-1", appliance("appliance-1", "list-1"))
	desc := &grpc.StreamDesc{StreamName: "Appliances", ServerStreams: true}
	stream, err := h.conn.NewStream(ctx, desc, "/cloudkeeper.Communicator/Appliances")
	require.NoError(t, err)
	require.NoError(t, stream.SendMsg(ImageListIdentifierToProto("list-1")))
	require.NoError(t, stream.CloseSend())

	received := NewApplianceMessage()
	require.NoError(t, stream.RecvMsg(received))
	a := ApplianceFromProto(received)
	assert.Equal(t, "appliance-1", a.Identifier)
	assert.Equal(t, model.ModeRemote, a.Image.Mode)
	assert.Equal(t, io.EOF, stream.RecvMsg(NewApplianceMessage()))
}

func TestJSONSubtype(t *testing.T) {
	h := newHarnessWith(t, []grpc.DialOption{WithJSONEncoding()})
	ctx := context.Background()

	require.NoError(t, h.client.AddAppliance(ctx, appliance("appliance-1", "list-1")))
	lists, err := h.client.ListImageLists(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"list-1"}, lists)

	appliances, err := h.client.ListAppliances(ctx, "list-1")
	require.NoError(t, err)
	require.Len(t, appliances, 1)
	assert.Equal(t, int64(2048), appliances[0].Ram)
}

func TestRequestIdReachesOrchestratorLogs(t *testing.T) {
	hook := test.NewGlobal()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		logrus.SetLevel(level)
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})

	h := newHarness(t)
	require.NoError(t, h.client.AddAppliance(context.Background(), appliance("appliance-1", "list-1")))

	var registered, handled *logrus.Entry
	for _, entry := range hook.AllEntries() {
		switch entry.Message {
		case "appliance registered":
			registered = entry
		case "call handled":
			if entry.Data["method"] == "AddAppliance" {
				handled = entry
			}
		}
	}
	require.NotNil(t, registered, "orchestrator did not log the registration")
	require.NotNil(t, handled, "interceptor did not log the call")
	assert.NotEmpty(t, registered.Data["request"])
	assert.Equal(t, handled.Data["request"], registered.Data["request"])
	assert.Equal(t, "appliance-1", registered.Data["appliance"])
}
