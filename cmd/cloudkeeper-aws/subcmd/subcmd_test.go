package subcmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/cloud"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/download"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/engine"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/model"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/rpc"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/tags"
)

func writeTempYaml(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloudkeeper-aws.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// settingsCommand returns a command that captures the loaded settings.
func settingsCommand(cfg **model.Config) *cobra.Command {
	settings := &settingsFlags{}
	cmd := &cobra.Command{
		Use: "settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := settings.load(cmd)
			*cfg = loaded
			return err
		},
	}
	settings.bind(cmd)
	return cmd
}

// startConnector serves a memory-backed connector seeded with appliances and
// returns its address.
func startConnector(t *testing.T, appliances ...*model.Appliance) string {
	t.Helper()
	cfg := model.DefaultConfig()
	compute := cloud.NewMemoryCompute()
	codec := tags.NewCodec(cfg.Identifier)
	for i, a := range appliances {
		compute.SeedImage("ami-"+string(rune('a'+i)), codec.Encode(a))
	}
	gateway, err := cloud.NewGateway(context.Background(), cloud.NewMemoryObjectStore(cfg.BucketName), compute, cfg)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	orchestrator := engine.New(gateway, codec, download.New(nil, download.DefaultRedirectLimit))
	gs, err := rpc.NewGRPCServer(cfg, rpc.NewServer(orchestrator), nil)
	if err != nil {
		t.Fatalf("grpc server: %v", err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)
	return lis.Addr().String()
}

func TestVersionCommand(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewVersionCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if got := out.String(); got != "cloudkeeper-aws "+Version+"\n" {
		t.Errorf("unexpected version output %q", got)
	}
}

func TestSettings_FlagsOverrideFile(t *testing.T) {
	path := writeTempYaml(t, `
bucket-name: bucket-from-file
identifier: owner-from-file
polling-interval: 3
aws:
  region: us-east-1
`)

	var cfg *model.Config
	cmd := settingsCommand(&cfg)
	cmd.SetArgs([]string{"--config", path, "--identifier", "owner-from-flag", "--polling-timeout", "60"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings failed: %v", err)
	}
	if cfg.BucketName != "bucket-from-file" {
		t.Errorf("expected bucket from file, got %s", cfg.BucketName)
	}
	if cfg.Identifier != "owner-from-flag" {
		t.Errorf("expected identifier from flag, got %s", cfg.Identifier)
	}
	if cfg.PollingInterval != 3 || cfg.PollingTimeout != 60 {
		t.Errorf("unexpected polling settings %d/%d", cfg.PollingInterval, cfg.PollingTimeout)
	}
	if cfg.Aws.Region != "us-east-1" {
		t.Errorf("flag default must not override file region, got %s", cfg.Aws.Region)
	}
}

func TestSettings_InvalidPath(t *testing.T) {
	var cfg *model.Config
	cmd := settingsCommand(&cfg)
	cmd.SetArgs([]string{"--config", "/nonexistent/cloudkeeper-aws.yml"})

	if err := cmd.Execute(); model.KindOf(err) != model.KindInvalidConfiguration {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
}

func TestSettings_AuthenticationWithoutCertificates(t *testing.T) {
	var cfg *model.Config
	cmd := settingsCommand(&cfg)
	cmd.SetArgs([]string{"--authentication"})

	err := cmd.Execute()
	if model.KindOf(err) != model.KindInvalidConfiguration {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "core-certificate") {
		t.Errorf("expected missing core-certificate to be named, got %v", err)
	}
}

func TestImageListsCommand(t *testing.T) {
	addr := startConnector(t,
		&model.Appliance{Identifier: "appliance-1", ImageListIdentifier: "list-1"},
		&model.Appliance{Identifier: "appliance-2", ImageListIdentifier: "list-2"},
	)

	out := &bytes.Buffer{}
	cmd := NewImageListsCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--listen-address", addr, "--timeout", "5s"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("image-lists command failed: %v", err)
	}
	for _, id := range []string{"list-1", "list-2"} {
		if !strings.Contains(out.String(), id) {
			t.Errorf("expected %s in output:\n%s", id, out.String())
		}
	}
}

func TestAppliancesCommand(t *testing.T) {
	addr := startConnector(t,
		&model.Appliance{Identifier: "appliance-1", Title: "first", ImageListIdentifier: "list-1",
			Image: &model.Image{Mode: model.ModeRemote, Format: model.FormatQcow2, Size: 2048}},
		&model.Appliance{Identifier: "appliance-2", ImageListIdentifier: "list-2"},
	)

	out := &bytes.Buffer{}
	cmd := NewAppliancesCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--listen-address", addr, "--image-list", "list-1"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("appliances command failed: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "appliance-1") || !strings.Contains(output, "QCOW2") || !strings.Contains(output, "2.0 kB") {
		t.Errorf("expected appliance-1 row in output:\n%s", output)
	}
	if strings.Contains(output, "appliance-2") {
		t.Errorf("appliance of another image list listed:\n%s", output)
	}
}

func TestAppliancesCommand_RequiresImageList(t *testing.T) {
	cmd := NewAppliancesCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --image-list")
	}
}

func TestSweepCommand_Memory(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewSweepCommand()
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--memory"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("sweep command failed: %v", err)
	}
	if !strings.Contains(strings.ToUpper(out.String()), "IDENTIFIER") {
		t.Errorf("expected table header in output:\n%s", out.String())
	}
}

func TestSyncCommand_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewSyncCommand()
	cmd.SetArgs([]string{"--memory", "--listen-address", "127.0.0.1:0", "--metrics-address", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sync command failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("sync command did not shut down")
	}
}

func TestSyncCommand_InvalidSettings(t *testing.T) {
	cmd := NewSyncCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--memory", "--polling-timeout", "0"})

	if err := cmd.Execute(); model.KindOf(err) != model.KindInvalidConfiguration {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"sync", "version", "image-lists", "appliances", "sweep", "mcp-server"} {
		if cmd, _, err := RootCmd.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
