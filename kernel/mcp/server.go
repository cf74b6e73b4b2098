package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/the-cloudkeeper-project/cloudkeeper-aws/kernel/engine"
)

const imageListsURI = "cloudkeeper://image-lists"

// CatalogMCPServer exposes the appliance catalog held in the backend to MCP
// clients over stdio.
type CatalogMCPServer struct {
	server       *server.MCPServer
	orchestrator *engine.Orchestrator
}

func NewCatalogMCPServer(orchestrator *engine.Orchestrator, version string) *CatalogMCPServer {
	srv := server.NewMCPServer(
		"Cloudkeeper AWS",
		version,
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
	)

	cs := &CatalogMCPServer{
		server:       srv,
		orchestrator: orchestrator,
	}

	cs.registerTools()
	cs.registerResources()

	return cs
}

func (cs *CatalogMCPServer) ServeStdio() error {
	return server.ServeStdio(cs.server)
}

func (cs *CatalogMCPServer) registerTools() {
	cs.server.AddTool(mcp.NewTool("list_image_lists",
		mcp.WithDescription("List the image list identifiers registered by this connector"),
	), cs.listImageListsHandler)

	cs.server.AddTool(mcp.NewTool("list_appliances",
		mcp.WithDescription("List the appliances of one image list"),
		mcp.WithString("image_list_id",
			mcp.Description("Image list identifier"),
			mcp.Required(),
		),
	), cs.listAppliancesHandler)

	cs.server.AddTool(mcp.NewTool("remove_expired_appliances",
		mcp.WithDescription("Deregister every appliance whose expiration date has passed"),
	), cs.removeExpiredHandler)
}

func (cs *CatalogMCPServer) registerResources() {
	resource := mcp.NewResource(imageListsURI, "Image Lists",
		mcp.WithResourceDescription("Image list identifiers registered by this connector"),
		mcp.WithMIMEType("application/json"),
	)
	cs.server.AddResource(resource, cs.imageListsHandler)
}

func (cs *CatalogMCPServer) listImageListsHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := cs.orchestrator.ListImageLists(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list image lists: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"count": len(ids), "image_lists": nonNil(ids)})
}

func (cs *CatalogMCPServer) listAppliancesHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	imageListId, err := request.RequireString("image_list_id")
	if err != nil {
		return mcp.NewToolResultError("image_list_id argument is required"), nil
	}
	appliances, err := cs.orchestrator.FetchAppliances(ctx, imageListId)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list appliances: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"count": len(appliances), "appliances": appliances})
}

func (cs *CatalogMCPServer) removeExpiredHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed, err := cs.orchestrator.SweepExpired(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sweep stopped after %d removal(s): %v", len(removed), err)), nil
	}
	ids := make([]string, 0, len(removed))
	for _, a := range removed {
		ids = append(ids, a.Identifier)
	}
	return jsonResult(map[string]interface{}{"removed": ids})
}

func (cs *CatalogMCPServer) imageListsHandler(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	ids, err := cs.orchestrator.ListImageLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list image lists: %w", err)
	}
	data, err := json.Marshal(nonNil(ids))
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      imageListsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
