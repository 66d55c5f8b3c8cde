package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goblinsan/ado-report/pkg/engine"
	"github.com/goblinsan/ado-report/pkg/report"
	"github.com/goblinsan/ado-report/pkg/web"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

// toolset exposes a session as MCP tools. Every report tool refreshes first
// when there is no snapshot yet.
type toolset struct {
	svc web.Service
	loc *time.Location
	now func() time.Time
}

func newToolset(svc web.Service, loc *time.Location) *toolset {
	if loc == nil {
		loc = time.UTC
	}
	return &toolset{svc: svc, loc: loc, now: time.Now}
}

func (t *toolset) tools() []server.ServerTool {
	visibility := []mcp.ToolOption{
		mcp.WithBoolean("show_new", mcp.Description("Include new items (default true)")),
		mcp.WithBoolean("show_resolved", mcp.Description("Include resolved items (default false)")),
	}
	idArg := mcp.WithNumber("id", mcp.Required(), mcp.Description("Work item id"))

	return []server.ServerTool{
		{
			Tool: mcp.NewTool("refresh",
				mcp.WithDescription("Pull the work item hierarchy again and return the fetch summary."),
			),
			Handler: t.refresh,
		},
		{
			Tool: mcp.NewTool("state_distribution",
				mcp.WithDescription("Count the root items per workflow state."),
			),
			Handler: t.states,
		},
		{
			Tool: mcp.NewTool("overview",
				append([]mcp.ToolOption{
					mcp.WithDescription("Assignment coverage, assignee by board column matrix, client and type breakdowns and age rankings of the open items."),
				}, visibility...)...,
			),
			Handler: t.overview,
		},
		{
			Tool: mcp.NewTool("budget",
				mcp.WithDescription("Hours logged per client in a month against the client's budget. Over budget clients first."),
				mcp.WithNumber("year", mcp.Description("Year, default current")),
				mcp.WithNumber("month", mcp.Description("Month 1-12, default current")),
				mcp.WithString("search", mcp.Description("Only clients containing this text")),
				mcp.WithBoolean("over_only", mcp.Description("Only clients over budget")),
			),
			Handler: t.budget,
		},
		{
			Tool: mcp.NewTool("tickets",
				append([]mcp.ToolOption{
					mcp.WithDescription("Filtered, ordered and paged list of root items."),
					mcp.WithString("search", mcp.Description("Match the title or the id")),
					mcp.WithString("client", mcp.Description("Only this client, or \"all\"")),
					mcp.WithString("assignee", mcp.Description("Only this assignee, or \"all\"")),
					mcp.WithString("column", mcp.Description("Only this board column, or \"all\"")),
					mcp.WithString("sort", mcp.Description("updated, priority, id or title")),
					mcp.WithNumber("page", mcp.Description("Page, default 1")),
					mcp.WithNumber("per_page", mcp.Description("Tickets per page, default 10")),
				}, visibility...)...,
			),
			Handler: t.tickets,
		},
		{
			Tool: mcp.NewTool("comments",
				mcp.WithDescription("The discussion of a work item."),
				idArg,
			),
			Handler: t.comments,
		},
		{
			Tool: mcp.NewTool("related_bugs",
				mcp.WithDescription("Bugs linked to a work item through related links."),
				idArg,
			),
			Handler: t.bugs,
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *toolset) snapshot(ctx context.Context) (*engine.Snapshot, error) {
	if snap := t.svc.Snapshot(); snap != nil {
		return snap, nil
	}
	return t.svc.Refresh(ctx)
}

func (t *toolset) refresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.svc.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return mcp.NewToolResultText(snap.Stats.String()), nil
}

func (t *toolset) states(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return jsonResult(report.StateDistribution(snap.Roots))
}

func toolVisibility(req mcp.CallToolRequest) report.Visibility {
	def := report.DefaultVisibility()
	return report.Visibility{
		ShowNew:      req.GetBool("show_new", def.ShowNew),
		ShowResolved: req.GetBool("show_resolved", def.ShowResolved),
	}
}

func (t *toolset) overview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := t.snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return jsonResult(report.Build(snap.Roots, report.Options{Visibility: toolVisibility(req), Now: t.now()}))
}

func (t *toolset) budget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := period(req.GetInt("year", 0), req.GetInt("month", 0), t.now(), t.loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := t.snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return jsonResult(budgetReport(snap, p, req.GetString("search", ""), req.GetBool("over_only", false)))
}

func (t *toolset) tickets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := report.TicketQuery{
		Text:       req.GetString("search", ""),
		Client:     req.GetString("client", report.All),
		Assignee:   req.GetString("assignee", report.All),
		Column:     req.GetString("column", report.All),
		Visibility: toolVisibility(req),
		Sort:       report.SortBy(req.GetString("sort", string(report.SortUpdated))),
		Page:       req.GetInt("page", 1),
		PerPage:    req.GetInt("per_page", report.DefaultPerPage),
	}
	snap, err := t.snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("refresh failed: %v", err)), nil
	}
	return jsonResult(report.Tickets(snap.Roots, q))
}

func (t *toolset) comments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comments, err := t.svc.Comments(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get comments of %d: %v", id, err)), nil
	}
	return jsonResult(comments)
}

func (t *toolset) bugs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bugs, err := t.svc.RelatedBugs(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get bugs of %d: %v", id, err)), nil
	}
	return jsonResult(bugs)
}

func newMCPServer(t *toolset) *server.MCPServer {
	s := server.NewMCPServer(
		"ado-report",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTools(t.tools()...)
	return s
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server over stdio",
	Long:  `Run the MCP server to allow AI agents (Claude, Gemini, etc.) to query the reports via the Model Context Protocol over stdin/stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return server.ServeStdio(newMCPServer(newToolset(a, a.cfg.Location())))
	},
}
