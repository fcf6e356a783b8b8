// Package server wires all MCP components and creates the server instance.
//
// This is the composition root for "specify serve": it creates the tools,
// prompts and resources and injects the shared project dependencies.
// No business logic lives here, only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HendryAvila/speckit/internal/logging"
	"github.com/HendryAvila/speckit/internal/prompts"
	"github.com/HendryAvila/speckit/internal/resources"
	"github.com/HendryAvila/speckit/internal/tools"
	"github.com/HendryAvila/speckit/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the shared dependencies of every handler.
type Deps struct {
	// Root is the project root all tools operate on.
	Root         string
	Orchestrator *workflow.Orchestrator
	Logger       *zap.Logger
	// History is optional; specify_history is only offered when set.
	History tools.EventLister
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered.
func New(d Deps) *server.MCPServer {
	logger := logging.OrNop(d.Logger)

	s := server.NewMCPServer(
		"specify",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	checkTool := tools.NewCheckTool(d.Root, logger)
	s.AddTool(checkTool.Definition(), checkTool.Handle)

	classifyTool := tools.NewClassifyTool(d.Orchestrator)
	s.AddTool(classifyTool.Definition(), classifyTool.Handle)

	statusTool := tools.NewWorkflowStatusTool(d.Orchestrator)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	advanceTool := tools.NewWorkflowAdvanceTool(d.Orchestrator)
	s.AddTool(advanceTool.Definition(), advanceTool.Handle)

	featureTool := tools.NewFeatureCreateTool(d.Root, d.Orchestrator)
	s.AddTool(featureTool.Definition(), featureTool.Handle)

	if d.History != nil {
		historyTool := tools.NewHistoryTool(d.History, d.Root)
		s.AddTool(historyTool.Definition(), historyTool.Handle)
	}

	// --- Register prompts ---

	featurePrompt := prompts.NewFeaturePrompt()
	s.AddPrompt(featurePrompt.Definition(), featurePrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(d.Orchestrator)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	logger.Debug("mcp server configured", zap.String("root", d.Root), zap.String("version", Version))
	return s
}

// serverInstructions returns the system instructions that tell the AI
// how to use the specify tools.
func serverInstructions() string {
	return `You have access to specify, a spec-driven development toolkit for this project.

## How features move

Every feature lives in specs/NNN-slug/ and walks these phases in order:

  initialized -> spec_created -> clarified -> planned -> tasks_generated -> implementing -> done

specify_workflow_advance refuses to mark a phase while an earlier one is
incomplete and tells you what is missing. Do the missing work instead of
retrying. Pass override=true ONLY when the user explicitly asks to skip ahead;
forced phases are recorded.

## Tools

- specify_feature_create: start a feature from the user's description
- specify_classify: score complexity; HIGH means research before planning
  (then advance research_complete)
- specify_workflow_status: phases, complexity and suggested next actions
- specify_workflow_advance: mark a phase complete once its artifact exists
- specify_check: validate layout, file naming and artifact metadata
- specify_history: recent installs, transitions and classifications (when
  the history journal is enabled)

## Rules

1. Write the artifact (spec.md, plan.md, tasks.md) BEFORE advancing its phase.
2. Run specify_check after writing an artifact and fix ERROR findings.
   Findings are advisory: WARN lines may stay if the user agrees.
3. Never edit files under .specify/state/ by hand; use the tools.
4. Follow the suggestions from specify_workflow_status unless the user
   decides otherwise.`
}
