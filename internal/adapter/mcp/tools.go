package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/quietloop/ai-intervention-agent/internal/domain"
	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
)

// registerTools registers the single interactive_feedback tool on the
// server. This is the only operation the RPC surface exposes, per §6.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(s.interactiveFeedbackTool())
}

func (s *Server) interactiveFeedbackTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("interactive_feedback",
		mcplib.WithDescription("Block until a human responds to a prompt, or until the request times out and a canned reply is synthesized."),
		mcplib.WithString("prompt",
			mcplib.Required(),
			mcplib.Description("The question or status update to show the human. Must be non-empty."),
		),
		mcplib.WithArray("predefined_options",
			mcplib.Description("Optional short strings the human can pick from instead of typing."),
		),
		mcplib.WithNumber("auto_resubmit_timeout",
			mcplib.Description("Seconds before this call auto-resubmits a canned reply if nobody responds. Zero uses the server's configured default."),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleInteractiveFeedback,
	}
}

func (s *Server) handleInteractiveFeedback(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Feedback == nil {
		return mcplib.NewToolResultError("feedback service not configured"), nil
	}

	args := req.GetArguments()

	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return mcplib.NewToolResultError("prompt is required"), nil
	}

	var options []string
	if raw, ok := args["predefined_options"].([]any); ok {
		for _, v := range raw {
			if str, ok := v.(string); ok {
				options = append(options, str)
			}
		}
	}

	var timeout time.Duration
	if raw, ok := args["auto_resubmit_timeout"].(float64); ok && raw > 0 {
		timeout = time.Duration(raw) * time.Second
	}

	result, err := s.deps.Feedback.RequestFeedback(ctx, prompt, options, timeout)
	if err != nil {
		if errors.Is(err, domain.ErrInvalid) {
			return mcplib.NewToolResultError(err.Error()), nil
		}
		return mcplib.NewToolResultErrorFromErr("interactive_feedback failed", err), nil
	}

	return toolResultFromTaskResult(result), nil
}

// toolResultFromTaskResult normalizes a task result into the RPC wire
// format of §6: a sequence of text and image content blocks, possibly
// empty when the human submitted neither text nor images.
func toolResultFromTaskResult(result *task.Result) *mcplib.CallToolResult {
	var content []mcplib.Content
	if text := replyText(result); text != "" {
		content = append(content, mcplib.TextContent{Type: "text", Text: text})
	}
	for _, img := range result.Images {
		content = append(content, mcplib.ImageContent{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(img.Bytes),
			MIMEType: img.Mime,
		})
	}
	return &mcplib.CallToolResult{Content: content}
}

// replyText folds the selected options and the free-text response into the
// single text block the reply carries, in that order, so a submission of
// both never silently drops the selection. Matches §6's normalized form:
// "Selected options: a, b\n\nUser input: ...".
func replyText(result *task.Result) string {
	var parts []string
	if len(result.SelectedOptions) > 0 {
		parts = append(parts, "Selected options: "+strings.Join(result.SelectedOptions, ", "))
	}
	if result.Text != "" {
		parts = append(parts, "User input: "+result.Text)
	}
	return strings.Join(parts, "\n\n")
}
