package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcoach/internal/coach"
	"github.com/claude/repcoach/internal/pose"
	"github.com/claude/repcoach/internal/reps"
)

var promptFormFeedback = mcp.NewPrompt("form_feedback",
	mcp.WithPromptDescription("Ask for short coaching feedback on measured joint angles."),
	mcp.WithArgument("exercise",
		mcp.ArgumentDescription("PUSH_UP or SQUAT"),
		mcp.RequiredArgument(),
	),
	mcp.WithArgument("angles",
		mcp.ArgumentDescription("Comma-separated joint angles in degrees, e.g. \"Elbow=92, Hip=170\""),
		mcp.RequiredArgument(),
	),
)

func (h *handlers) formFeedback(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	w, err := reps.ParseWorkout(req.Params.Arguments["exercise"])
	if err != nil {
		return nil, err
	}
	angles, err := parseAngles(req.Params.Arguments["angles"])
	if err != nil {
		return nil, err
	}

	return mcp.NewGetPromptResult(
		"Form feedback for a "+w.DisplayName()+" frame",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(coach.Prompt(w, angles))),
		},
	), nil
}

// parseAngles reads "Name=degrees" pairs separated by commas.
func parseAngles(s string) ([]pose.JointAngle, error) {
	var angles []pose.JointAngle
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("angle %q: expected Name=degrees", part)
		}
		deg, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("angle %q: %w", part, err)
		}
		angles = append(angles, pose.JointAngle{Name: strings.TrimSpace(name), Degrees: deg})
	}
	if len(angles) == 0 {
		return nil, fmt.Errorf("no angles given")
	}
	return angles, nil
}
