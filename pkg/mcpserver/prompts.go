package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openfolio/openfolio/pkg/models"
)

// promptArgument describes one argument of a prompt.
type promptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// promptDescriptor is one entry in the prompts/list result.
type promptDescriptor struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []promptArgument `json:"arguments,omitempty"`
}

// promptMessage is one message in a prompts/get result.
type promptMessage struct {
	Role    string         `json:"role"`
	Content map[string]any `json:"content"`
}

func textMessage(role, text string) promptMessage {
	return promptMessage{Role: role, Content: map[string]any{"type": "text", "text": text}}
}

var promptCatalog = []promptDescriptor{
	{
		Name:        "summarize_portfolio",
		Description: "Summarize the whole portfolio for a given audience.",
		Arguments: []promptArgument{
			{Name: "audience", Description: "One of recruiter, technical, general.", Required: false},
		},
	},
	{
		Name:        "explain_project",
		Description: "Explain a single project at a chosen level of detail.",
		Arguments: []promptArgument{
			{Name: "slug", Description: "Slug of the project to explain.", Required: true},
			{Name: "depth", Description: "One of overview, detailed, deep-dive.", Required: false},
		},
	},
	{
		Name:        "compare_skills",
		Description: "Compare the portfolio's skills against a requirement list.",
		Arguments: []promptArgument{
			{Name: "requiredSkills", Description: "Comma-separated required skills.", Required: true},
			{Name: "niceToHave", Description: "Comma-separated nice-to-have skills.", Required: false},
		},
	},
}

func (e *Engine) handlePromptsList(req *Request) *Response {
	return newResult(req.ID, map[string]any{"prompts": promptCatalog})
}

type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (e *Engine) handlePromptsGet(ctx context.Context, req *Request) *Response {
	var params promptGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return newError(req.ID, CodeInvalidParams, "invalid prompt parameters")
	}

	switch params.Name {
	case "summarize_portfolio":
		return e.summarizePortfolioPrompt(req.ID, params.Arguments)
	case "explain_project":
		return e.explainProjectPrompt(ctx, req.ID, params.Arguments)
	case "compare_skills":
		return e.compareSkillsPrompt(req.ID, params.Arguments)
	default:
		return newError(req.ID, CodeMethodNotFound, "unknown prompt: "+params.Name)
	}
}

func (e *Engine) summarizePortfolioPrompt(id json.RawMessage, args map[string]string) *Response {
	audience := args["audience"]
	if audience == "" {
		audience = "general"
	}
	switch audience {
	case "recruiter", "technical", "general":
	default:
		return newError(id, CodeValidationFailed, "audience must be recruiter, technical, or general")
	}

	angle := map[string]string{
		"recruiter": "Focus on roles, impact, and career progression.",
		"technical": "Focus on architecture decisions, technology depth, and engineering tradeoffs.",
		"general":   "Keep it approachable and free of jargon.",
	}[audience]

	text := fmt.Sprintf(
		"Read the full portfolio via the portfolio://content resource and write a concise summary for a %s audience. %s",
		audience, angle)
	return newResult(id, map[string]any{
		"description": "Summarize the portfolio for a " + audience + " audience.",
		"messages":    []promptMessage{textMessage("user", text)},
	})
}

func (e *Engine) explainProjectPrompt(ctx context.Context, id json.RawMessage, args map[string]string) *Response {
	slug := args["slug"]
	if slug == "" {
		return newError(id, CodeValidationFailed, "slug is required")
	}
	depth := args["depth"]
	if depth == "" {
		depth = "overview"
	}
	switch depth {
	case "overview", "detailed", "deep-dive":
	default:
		return newError(id, CodeValidationFailed, "depth must be overview, detailed, or deep-dive")
	}

	item, err := e.store.FindBySlug(ctx, models.ContentTypeProject, slug)
	if err != nil {
		return e.toolError(id, "explain_project", err)
	}
	if item.Status != models.ContentStatusPublished {
		return newError(id, CodeResourceNotFound, "resource not found")
	}

	text := fmt.Sprintf(
		"Explain the project %q at %s depth. Project data:\n%s",
		slug, depth, string(item.Data))
	return newResult(id, map[string]any{
		"description": fmt.Sprintf("Explain project %q (%s).", slug, depth),
		"messages":    []promptMessage{textMessage("user", text)},
	})
}

func (e *Engine) compareSkillsPrompt(id json.RawMessage, args map[string]string) *Response {
	required := splitSkills(args["requiredSkills"])
	if len(required) == 0 {
		return newError(id, CodeValidationFailed, "requiredSkills is required")
	}
	niceToHave := splitSkills(args["niceToHave"])

	text := "Read the skill content via the portfolio://content/skill resource and compare it against these requirements.\n" +
		"Required: " + strings.Join(required, ", ")
	if len(niceToHave) > 0 {
		text += "\nNice to have: " + strings.Join(niceToHave, ", ")
	}
	text += "\nReport matches, gaps, and adjacent experience that partially covers a gap."

	return newResult(id, map[string]any{
		"description": "Compare portfolio skills against a requirement list.",
		"messages":    []promptMessage{textMessage("user", text)},
	})
}

func splitSkills(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
