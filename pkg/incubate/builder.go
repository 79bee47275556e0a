package incubate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vesselworks/vesselctl/pkg/models"
)

// Model identifiers accepted by the execution endpoint. ModelCustom is a
// sentinel: the builder substitutes the caller's custom model string.
const (
	ModelHaiku  = "haiku"
	ModelSonnet = "sonnet"
	ModelOpus   = "opus"
	ModelCustom = "custom"

	DefaultModel = ModelSonnet
)

// Permission modes. The default mode is never transmitted; any other
// mode is sent together with the dangerous-bypass flag it implies.
const (
	PermissionModeDefault     = "default"
	PermissionModeAcceptEdits = "acceptEdits"
	PermissionModePlan        = "plan"
	PermissionModeBypass      = "bypassPermissions"
)

const idempotencyPrefix = "incubate"

// RawOptions carries the raw, possibly free-form option values supplied
// by the caller before normalization into a JobRequest.
type RawOptions struct {
	Message         string
	Model           string
	CustomModel     string
	SystemPrompt    string
	MaxTurns        int
	OutputFormat    any // JSON-encoded string or already-decoded object
	Tools           string
	AllowedTools    string
	DisallowedTools string
	PermissionMode  string
	TTL             int
	CallbackURL     string
	CallbackSecret  string
	IdempotencyKey  string
	Token           string
}

// BuildRequest normalizes raw option values into a canonical JobRequest.
// Malformed tool lists and output formats degrade gracefully rather
// than failing the submission.
func BuildRequest(opts RawOptions) (*models.JobRequest, error) {
	if strings.TrimSpace(opts.Message) == "" {
		return nil, &ValidationError{Field: "message", Reason: "must not be empty"}
	}

	req := &models.JobRequest{
		Message:        opts.Message,
		IdempotencyKey: opts.IdempotencyKey,
		Options: models.RequestOptions{
			Token: opts.Token,
			Model: resolveModel(opts.Model, opts.CustomModel),
		},
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = NewIdempotencyKey()
	}

	if opts.SystemPrompt != "" {
		req.Options.SystemPrompt = opts.SystemPrompt
	}
	if opts.MaxTurns > 0 {
		req.Options.MaxTurns = opts.MaxTurns
	}
	if opts.TTL > 0 {
		req.TTL = opts.TTL
	}

	if tools := ParseToolList(opts.Tools); tools.Kind != ToolListInvalid {
		req.Options.Tools = tools.Names
	}
	if allowed := splitCSV(opts.AllowedTools); len(allowed) > 0 {
		req.Options.AllowedTools = allowed
	}
	if disallowed := splitCSV(opts.DisallowedTools); len(disallowed) > 0 {
		req.Options.DisallowedTools = disallowed
	}

	req.Options.OutputFormat = parseOutputFormat(opts.OutputFormat)

	if opts.PermissionMode != "" && opts.PermissionMode != PermissionModeDefault {
		req.Options.PermissionMode = opts.PermissionMode
		req.Options.AllowDangerouslySkipPermissions = opts.PermissionMode == PermissionModeBypass
	}

	if opts.CallbackURL != "" {
		req.Callback = &models.Callback{
			URL:    opts.CallbackURL,
			Secret: opts.CallbackSecret,
		}
	}

	return req, nil
}

// NewIdempotencyKey synthesizes a key from a fixed prefix, the current
// time, and a random component. Unique with overwhelming probability
// across concurrent submissions from the same process.
func NewIdempotencyKey() string {
	return fmt.Sprintf("%s-%d-%s", idempotencyPrefix, time.Now().UnixMilli(), uuid.NewString())
}

func resolveModel(model, customModel string) string {
	switch {
	case model == ModelCustom && customModel != "":
		return customModel
	case model != "" && model != ModelCustom:
		return model
	default:
		return DefaultModel
	}
}

// ToolListKind tags how a free-form tool-list string was interpreted
type ToolListKind int

const (
	ToolListInvalid ToolListKind = iota
	ToolListJSON
	ToolListCSV
)

// ToolList is the tagged result of parsing a free-form tool-list string
type ToolList struct {
	Kind  ToolListKind
	Names []string
}

// ParseToolList interprets a string that may be a machine-generated JSON
// array or a human-typed comma list. JSON wins; anything that is not a
// JSON array of strings falls back to comma splitting.
func ParseToolList(raw string) ToolList {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ToolList{Kind: ToolListInvalid}
	}

	var names []string
	if err := json.Unmarshal([]byte(trimmed), &names); err == nil {
		return ToolList{Kind: ToolListJSON, Names: names}
	}

	if names = splitCSV(raw); len(names) > 0 {
		return ToolList{Kind: ToolListCSV, Names: names}
	}
	return ToolList{Kind: ToolListInvalid}
}

// parseOutputFormat accepts an already-structured schema object or a
// JSON-encoded string. Invalid JSON means schema enforcement is simply
// not requested; it never fails the submission.
func parseOutputFormat(value any) *models.Format {
	var schema map[string]any

	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		schema = v
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(v), &schema); err != nil {
			return nil
		}
	default:
		return nil
	}

	if len(schema) == 0 {
		return nil
	}
	return &models.Format{Type: "json_schema", Schema: schema}
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
