// Package mcptools exposes the component registry to agents as MCP tools:
// list, load, create, update and delete screens, plus variant helpers.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/designforge/mimicry/internal/errors"
	"github.com/designforge/mimicry/internal/logging"
	"github.com/designforge/mimicry/internal/registry"
	"github.com/designforge/mimicry/internal/resolver"
	"github.com/designforge/mimicry/internal/types"
	"github.com/designforge/mimicry/internal/version"
)

// promptPreview is how much of a prompt list_screens returns.
const promptPreview = 100

// Tools serves registry operations over MCP.
type Tools struct {
	store   registry.Store
	baseURL string
	logger  logging.Logger
}

// New creates the tool set. baseURL prefixes preview paths in results,
// e.g. "http://localhost:3000".
func New(store registry.Store, baseURL string, logger logging.Logger) *Tools {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tools{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.WithComponent("mcp"),
	}
}

// NewServer returns an MCP server with every tool registered.
func (t *Tools) NewServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.GetVersion()}, nil)
	t.Register(srv)
	return srv
}

// Serve runs the MCP server over stdio until ctx is done or the client
// disconnects.
func (t *Tools) Serve(ctx context.Context) error {
	return t.NewServer().Run(ctx, &mcp.StdioTransport{})
}

// Register adds the screen tools to srv.
func (t *Tools) Register(srv *mcp.Server) {
	addTool(srv, t.logger, &mcp.Tool{
		Name:        "list_screens",
		Description: "List all generated screens with their ids, names, filenames and creation times. Use before loading or modifying a screen.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(ctx context.Context, _ *struct{}) (any, error) {
		return t.listScreens(ctx)
	})

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "load_screen",
		Description: "Load the code of an existing screen. Always call this before modifying a screen.",
		InputSchema: inputSchema(map[string]any{
			"screen_id":   map[string]any{"type": "string", "description": "Screen id (preferred)"},
			"screen_name": map[string]any{"type": "string", "description": "Screen name, used when no id is given"},
		}, nil),
	}, t.loadScreen)

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "create_screen",
		Description: "Create a new screen. For changes to an existing screen use load_screen and update_screen instead.",
		InputSchema: inputSchema(map[string]any{
			"name":        map[string]any{"type": "string", "description": "Screen name; becomes the file name"},
			"code":        map[string]any{"type": "string", "description": "Complete React + Tailwind source"},
			"description": map[string]any{"type": "string", "description": "What the screen does"},
		}, []string{"name", "code"}),
	}, t.createScreen)

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "update_screen",
		Description: "Replace the code of an existing screen. The screen keeps its id and file.",
		InputSchema: inputSchema(map[string]any{
			"screen_id":          map[string]any{"type": "string", "description": "Id from load_screen"},
			"new_code":           map[string]any{"type": "string", "description": "Complete updated source"},
			"change_description": map[string]any{"type": "string", "description": "What changed"},
		}, []string{"screen_id", "new_code"}),
	}, t.updateScreen)

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "delete_screen",
		Description: "Delete a screen and its source file.",
		InputSchema: inputSchema(map[string]any{
			"screen_id": map[string]any{"type": "string", "description": "Id of the screen to delete"},
		}, []string{"screen_id"}),
	}, t.deleteScreen)

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "create_screen_variant",
		Description: "Copy a screen into a new variant named <Original>_<variant_name> so it can be changed without touching the original.",
		InputSchema: inputSchema(map[string]any{
			"source_screen_id": map[string]any{"type": "string", "description": "Id of the screen to copy"},
			"variant_name":     map[string]any{"type": "string", "description": "Variant suffix, e.g. Wizard or Compact"},
			"modifications":    map[string]any{"type": "string", "description": "What makes the variant different"},
		}, []string{"source_screen_id", "variant_name"}),
	}, t.createVariant)

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "list_screen_variants",
		Description: "List the variants of a screen, i.e. screens named <base_name>_<suffix>.",
		InputSchema: inputSchema(map[string]any{
			"base_name": map[string]any{"type": "string", "description": "Base screen name"},
		}, []string{"base_name"}),
	}, t.listVariants)

	addTool(srv, t.logger, &mcp.Tool{
		Name:        "compare_screen_variants",
		Description: "Load the code of 2 to 4 screens for side-by-side comparison.",
		InputSchema: inputSchema(map[string]any{
			"screen_ids": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		}, []string{"screen_ids"}),
	}, t.compareScreens)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// addTool registers a handler taking decoded arguments of type T. Handler
// errors are returned as tool errors, not protocol errors, so the agent
// sees the reason.
func addTool[T any](srv *mcp.Server, logger logging.Logger, tool *mcp.Tool, handler func(context.Context, *T) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args T
		if raw := req.Params.Arguments; len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		out, err := handler(ctx, &args)
		if err != nil {
			logger.Debug(ctx, "Tool failed", "tool", tool.Name, "error", err.Error())
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("%s", errors.Reason(err)))
			return &res, nil
		}

		data, err := json.Marshal(out)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// Screen is the metadata returned for one component.
type Screen struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
	Prompt    string    `json:"prompt,omitempty"`
}

func screenOf(e types.ComponentEntry) Screen {
	return Screen{ID: e.ID, Name: e.Name, Filename: e.Filename, CreatedAt: e.CreatedAt}
}

// ListResult is returned by list_screens.
type ListResult struct {
	Screens []Screen `json:"screens"`
	Count   int      `json:"count"`
}

func (t *Tools) listScreens(ctx context.Context) (*ListResult, error) {
	reg, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	screens := make([]Screen, 0, len(reg.Components))
	for _, c := range reg.Components {
		s := screenOf(c)
		s.Prompt = truncate(c.Prompt, promptPreview)
		screens = append(screens, s)
	}
	return &ListResult{Screens: screens, Count: len(screens)}, nil
}

type loadArgs struct {
	ScreenID   string `json:"screen_id"`
	ScreenName string `json:"screen_name"`
}

// LoadResult is returned by load_screen.
type LoadResult struct {
	Screen Screen `json:"screen"`
	Code   string `json:"code"`
}

func (t *Tools) loadScreen(ctx context.Context, args *loadArgs) (any, error) {
	if args.ScreenID == "" && args.ScreenName == "" {
		return nil, errors.NewValidationError("SCREEN_REQUIRED", "either screen_id or screen_name must be provided")
	}
	entry, err := t.find(ctx, args.ScreenID, args.ScreenName)
	if err != nil {
		return nil, err
	}
	code, err := t.store.ReadSource(ctx, entry.Filename)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Screen: screenOf(*entry), Code: code}, nil
}

// find looks a screen up by exact id, then by name or "<name>.tsx".
func (t *Tools) find(ctx context.Context, id, name string) (*types.ComponentEntry, error) {
	reg, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if id != "" {
		if entry, ok := reg.Find(id); ok {
			return entry, nil
		}
	}
	if name != "" {
		for i := range reg.Components {
			c := &reg.Components[i]
			if c.Name == name || c.Filename == name+registry.SourceExt {
				return c, nil
			}
		}
	}

	names := make([]string, 0, len(reg.Components))
	for _, c := range reg.Components {
		names = append(names, c.Name)
	}
	key := id
	if key == "" {
		key = name
	}
	return nil, errors.NewNotFoundError("SCREEN_NOT_FOUND",
		fmt.Sprintf("screen not found: %s (available: %s)", key, strings.Join(names, ", ")))
}

type createArgs struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// WriteResult is returned by create_screen and update_screen.
type WriteResult struct {
	Screen     Screen `json:"screen"`
	PreviewURL string `json:"preview_url"`
	FilePath   string `json:"file_path"`
	Code       string `json:"code,omitempty"`
}

func (t *Tools) createScreen(ctx context.Context, args *createArgs) (any, error) {
	return t.create(ctx, args.Name, args.Code, args.Description)
}

func (t *Tools) create(ctx context.Context, name, code, description string) (*WriteResult, error) {
	entry, err := t.store.Create(ctx, types.NewComponent{Name: name, Code: code, Prompt: description})
	if err != nil {
		return nil, err
	}
	t.logger.Info(ctx, "Screen created", "id", entry.ID, "name", entry.Name)
	return t.writeResult(entry, ""), nil
}

type updateArgs struct {
	ScreenID          string `json:"screen_id"`
	NewCode           string `json:"new_code"`
	ChangeDescription string `json:"change_description"`
}

func (t *Tools) updateScreen(ctx context.Context, args *updateArgs) (any, error) {
	if args.ScreenID == "" {
		return nil, errors.NewValidationError("SCREEN_REQUIRED", "screen_id is required")
	}
	if args.NewCode == "" {
		return nil, errors.NewValidationError("CODE_REQUIRED", "new_code is required")
	}

	patch := types.ComponentPatch{Code: &args.NewCode}
	if args.ChangeDescription != "" {
		patch.Prompt = &args.ChangeDescription
	}
	entry, err := t.store.Update(ctx, args.ScreenID, patch)
	if err != nil {
		return nil, err
	}
	t.logger.Info(ctx, "Screen updated", "id", entry.ID)
	// The code is echoed so the caller can refresh its preview.
	return t.writeResult(entry, args.NewCode), nil
}

type deleteArgs struct {
	ScreenID string `json:"screen_id"`
}

func (t *Tools) deleteScreen(ctx context.Context, args *deleteArgs) (any, error) {
	if args.ScreenID == "" {
		return nil, errors.NewValidationError("SCREEN_REQUIRED", "screen_id is required")
	}
	if err := t.store.Delete(ctx, args.ScreenID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "message": fmt.Sprintf("Screen %s deleted", args.ScreenID)}, nil
}

type variantArgs struct {
	SourceScreenID string `json:"source_screen_id"`
	VariantName    string `json:"variant_name"`
	Modifications  string `json:"modifications"`
}

// VariantResult is returned by create_screen_variant.
type VariantResult struct {
	Original   Screen `json:"original"`
	Variant    Screen `json:"variant"`
	PreviewURL string `json:"preview_url"`
	FilePath   string `json:"file_path"`
}

// VariantName is the name given to a variant of original.
func VariantName(original, variant string) string {
	return original + "_" + variant
}

func (t *Tools) createVariant(ctx context.Context, args *variantArgs) (any, error) {
	if args.SourceScreenID == "" || strings.TrimSpace(args.VariantName) == "" {
		return nil, errors.NewValidationError("VARIANT_ARGS", "source_screen_id and variant_name are required")
	}

	source, err := t.find(ctx, args.SourceScreenID, "")
	if err != nil {
		return nil, fmt.Errorf("could not load source screen: %w", err)
	}
	code, err := t.store.ReadSource(ctx, source.Filename)
	if err != nil {
		return nil, fmt.Errorf("could not load source screen: %w", err)
	}

	name := VariantName(source.Name, strings.TrimSpace(args.VariantName))
	if registry.SanitizeFilename(name) == source.Filename {
		return nil, errors.NewValidationError("VARIANT_NAME", fmt.Sprintf("variant %q would overwrite %s", name, source.Filename))
	}

	desc := args.Modifications
	if desc == "" {
		desc = args.VariantName
	}
	created, err := t.create(ctx, name, code, fmt.Sprintf("Variant of %s: %s", source.Name, desc))
	if err != nil {
		return nil, err
	}
	return &VariantResult{
		Original:   screenOf(*source),
		Variant:    created.Screen,
		PreviewURL: created.PreviewURL,
		FilePath:   created.FilePath,
	}, nil
}

type listVariantsArgs struct {
	BaseName string `json:"base_name"`
}

// VariantScreen is a screen together with its variant suffix.
type VariantScreen struct {
	Screen
	VariantName string `json:"variant_name"`
}

// VariantsResult is returned by list_screen_variants.
type VariantsResult struct {
	BaseScreen *Screen         `json:"base_screen"`
	Variants   []VariantScreen `json:"variants"`
	Count      int             `json:"count"`
}

func (t *Tools) listVariants(ctx context.Context, args *listVariantsArgs) (any, error) {
	if args.BaseName == "" {
		return nil, errors.NewValidationError("BASE_NAME_REQUIRED", "base_name is required")
	}
	reg, err := t.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := &VariantsResult{Variants: []VariantScreen{}}
	prefix := args.BaseName + "_"
	for _, c := range reg.Components {
		switch {
		case c.Name == args.BaseName:
			s := screenOf(c)
			result.BaseScreen = &s
		case strings.HasPrefix(c.Name, prefix):
			result.Variants = append(result.Variants, VariantScreen{
				Screen:      screenOf(c),
				VariantName: strings.TrimPrefix(c.Name, prefix),
			})
		}
	}
	result.Count = len(result.Variants)
	return result, nil
}

type compareArgs struct {
	ScreenIDs []string `json:"screen_ids"`
}

// ComparedScreen is one entry of compare_screen_variants.
type ComparedScreen struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Code       string `json:"code,omitempty"`
	CodeLength int    `json:"code_length,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CompareResult is returned by compare_screen_variants.
type CompareResult struct {
	Screens     []ComparedScreen `json:"screens"`
	LoadedCount int              `json:"loaded_count"`
}

// compareScreens resolves each id the way the preview endpoint does, so
// partial ids work here too.
func (t *Tools) compareScreens(ctx context.Context, args *compareArgs) (any, error) {
	switch n := len(args.ScreenIDs); {
	case n < 2:
		return nil, errors.NewValidationError("COMPARE_ARGS", "at least 2 screen ids are required for comparison")
	case n > 4:
		return nil, errors.NewValidationError("COMPARE_ARGS", "at most 4 screens can be compared at once")
	}

	r := resolver.New(t.store, resolver.WithAttempts(1), resolver.WithLogger(t.logger))
	result := &CompareResult{Screens: make([]ComparedScreen, 0, len(args.ScreenIDs))}
	for _, id := range args.ScreenIDs {
		res, err := r.Resolve(ctx, id)
		if err != nil {
			result.Screens = append(result.Screens, ComparedScreen{ID: id, Error: errors.Reason(err)})
			continue
		}
		result.Screens = append(result.Screens, ComparedScreen{
			ID:         res.Component.ID,
			Name:       res.Component.Name,
			Code:       res.SourceText,
			CodeLength: len(res.SourceText),
		})
		result.LoadedCount++
	}
	if result.LoadedCount < 2 {
		return nil, errors.NewNotFoundError("COMPARE_FAILED",
			fmt.Sprintf("only %d of %d screens could be loaded", result.LoadedCount, len(args.ScreenIDs)))
	}
	return result, nil
}

func (t *Tools) writeResult(entry *types.ComponentEntry, code string) *WriteResult {
	return &WriteResult{
		Screen:     screenOf(*entry),
		PreviewURL: t.baseURL + "/preview/" + entry.ID,
		FilePath:   filepath.Join(t.store.Dir(), entry.Filename),
		Code:       code,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
