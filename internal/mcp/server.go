// Package mcp registers the core bucketlist tools on an MCP server served
// over stdio, so agent clients can browse traditions, toggle completions and
// submit ratings under the same eligibility rules as the HTTP API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/bucketlist/internal/db"
	"github.com/hazyhaar/bucketlist/internal/stats"
	"github.com/hazyhaar/bucketlist/pkg/audit"
)

// NewServer creates an MCPServer with all core bucketlist tools registered.
func NewServer(database *db.DB, auditLog audit.Logger) *server.MCPServer {
	srv := server.NewMCPServer(
		"bucketlist",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	registerListTraditions(srv, database)
	registerLeaderboard(srv, database)
	registerCompleteTradition(srv, database, auditLog)
	registerRateTradition(srv, database, auditLog)
	registerRateDifficulty(srv, database, auditLog)
	registerAddTradition(srv, database, auditLog)
	registerInstanceStats(srv, database)

	return srv
}

// --- list_traditions ---

func registerListTraditions(srv *server.MCPServer, database *db.DB) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("list_traditions",
		"List every tradition with its community statistics", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		traditions, err := database.ListTraditionsWithStats()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"traditions": traditions, "count": len(traditions)})
	})
}

// --- leaderboard ---

func registerLeaderboard(srv *server.MCPServer, database *db.DB) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"board": map[string]any{
				"type":        "string",
				"enum":        []string{"top-rated", "most-completed", "most-difficult"},
				"description": "Which leaderboard to return",
			},
			"limit": map[string]any{"type": "integer", "description": "Max results", "default": 5},
		},
		"required": []string{"board"},
	})
	tool := mcp.NewToolWithRawSchema("leaderboard",
		"Community leaderboard: top-rated, most-completed or most-difficult traditions", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		var key stats.Key
		switch stringArg(args, "board") {
		case "most-completed":
			key = stats.ByCompletions
		case "most-difficult":
			key = stats.ByDifficulty
		case "top-rated":
			key = stats.ByRating
		default:
			return mcp.NewToolResultError("board must be top-rated, most-completed or most-difficult"), nil
		}
		limit := intArg(args, "limit", 5)

		traditions, err := database.ListTraditionsWithStats()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		top := stats.RankTop(traditions, func(t db.TraditionWithStats) stats.Statistics {
			return t.Stats
		}, key, limit)
		return jsonResult(map[string]any{"traditions": top, "count": len(top)})
	})
}

// --- complete_tradition ---

func registerCompleteTradition(srv *server.MCPServer, database *db.DB, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"username":     map[string]string{"type": "string", "description": "Acting user (created on first use)"},
			"tradition_id": map[string]string{"type": "string", "description": "Tradition to toggle"},
			"completed":    map[string]any{"type": "boolean", "description": "Current completion state to flip", "default": false},
		},
		"required": []string{"username", "tradition_id"},
	})
	tool := mcp.NewToolWithRawSchema("complete_tradition",
		"Toggle a user's completion of a tradition", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		traditionID := stringArg(args, "tradition_id")
		completed, _ := args["completed"].(bool)

		user, errResult := actingUser(database, args)
		if errResult != nil {
			return errResult, nil
		}
		if _, err := database.GetTradition(traditionID); err != nil {
			return mcp.NewToolResultError("tradition not found"), nil
		}

		done := audit.Action(ctx, auditLog, "toggle_completion", "mcp", user.ID, args)
		err := database.SetCompletion(user.ID, traditionID, !completed)
		done(nil, err)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return traditionResult(database, traditionID)
	})
}

// --- rate_tradition / rate_difficulty ---

func registerRateTradition(srv *server.MCPServer, database *db.DB, auditLog audit.Logger) {
	registerRatingTool(srv, database, auditLog, ratingTool{
		name:        "rate_tradition",
		description: "Rate a completed tradition 1-10 (once per user)",
		field:       "rating",
		get:         database.GetRatings,
		put:         database.PutRating,
	})
}

func registerRateDifficulty(srv *server.MCPServer, database *db.DB, auditLog audit.Logger) {
	registerRatingTool(srv, database, auditLog, ratingTool{
		name:        "rate_difficulty",
		description: "Rate the difficulty of a completed tradition 1-10 (once per user)",
		field:       "difficulty",
		get:         database.GetDifficultyRatings,
		put:         database.PutDifficultyRating,
	})
}

type ratingTool struct {
	name        string
	description string
	field       string
	get         func(userID string) (map[string]int, error)
	put         func(userID, traditionID string, value int) error
}

func registerRatingTool(srv *server.MCPServer, database *db.DB, auditLog audit.Logger, rt ratingTool) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"username":     map[string]string{"type": "string", "description": "Acting user"},
			"tradition_id": map[string]string{"type": "string", "description": "Tradition to rate"},
			rt.field:       map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
		},
		"required": []string{"username", "tradition_id", rt.field},
	})
	tool := mcp.NewToolWithRawSchema(rt.name, rt.description, schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		traditionID := stringArg(args, "tradition_id")
		value := intArg(args, rt.field, 0)

		user, errResult := actingUser(database, args)
		if errResult != nil {
			return errResult, nil
		}

		completed, err := database.GetCompletions(user.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		existing, err := rt.get(user.ID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := stats.CheckSubmit(user.ID, completed, existing, traditionID, value); err != nil {
			return eligibilityResult(err), nil
		}
		if _, err := database.GetTradition(traditionID); err != nil {
			return mcp.NewToolResultError("tradition not found"), nil
		}

		done := audit.Action(ctx, auditLog, rt.name, "mcp", user.ID, args)
		err = rt.put(user.ID, traditionID, value)
		done(nil, err)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return traditionResult(database, traditionID)
	})
}

// --- add_tradition ---

func registerAddTradition(srv *server.MCPServer, database *db.DB, auditLog audit.Logger) {
	schema, _ := json.Marshal(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"username":    map[string]string{"type": "string", "description": "Acting user"},
			"name":        map[string]string{"type": "string", "description": "Tradition name"},
			"description": map[string]string{"type": "string", "description": "What the tradition involves"},
		},
		"required": []string{"username", "name"},
	})
	tool := mcp.NewToolWithRawSchema("add_tradition",
		"Add a custom tradition to the shared list", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		name := stringArg(args, "name")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}

		user, errResult := actingUser(database, args)
		if errResult != nil {
			return errResult, nil
		}

		done := audit.Action(ctx, auditLog, "add_tradition", "mcp", user.ID, args)
		tradition, err := database.CreateTradition(name, stringArg(args, "description"), &user.ID)
		done(tradition, err)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(tradition)
	})
}

// --- instance_stats ---

func registerInstanceStats(srv *server.MCPServer, database *db.DB) {
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	})
	tool := mcp.NewToolWithRawSchema("instance_stats",
		"Instance statistics: tradition, user and record counts", schema)

	srv.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := database.GetInstanceStats()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(s)
	})
}

// --- helpers ---

// actingUser resolves the self-asserted username argument, creating the user
// on first use. A missing username is the MCP equivalent of an
// unauthenticated caller.
func actingUser(database *db.DB, args map[string]any) (*db.User, *mcp.CallToolResult) {
	username := stringArg(args, "username")
	if username == "" {
		return nil, eligibilityResult(stats.ErrUnauthenticated)
	}
	user, err := database.GetOrCreateUser(username)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return user, nil
}

func eligibilityResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, stats.ErrUnauthenticated),
		errors.Is(err, stats.ErrNotCompleted),
		errors.Is(err, stats.ErrAlreadyRated),
		errors.Is(err, stats.ErrInvalidValue):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError("internal error: " + err.Error())
	}
}

func traditionResult(database *db.DB, traditionID string) (*mcp.CallToolResult, error) {
	t, err := database.GetTradition(traditionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	completions, err := database.ListAllCompletions()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ratings, err := database.ListAllRatings()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	difficulties, err := database.ListAllDifficultyRatings()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(db.TraditionWithStats{
		Tradition: *t,
		Stats:     stats.Compute(traditionID, completions, ratings, difficulties),
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
