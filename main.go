package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/bucketlist/internal/api"
	"github.com/hazyhaar/bucketlist/internal/auth"
	"github.com/hazyhaar/bucketlist/internal/config"
	"github.com/hazyhaar/bucketlist/internal/db"
	"github.com/hazyhaar/bucketlist/internal/mcp"
	"github.com/hazyhaar/bucketlist/pkg/audit"
	"github.com/hazyhaar/bucketlist/pkg/trace"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Printf("bucketlist %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bucketlist — campus traditions tracker

Usage:
  bucketlist serve [--config config.toml] [--addr :8080]
  bucketlist mcp [--config config.toml]
  bucketlist version
  bucketlist help

Commands:
  serve     Start the HTTP server
  mcp       Serve the MCP tools over stdio
  version   Print version
  help      Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	database, auditLog, err := openDB(cfg)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()
	if auditLog != nil {
		defer auditLog.Close()
	}

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	apiHandler := api.New(database, a)
	apiHandler.SetAuditLog(auditLog)
	apiHandler.SetInstanceConfig(&cfg.Instance)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	// Serve static files
	staticFS := http.FileServer(http.Dir("static"))
	mux.Handle("GET /static/", http.StripPrefix("/static/", api.NoCacheStatic(staticFS)))

	// SPA: serve index.html for all non-API, non-static routes
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "static/index.html")
	})

	handler := trace.Middleware(api.SecurityHeaders(mux))

	log.Printf("bucketlist %s listening on %s", version, cfg.Server.Addr)
	log.Printf("database: %s", cfg.Database.Path)

	if err := http.ListenAndServe(cfg.Server.Addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	database, auditLog, err := openDB(cfg)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer database.Close()
	if auditLog != nil {
		defer auditLog.Close()
	}

	srv := mcp.NewServer(database, auditLog)
	if err := mcpserver.ServeStdio(srv); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func openDB(cfg *config.Config) (*db.DB, audit.Logger, error) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Seed.Enabled {
		if err := database.Seed(); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("seeding traditions: %w", err)
		}
	}
	auditLog := audit.NewSQLiteLogger(database.DB)
	if err := auditLog.Init(); err != nil {
		log.Printf("audit log disabled: %v", err)
		auditLog.Close()
		return database, nil, nil
	}
	return database, auditLog, nil
}
