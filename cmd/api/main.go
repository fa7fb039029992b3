package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"retail-crawler/config"
	"retail-crawler/extractor"
	"retail-crawler/internal/types"
	"retail-crawler/utils"
)

// APIRequest represents the request body for the API
type APIRequest struct {
	Sites     []string `json:"sites"`
	DevMode   *bool    `json:"dev_mode,omitempty"`
	PageLimit int      `json:"page_limit,omitempty"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool                    `json:"success"`
	Data    *types.ExtractionResult `json:"data,omitempty"`
	Error   string                  `json:"error,omitempty"`
}

// Server holds the API server configuration
type Server struct {
	logger *logrus.Logger
	config *types.Config
	opts   extractor.Options
	mux    *http.ServeMux
}

// NewServer creates a new API server
func NewServer() *Server {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := config.FromEnv()
	s := &Server{
		logger: utils.NewLogger(cfg.LogLevel),
		config: cfg,
		opts:   extractor.OptionsFromConfig(cfg),
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/scrape", s.handleScrape)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// handleScrape crawls the requested sites and returns the run summary
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req APIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Sites) == 0 {
		s.sendError(w, "No sites provided", http.StatusBadRequest)
		return
	}

	cfg := *s.config
	if req.DevMode != nil {
		cfg.DevMode = *req.DevMode
	}
	if req.PageLimit > 0 {
		cfg.PageLimit = req.PageLimit
	}

	var sites []*types.SiteConfig
	for _, name := range req.Sites {
		name = strings.TrimSpace(name)
		site, err := config.LoadSite(cfg.ConfigDir, name)
		if errors.Is(err, config.ErrNotFound) {
			s.logger.Warnf("Unknown site: %s, skipping", name)
			continue
		}
		if err != nil {
			s.logger.Warnf("Invalid configuration for %s: %v", name, err)
			continue
		}
		config.ApplyEnv(site, &cfg)
		sites = append(sites, site)
	}
	if len(sites) == 0 {
		s.sendError(w, "No valid sites provided", http.StatusBadRequest)
		return
	}

	s.logger.Infof("API request received for sites: %v", req.Sites)

	result := extractor.RunAll(r.Context(), sites, s.opts)

	response := APIResponse{
		Success: true,
		Data:    &result,
	}
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode error response: %v", err)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Start starts the API server
func (s *Server) Start(ctx context.Context, port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Infof("Starting API server on port %s", port)
	s.logger.Info("Available endpoints:")
	s.logger.Info("  POST /scrape - Crawl the named retailers")
	s.logger.Info("  GET  /health - Health check")

	return server.ListenAndServe()
}

func main() {
	// Get port from environment variable, default to 8080
	serverPort := "8080"
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		serverPort = envPort
		fmt.Printf("Using port from environment variable API_PORT: %s\n", serverPort)
	} else {
		fmt.Printf("No API_PORT environment variable found, using default: %s\n", serverPort)
	}

	os.Exit(serve(NewServer(), serverPort))
}

// serve runs the server until it fails and returns the process exit code.
// The standard library logger is silenced once a browser session starts.
func serve(server *Server, port string) int {
	if err := server.Start(context.Background(), port); err != nil {
		server.logger.Errorf("API server stopped: %v", err)
		return 1
	}
	return 0
}
