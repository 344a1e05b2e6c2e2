// Package api provides the HTTP API for inspecting and editing the hex world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexworld/internal/hex"
	"github.com/talgya/hexworld/internal/mesh"
	"github.com/talgya/hexworld/internal/persistence"
	"github.com/talgya/hexworld/internal/snapshot"
	"github.com/talgya/hexworld/internal/world"
)

// Server serves the grid and its mesh over HTTP. All access to the grid,
// terrain layer and mesh builder goes through mu.
type Server struct {
	Grid        *world.Grid
	Layer       *world.TerrainLayer
	Palette     world.Palette
	Builder     *mesh.Builder
	DB          *persistence.DB // Optional; edits are not persisted without it
	Seed        int64
	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST disabled.
	PaintRate   int    // Terrain edits per minute per client
	SnapshotDir string // Where POST /api/v1/snapshot writes mesh files. Empty = skip.

	mu      sync.Mutex
	changes *world.Changes

	initOnce     sync.Once
	hub          *hub
	paintLimiter *RateLimiter
	handler      http.Handler
	httpServer   *http.Server

	// Active stream connection count (atomic).
	streamConns int32
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		if s.Palette == nil {
			s.Palette = world.DefaultPalette()
		}
		if s.PaintRate <= 0 {
			s.PaintRate = 60
		}
		s.changes = world.NewChanges()
		s.hub = newHub()
		s.paintLimiter = NewRateLimiter(s.PaintRate, time.Minute)

		mux := http.NewServeMux()

		// Public endpoints (GET, read-only).
		mux.HandleFunc("/api/v1/status", s.handleStatus)
		mux.HandleFunc("/api/v1/mesh", s.handleMesh)
		mux.HandleFunc("/api/v1/pick", s.handlePick)
		mux.HandleFunc("/api/v1/terrain", s.handleTerrain)
		mux.HandleFunc("/api/v1/edits", s.handleEdits)
		mux.HandleFunc("/api/v1/stream", s.handleStream)

		// GET is public, POST edits terrain and needs the admin key.
		mux.HandleFunc("/api/v1/cell/", s.adminOnly(s.handleCellRoutes))

		// Admin endpoints (POST, require bearer token).
		mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

		s.handler = corsMiddleware(mux)
	})
}

// Handler returns the API routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	s.init()
	return s.handler
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "paint_rate", s.PaintRate)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown disconnects stream clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.init()
	s.hub.closeAll()
	s.paintLimiter.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no HEXWORLD_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	valid := true
	var meshErr string
	if err := s.Builder.Validate(); err != nil {
		valid = false
		meshErr = err.Error()
	}

	status := map[string]any{
		"name":        "hexworld",
		"width":       s.Grid.Width,
		"height":      s.Grid.Height,
		"cells":       s.Grid.Len(),
		"seed":        s.Seed,
		"mesh_cells":  s.Builder.Tracked(),
		"vertices":    s.Builder.VertexCount(),
		"triangles":   s.Builder.VertexCount() / 3,
		"mesh_valid":  valid,
		"stream_subs": s.hub.Len(),
	}
	if meshErr != "" {
		status["mesh_error"] = meshErr
	}
	writeJSON(w, status)
}

// handleMesh returns the mesh buffers flattened into number arrays, the
// layout a WebGL or engine client uploads directly.
func (s *Server) handleMesh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	geom := s.Builder.Geometry()
	s.mu.Unlock()

	vertices := make([]float32, 0, len(geom.Vertices)*3)
	for _, v := range geom.Vertices {
		vertices = append(vertices, v[:]...)
	}
	colors := make([]float32, 0, len(geom.Colors)*4)
	for _, c := range geom.Colors {
		colors = append(colors, c[:]...)
	}
	uvs := make([]float32, 0, len(geom.UVs)*2)
	for _, uv := range geom.UVs {
		uvs = append(uvs, uv[:]...)
	}

	writeJSON(w, map[string]any{
		"vertices":  vertices,
		"triangles": geom.Triangles,
		"colors":    colors,
		"uvs":       uvs,
	})
}

// handleCellRoutes serves /api/v1/cell/:x/:y. GET describes the cell; POST
// sets its terrain and rebuilds the affected part of the mesh.
func (s *Server) handleCellRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/v1/cell/:x/:y → parts[3]=x parts[4]=y
	if len(parts) != 5 {
		http.Error(w, "usage: /api/v1/cell/:x/:y", http.StatusBadRequest)
		return
	}
	x, err1 := strconv.Atoi(parts[3])
	y, err2 := strconv.Atoi(parts[4])
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}
	coord := hex.Coordinate{X: x, Y: y}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		defer s.mu.Unlock()
		cell, ok := s.Grid.Lookup(coord)
		if !ok {
			http.Error(w, "cell not found", http.StatusNotFound)
			return
		}
		writeJSON(w, s.cellDetail(cell))
	case http.MethodPost:
		RateLimitMiddleware(s.paintLimiter, func(w http.ResponseWriter, r *http.Request) {
			s.handlePaint(w, r, coord)
		})(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type paintRequest struct {
	Terrain string `json:"terrain"`
}

func (s *Server) handlePaint(w http.ResponseWriter, r *http.Request, coord hex.Coordinate) {
	var req paintRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	t, err := world.ParseTerrain(req.Terrain)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cell, ok := s.Grid.Lookup(coord)
	if !ok {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}

	s.Layer.Set(coord, t)
	s.changes.Mark(world.Paint(s.Grid, s.Layer, s.Palette, coord)...)
	update := s.rebuildChanged()

	if s.DB != nil {
		if err := s.DB.SetTerrain(coord, t); err != nil {
			slog.Error("persist terrain failed", "coord", coord, "error", err)
		}
		if err := s.DB.RecordEdit(coord, t); err != nil {
			slog.Error("record edit failed", "coord", coord, "error", err)
		}
	}

	slog.Info("terrain edited", "coord", coord, "terrain", t, "mode", update.Mode)
	writeJSON(w, map[string]any{
		"cell":   s.cellDetail(cell),
		"update": update,
	})
}

// rebuildChanged feeds the pending change set to the mesh builder and
// broadcasts the result. Callers hold mu.
func (s *Server) rebuildChanged() MeshUpdate {
	if s.changes.Len() == 0 {
		return MeshUpdate{Mode: "none", Cells: []hex.Coordinate{}, Vertices: s.Builder.VertexCount(),
			Triangles: s.Builder.VertexCount() / 3}
	}
	changed := s.changes.Drain()

	var mode mesh.Mode
	if s.Builder.Tracked() == 0 {
		// Nothing rendered yet; a partial set would become the whole mesh.
		mode = s.Builder.Rebuild(s.Grid.AllCells())
	} else {
		mode = s.Builder.Rebuild(slices.Values(changed))
	}
	if err := s.Builder.Validate(); err != nil {
		slog.Error("mesh inconsistent after rebuild", "error", err)
	}

	update := MeshUpdate{
		Mode:      mode.String(),
		Cells:     make([]hex.Coordinate, 0, len(changed)),
		Vertices:  s.Builder.VertexCount(),
		Triangles: s.Builder.VertexCount() / 3,
	}
	for _, c := range changed {
		update.Cells = append(update.Cells, c.Coord)
	}
	s.hub.Broadcast(update)
	return update
}

// handlePick maps a local position to the cell containing it.
func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, err1 := strconv.ParseFloat(q.Get("x"), 32)
	y, err2 := strconv.ParseFloat(q.Get("y"), 32)
	if err1 != nil || err2 != nil {
		http.Error(w, "usage: /api/v1/pick?x=<float>&y=<float>", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.Grid.CellAtPosition(mgl32.Vec3{float32(x), float32(y), 0})
	if !ok {
		http.Error(w, "no cell at position", http.StatusNotFound)
		return
	}
	writeJSON(w, s.cellDetail(cell))
}

func (s *Server) handleTerrain(w http.ResponseWriter, r *http.Request) {
	type terrainEntry struct {
		Type        string     `json:"type"`
		Name        string     `json:"name"`
		Color       mgl32.Vec4 `json:"color"`
		Description string     `json:"description,omitempty"`
		Cells       int        `json:"cells"`
	}

	s.mu.Lock()
	counts := world.TerrainCounts(s.Layer)
	s.mu.Unlock()

	entries := make([]terrainEntry, 0, len(world.AllTerrains))
	for _, t := range world.AllTerrains {
		entries = append(entries, terrainEntry{
			Type:        t.String(),
			Name:        s.Palette.Name(t),
			Color:       s.Palette.Color(t),
			Description: s.Palette.Description(t),
			Cells:       counts[t],
		})
	}
	writeJSON(w, entries)
}

func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}
	edits, err := s.DB.RecentEdits(limit)
	if err != nil {
		slog.Error("load edits failed", "error", err)
		http.Error(w, "load edits failed", http.StatusInternalServerError)
		return
	}
	if edits == nil {
		edits = []persistence.Edit{}
	}
	writeJSON(w, edits)
}

// handleSnapshot saves terrain to the database and, if configured, writes the
// current mesh to a snapshot file.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil && s.SnapshotDir == "" {
		http.Error(w, "no database or snapshot directory configured", http.StatusServiceUnavailable)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := map[string]any{"cells": s.Grid.Len()}
	if s.DB != nil {
		if err := s.DB.SaveWorldState(s.Grid, s.Layer, s.Seed); err != nil {
			slog.Error("world save failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		result["saved"] = true
	}
	if s.SnapshotDir != "" {
		snap := snapshot.FromBuilder(s.Builder, s.Grid)
		path := filepath.Join(s.SnapshotDir, snap.Header.ID+".snap")
		size, err := snapshot.Write(path, snap)
		if err != nil {
			slog.Error("mesh snapshot failed", "error", err)
			http.Error(w, "snapshot failed", http.StatusInternalServerError)
			return
		}
		result["snapshot"] = snap.Header
		result["bytes"] = size
	}
	writeJSON(w, result)
}

// cellDetail describes a cell and its present neighbours. Callers hold mu.
func (s *Server) cellDetail(cell *world.Cell) map[string]any {
	type neighborInfo struct {
		Direction string `json:"direction"`
		X         int    `json:"x"`
		Y         int    `json:"y"`
		Terrain   string `json:"terrain"`
		Distance  int    `json:"distance"`
	}
	neighbors := make([]neighborInfo, 0, 6)
	for _, d := range hex.Directions {
		n, ok, err := s.Grid.Neighbor(cell, d)
		if err != nil || !ok {
			continue
		}
		neighbors = append(neighbors, neighborInfo{
			Direction: d.String(),
			X:         n.Coord.X,
			Y:         n.Coord.Y,
			Terrain:   s.Layer.Get(n.Coord).String(),
			Distance:  cell.Coord.Distance(n.Coord),
		})
	}

	col, row := cell.Coord.Offset()
	t := s.Layer.Get(cell.Coord)
	detail := map[string]any{
		"x":            cell.Coord.X,
		"y":            cell.Coord.Y,
		"z":            cell.Coord.Z(),
		"col":          col,
		"row":          row,
		"position":     cell.Position,
		"color":        cell.Color,
		"terrain":      t.String(),
		"terrain_name": s.Palette.Name(t),
		"neighbors":    neighbors,
	}
	if rng, ok := s.Builder.Range(cell); ok {
		detail["range"] = rng
	}
	return detail
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
