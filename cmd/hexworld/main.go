// Command hexworld builds the hex grid, colours it from terrain, triangulates
// it, and serves the grid and mesh over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/hexworld/internal/api"
	"github.com/talgya/hexworld/internal/config"
	"github.com/talgya/hexworld/internal/mesh"
	"github.com/talgya/hexworld/internal/persistence"
	"github.com/talgya/hexworld/internal/world"
)

func main() {
	cfgPath := os.Getenv("HEXWORLD_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if key := os.Getenv("HEXWORLD_ADMIN_KEY"); key != "" {
		cfg.API.AdminKey = key
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	slog.Info("hexworld starting", "config", cfgPath, "grid", fmt.Sprintf("%dx%d", cfg.Grid.Width, cfg.Grid.Height))

	palette, err := cfg.Palette()
	if err != nil {
		slog.Error("invalid terrain palette", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755)
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Database.Path)

	// ── Grid ──────────────────────────────────────────────────────────
	grid := world.NewGrid(cfg.Metrics(), cfg.Grid.Spacing)
	if err := grid.Build(cfg.Grid.Width, cfg.Grid.Height); err != nil {
		slog.Error("failed to build grid", "error", err)
		os.Exit(1)
	}
	slog.Info("grid built", "cells", grid.Len(), "outer_radius", cfg.Grid.OuterRadius, "spacing", cfg.Grid.Spacing)

	// ── Load or Generate Terrain ─────────────────────────────────────
	layer, seed, restored := loadTerrain(db, grid)
	if !restored {
		gen := cfg.GenConfig()
		if gen.Seed == 0 {
			gen.Seed = rand.Int63()
		}
		seed = gen.Seed
		slog.Info("generating terrain...", "seed", seed)
		layer = world.Generate(grid, gen)

		if err := db.SaveWorldState(grid, layer, seed); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	for t, c := range world.TerrainCounts(layer) {
		slog.Info("terrain", "type", palette.Name(t), "count", c)
	}

	// ── Mesh ──────────────────────────────────────────────────────────
	world.Paint(grid, layer, palette)
	builder := mesh.NewBuilder(grid.Metrics)
	start := time.Now()
	mode := builder.Rebuild(grid.AllCells())
	if err := builder.Validate(); err != nil {
		slog.Error("mesh failed validation", "error", err)
		os.Exit(1)
	}
	slog.Info("mesh built",
		"mode", mode,
		"cells", builder.Tracked(),
		"vertices", builder.VertexCount(),
		"elapsed", time.Since(start),
	)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("HEXWORLD_ADMIN_KEY not set, terrain edits will be disabled")
	}

	apiServer := &api.Server{
		Grid:        grid,
		Layer:       layer,
		Palette:     palette,
		Builder:     builder,
		DB:          db,
		Seed:        seed,
		Port:        cfg.API.Port,
		AdminKey:    cfg.API.AdminKey,
		PaintRate:   cfg.API.PaintRate,
		SnapshotDir: cfg.Snapshot.Dir,
	}
	apiServer.Start()

	fmt.Printf("\nhexworld is up: %d cells, %d vertices.\n", grid.Len(), builder.VertexCount())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	if restored {
		fmt.Printf("Restored terrain for seed %d\n", seed)
	}
	fmt.Println("Serving... (Ctrl+C to stop)")

	// ── Wait ──────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown. The server is stopped, so nothing else touches
	// the layer now.
	slog.Info("final save...")
	if err := db.SaveWorldState(grid, layer, seed); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("hexworld stopped. Terrain saved.")
}

// loadTerrain restores the saved terrain if it was generated for a grid of
// the same size.
func loadTerrain(db *persistence.DB, grid *world.Grid) (*world.TerrainLayer, int64, bool) {
	if !db.HasWorldState() {
		slog.Info("no saved state found")
		return nil, 0, false
	}

	w, _ := db.GetMeta(persistence.MetaWidth)
	h, _ := db.GetMeta(persistence.MetaHeight)
	if w != strconv.Itoa(grid.Width) || h != strconv.Itoa(grid.Height) {
		slog.Warn("saved terrain is for a different grid size, regenerating", "saved", w+"x"+h)
		return nil, 0, false
	}

	seed, err := db.LoadSeed()
	if err != nil {
		slog.Error("failed to load seed", "error", err)
		return nil, 0, false
	}
	layer, err := db.LoadTerrain()
	if err != nil {
		slog.Error("failed to load terrain", "error", err)
		return nil, 0, false
	}
	slog.Info("terrain restored", "seed", seed, "cells", layer.Len())
	return layer, seed, true
}
