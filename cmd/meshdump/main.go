// Command meshdump builds the configured grid offline and writes its mesh to
// a zstd snapshot file. With "inspect <file>" it prints a snapshot's header.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexworld/internal/config"
	"github.com/talgya/hexworld/internal/mesh"
	"github.com/talgya/hexworld/internal/persistence"
	"github.com/talgya/hexworld/internal/snapshot"
	"github.com/talgya/hexworld/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) == 3 && os.Args[1] == "inspect" {
		inspect(os.Args[2])
		return
	}

	cfgPath := os.Getenv("HEXWORLD_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("MESHDUMP_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Error("invalid MESHDUMP_SEED", "value", v, "error", err)
			os.Exit(1)
		}
		cfg.World.Seed = seed
	}

	palette, err := cfg.Palette()
	if err != nil {
		slog.Error("invalid terrain palette", "error", err)
		os.Exit(1)
	}

	grid := world.NewGrid(cfg.Metrics(), cfg.Grid.Spacing)
	if err := grid.Build(cfg.Grid.Width, cfg.Grid.Height); err != nil {
		slog.Error("failed to build grid", "error", err)
		os.Exit(1)
	}

	layer := terrainFor(cfg, grid)
	world.Paint(grid, layer, palette)

	builder := mesh.NewBuilder(grid.Metrics)
	start := time.Now()
	builder.Rebuild(grid.AllCells())
	if err := builder.Validate(); err != nil {
		slog.Error("mesh failed validation", "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	snap := snapshot.FromBuilder(builder, grid)
	out := filepath.Join(cfg.Snapshot.Dir, snap.Header.ID+".snap")
	if len(os.Args) == 2 {
		out = os.Args[1]
	}

	size, err := snapshot.Write(out, snap)
	if err != nil {
		slog.Error("failed to write snapshot", "path", out, "error", err)
		os.Exit(1)
	}

	// Raw size of the four buffers as a renderer would upload them.
	raw := uint64(builder.VertexCount()) * (3*4 + 4 + 4*4 + 2*4)

	slog.Info("snapshot written",
		"path", out,
		"id", snap.Header.ID,
		"cells", snap.Header.Cells,
		"vertices", snap.Header.Vertices,
		"build", elapsed,
		"raw", humanize.Bytes(raw),
		"compressed", humanize.Bytes(uint64(size)),
	)
}

// terrainFor restores saved terrain when the database holds it for this grid
// size, and generates it otherwise.
func terrainFor(cfg *config.Config, grid *world.Grid) *world.TerrainLayer {
	if _, err := os.Stat(cfg.Database.Path); err == nil {
		db, err := persistence.Open(cfg.Database.Path)
		if err != nil {
			slog.Warn("cannot open database, generating terrain", "error", err)
		} else {
			defer db.Close()
			w, _ := db.GetMeta(persistence.MetaWidth)
			h, _ := db.GetMeta(persistence.MetaHeight)
			if w == strconv.Itoa(grid.Width) && h == strconv.Itoa(grid.Height) {
				if layer, err := db.LoadTerrain(); err == nil {
					slog.Info("using saved terrain", "path", cfg.Database.Path, "cells", layer.Len())
					return layer
				}
			}
		}
	}

	gen := cfg.GenConfig()
	slog.Info("generating terrain", "seed", gen.Seed)
	return world.Generate(grid, gen)
}

func inspect(path string) {
	h, err := snapshot.ReadHeader(path)
	if err != nil {
		slog.Error("failed to read snapshot header", "path", path, "error", err)
		os.Exit(1)
	}
	info, err := os.Stat(path)
	if err != nil {
		slog.Error("failed to stat snapshot", "path", path, "error", err)
		os.Exit(1)
	}

	fmt.Printf("snapshot %s\n", h.ID)
	fmt.Printf("  version:  %d\n", h.Version)
	fmt.Printf("  created:  %s (%s)\n", h.CreatedAt.Format(time.RFC3339), humanize.Time(h.CreatedAt))
	fmt.Printf("  grid:     %dx%d, %d cells\n", h.Width, h.Height, h.Cells)
	fmt.Printf("  vertices: %s\n", humanize.Comma(int64(h.Vertices)))
	fmt.Printf("  size:     %s\n", humanize.Bytes(uint64(info.Size())))
}
