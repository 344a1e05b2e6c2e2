package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/talgya/hexworld/internal/hex"
	"github.com/talgya/hexworld/internal/mesh"
	"github.com/talgya/hexworld/internal/persistence"
	"github.com/talgya/hexworld/internal/world"
)

const testKey = "test-admin-key"

func newTestServer(t *testing.T, configure func(*Server)) (*Server, *httptest.Server) {
	t.Helper()

	g := world.NewGrid(hex.DefaultMetrics, 1)
	if err := g.Build(6, 5); err != nil {
		t.Fatalf("Build: %v", err)
	}
	layer := world.Generate(g, world.SmallTestConfig())
	palette := world.DefaultPalette()
	world.Paint(g, layer, palette)

	b := mesh.NewBuilder(g.Metrics, mesh.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	b.Rebuild(g.AllCells())

	s := &Server{
		Grid:      g,
		Layer:     layer,
		Palette:   palette,
		Builder:   b,
		Seed:      42,
		AdminKey:  testKey,
		PaintRate: 100,
	}
	if configure != nil {
		configure(s)
	}

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
	})
	return s, ts
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func getJSON(t *testing.T, url string, wantStatus int) any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d, want %d: %s", url, resp.StatusCode, wantStatus, body)
	}
	if wantStatus != http.StatusOK {
		return nil
	}
	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return v
}

func postPaint(t *testing.T, url, key, terrain string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(fmt.Sprintf(`{"terrain":%q}`, terrain)))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

// differentTerrain returns a terrain whose colour differs from the one at c.
func differentTerrain(s *Server, c hex.Coordinate) world.Terrain {
	if s.Layer.Get(c) == world.TerrainVolcano {
		return world.TerrainWater
	}
	return world.TerrainVolcano
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t, nil)
	v := getJSON(t, ts.URL+"/api/v1/status", http.StatusOK)
	if err := compileSchema(t, "status.schema.json").Validate(v); err != nil {
		t.Fatalf("status schema: %v", err)
	}

	status := v.(map[string]any)
	if status["cells"].(float64) != 30 || status["vertices"].(float64) != 30*mesh.VerticesPerCell {
		t.Fatalf("status = %v", status)
	}
	if status["mesh_valid"] != true {
		t.Fatalf("mesh reported invalid: %v", status["mesh_error"])
	}
}

func TestMesh(t *testing.T) {
	_, ts := newTestServer(t, nil)
	v := getJSON(t, ts.URL+"/api/v1/mesh", http.StatusOK)
	if err := compileSchema(t, "mesh.schema.json").Validate(v); err != nil {
		t.Fatalf("mesh schema: %v", err)
	}
	m := v.(map[string]any)
	n := 30 * mesh.VerticesPerCell
	if len(m["vertices"].([]any)) != n*3 || len(m["triangles"].([]any)) != n ||
		len(m["colors"].([]any)) != n*4 || len(m["uvs"].([]any)) != n*2 {
		t.Fatalf("unexpected buffer sizes")
	}
}

func TestCellDetail(t *testing.T) {
	_, ts := newTestServer(t, nil)
	schema := compileSchema(t, "cell.schema.json")

	v := getJSON(t, ts.URL+"/api/v1/cell/1/1", http.StatusOK)
	if err := schema.Validate(v); err != nil {
		t.Fatalf("cell schema: %v", err)
	}
	cell := v.(map[string]any)
	if cell["z"].(float64) != -2 || cell["col"].(float64) != 1 || cell["row"].(float64) != 1 {
		t.Fatalf("cell = %v", cell)
	}
	if n := len(cell["neighbors"].([]any)); n != 6 {
		t.Fatalf("interior cell has %d neighbours", n)
	}

	getJSON(t, ts.URL+"/api/v1/cell/99/99", http.StatusNotFound)
	getJSON(t, ts.URL+"/api/v1/cell/a/b", http.StatusBadRequest)
	getJSON(t, ts.URL+"/api/v1/cell/1", http.StatusBadRequest)
}

func TestPaintAuth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	url := ts.URL + "/api/v1/cell/1/1"

	resp := postPaint(t, url, "", "forest")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}
	resp = postPaint(t, url, "wrong", "forest")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: status %d", resp.StatusCode)
	}

	_, open := newTestServer(t, func(s *Server) { s.AdminKey = "" })
	resp = postPaint(t, open.URL+"/api/v1/cell/1/1", "anything", "forest")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disabled admin: status %d", resp.StatusCode)
	}
}

func TestPaintRebuildsPartially(t *testing.T) {
	s, ts := newTestServer(t, nil)
	coord := hex.Coordinate{X: 1, Y: 1}
	target := differentTerrain(s, coord)

	resp := postPaint(t, ts.URL+"/api/v1/cell/1/1", testKey, target.String())
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("paint: status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Cell   map[string]any `json:"cell"`
		Update MeshUpdate     `json:"update"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Update.Mode != "partial" || len(out.Update.Cells) != 1 || out.Update.Cells[0] != coord {
		t.Fatalf("update = %+v", out.Update)
	}
	if out.Cell["terrain"] != target.String() {
		t.Fatalf("cell terrain = %v", out.Cell["terrain"])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Builder.Validate(); err != nil {
		t.Fatalf("mesh invalid after paint: %v", err)
	}
	cell, _ := s.Grid.Lookup(coord)
	r, _ := s.Builder.Range(cell)
	if r.Start != (s.Grid.Len()-1)*mesh.VerticesPerCell {
		t.Fatalf("repainted cell at %d, want tail", r.Start)
	}
	if cell.Color != s.Palette.Color(target) {
		t.Fatalf("cell colour not updated")
	}
}

func TestPaintBadRequests(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := postPaint(t, ts.URL+"/api/v1/cell/1/1", testKey, "lava")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown terrain: status %d", resp.StatusCode)
	}
	resp = postPaint(t, ts.URL+"/api/v1/cell/50/50", testKey, "forest")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing cell: status %d", resp.StatusCode)
	}
}

func TestPaintRateLimited(t *testing.T) {
	_, ts := newTestServer(t, func(s *Server) { s.PaintRate = 1 })
	url := ts.URL + "/api/v1/cell/2/2"

	resp := postPaint(t, url, testKey, "forest")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first paint: status %d", resp.StatusCode)
	}
	resp = postPaint(t, url, testKey, "desert")
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second paint: status %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestPick(t *testing.T) {
	s, ts := newTestServer(t, nil)
	cell, _ := s.Grid.CellAtOffset(2, 3)
	p := cell.Position

	v := getJSON(t, fmt.Sprintf("%s/api/v1/pick?x=%f&y=%f", ts.URL, p.X()+0.2, p.Y()-0.1), http.StatusOK)
	got := v.(map[string]any)
	if int(got["x"].(float64)) != cell.Coord.X || int(got["y"].(float64)) != cell.Coord.Y {
		t.Fatalf("picked (%v,%v), want %v", got["x"], got["y"], cell.Coord)
	}

	getJSON(t, ts.URL+"/api/v1/pick?x=abc", http.StatusBadRequest)
	getJSON(t, ts.URL+"/api/v1/pick?x=-100&y=-100", http.StatusNotFound)
}

func TestTerrainListing(t *testing.T) {
	s, ts := newTestServer(t, nil)
	v := getJSON(t, ts.URL+"/api/v1/terrain", http.StatusOK)
	entries := v.([]any)
	if len(entries) != len(world.AllTerrains) {
		t.Fatalf("got %d entries", len(entries))
	}
	total := 0
	for _, e := range entries {
		total += int(e.(map[string]any)["cells"].(float64))
	}
	if total != s.Grid.Len() {
		t.Fatalf("terrain counts sum to %d, want %d", total, s.Grid.Len())
	}
}

func TestStream(t *testing.T) {
	s, ts := newTestServer(t, nil)
	schema := compileSchema(t, "mesh_update.schema.json")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	readUpdate := func() any {
		t.Helper()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := schema.Validate(v); err != nil {
			t.Fatalf("update schema: %v", err)
		}
		return v
	}

	hello := readUpdate().(map[string]any)
	if hello["mode"] != "snapshot" {
		t.Fatalf("first message = %v", hello)
	}

	coord := hex.Coordinate{X: 2, Y: 2}
	s.mu.Lock()
	target := differentTerrain(s, coord)
	s.mu.Unlock()

	resp := postPaint(t, ts.URL+"/api/v1/cell/2/2", testKey, target.String())
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("paint: status %d", resp.StatusCode)
	}

	update := readUpdate().(map[string]any)
	if update["mode"] != "partial" {
		t.Fatalf("update = %v", update)
	}
	cells := update["cells"].([]any)
	c := cells[0].(map[string]any)
	if int(c["x"].(float64)) != 2 || int(c["y"].(float64)) != 2 {
		t.Fatalf("update cells = %v", cells)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/cell/1/1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("missing CORS header")
	}
}

func TestSnapshotAndEdits(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "hexworld.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	snapDir := t.TempDir()

	s, ts := newTestServer(t, func(s *Server) {
		s.DB = db
		s.SnapshotDir = snapDir
	})

	coord := hex.Coordinate{X: 1, Y: 1}
	resp := postPaint(t, ts.URL+"/api/v1/cell/1/1", testKey, differentTerrain(s, coord).String())
	resp.Body.Close()

	edits := getJSON(t, ts.URL+"/api/v1/edits", http.StatusOK).([]any)
	if len(edits) != 1 {
		t.Fatalf("expected 1 edit, got %d", len(edits))
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/snapshot", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("snapshot status %d", resp.StatusCode)
	}

	if !db.HasWorldState() {
		t.Fatalf("world state not saved")
	}
	files, _ := os.ReadDir(snapDir)
	if len(files) != 1 || !strings.HasSuffix(files[0].Name(), ".snap") {
		t.Fatalf("snapshot files = %v", files)
	}

	getJSON(t, ts.URL+"/api/v1/snapshot", http.StatusMethodNotAllowed)
}

func TestEditsWithoutDB(t *testing.T) {
	_, ts := newTestServer(t, nil)
	getJSON(t, ts.URL+"/api/v1/edits", http.StatusServiceUnavailable)
}
