package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"lunarterrain/internal/models"
	"lunarterrain/pkg/config"
	"lunarterrain/pkg/gridio"
	"lunarterrain/pkg/hazard"
	"lunarterrain/pkg/pathfind"
	"lunarterrain/pkg/reconstruction"
	"lunarterrain/pkg/slope"
	"lunarterrain/pkg/stl"
	"lunarterrain/pkg/store"
	"lunarterrain/pkg/visualization"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	input := flag.String("input", "", "Image file or directory of images to reconstruct")
	outputDir := flag.String("output", "output", "Directory for elevation arrays, images and reports")
	dbPath := flag.String("db", "", "SQLite session database (default from config)")
	noExaggeration := flag.Bool("no-exaggeration", false, "Scale elevation by the base factor instead of the exaggeration factor")
	minArea := flag.Int("min-area", 0, "Minimum landing zone area in pixels (default from config)")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	mesh := flag.Bool("mesh", false, "Export each elevation grid as an STL mesh")
	sessionID := flag.String("session", "", "Stored session to plan a path on")
	startFlag := flag.String("start", "", "Path start cell as x,y")
	goalFlag := flag.String("goal", "", "Path goal cell as x,y")
	maxSlope := flag.Float64("max-slope", 0, "Maximum traversable slope in degrees (default from config)")
	toZone := flag.Bool("to-zone", false, "Plan from -start to the centre of the nearest landing zone")
	list := flag.Bool("list", false, "List stored sessions and exit")
	deleteID := flag.String("delete", "", "Delete a stored session and exit")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *noExaggeration {
		cfg.Processing.Exaggeration = false
	}
	if *minArea > 0 {
		cfg.Hazard.MinZoneArea = *minArea
	}
	if *saveIntermediary {
		cfg.Output.SaveIntermediaryResults = true
	}
	if *maxSlope > 0 {
		cfg.Planner.MaxSlopeDegrees = *maxSlope
	}
	if *dbPath != "" {
		cfg.Storage.DatabasePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := store.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer db.Close()

	switch {
	case *list:
		listSessions(ctx, db)
	case *deleteID != "":
		if err := db.DeleteSession(ctx, *deleteID); err != nil {
			log.Fatalf("Failed to delete session: %v", err)
		}
		fmt.Printf("Deleted session %s\n", *deleteID)
	case *sessionID != "":
		q := query{start: *startFlag, goal: *goalFlag, toZone: *toZone}
		if err := planOnSession(ctx, db, cfg, *sessionID, q, *outputDir); err != nil {
			log.Fatalf("Path query failed: %v", err)
		}
	case *input != "":
		q := query{start: *startFlag, goal: *goalFlag, toZone: *toZone}
		if err := processInput(ctx, db, cfg, *input, *outputDir, *mesh, q); err != nil {
			log.Fatalf("Reconstruction failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(1)
	}
}

// query is an optional path request given on the command line
type query struct {
	start, goal string
	toZone      bool
}

func (q query) requested() bool {
	return q.start != "" && (q.goal != "" || q.toZone)
}

func processInput(ctx context.Context, db *store.Store, cfg *config.Config, input, outputDir string, exportMesh bool, q query) error {
	info, err := os.Stat(input)
	if err != nil {
		return err
	}
	paths := []string{input}
	if info.IsDir() {
		if paths, err = reconstruction.ListImages(input); err != nil {
			return err
		}
	}

	fmt.Println("================================")
	fmt.Println("LUNAR TERRAIN RECONSTRUCTION FROM SHADING")
	fmt.Println("================================")

	params := reconstruction.ParamsFromConfig(cfg)
	params.IntermediaryDir = filepath.Join(outputDir, cfg.Output.IntermediaryDir)
	reconstructor := reconstruction.NewReconstructor(params)

	startTime := time.Now()
	results := reconstructor.ProcessBatch(ctx, paths, cfg.Processing.NumCores)
	fmt.Printf("\nProcessed %d image(s) in %.2f seconds\n", len(paths), time.Since(startTime).Seconds())

	var failed int
	for _, br := range results {
		if br.Err != nil {
			failed++
			log.Printf("Warning: %s failed: %v", br.Path, br.Err)
			continue
		}
		res := br.Result

		sess := &store.Session{
			Source:       res.Source,
			Exaggeration: params.Scale,
			ImagResidue:  res.Surface.ImagResidue,
			Elevation:    res.Elevation,
			Zones:        res.Zones,
			Stats:        res.Stats,
		}
		if err := db.SaveSession(ctx, sess); err != nil {
			return fmt.Errorf("save session for %s: %w", res.Source, err)
		}

		dir := filepath.Join(outputDir, strings.TrimSuffix(res.Source, filepath.Ext(res.Source)))
		if err := writeProducts(dir, res, exportMesh); err != nil {
			return err
		}
		printSummary(sess, res)

		if q.requested() {
			if err := runQuery(ctx, db, cfg, sess, res.Slope, q, dir); err != nil {
				return err
			}
		}
	}

	if failed == len(results) {
		return errors.New("no image was reconstructed")
	}
	return nil
}

func writeProducts(dir string, res *reconstruction.Result, exportMesh bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := gridio.Save(filepath.Join(dir, "elevation.npy"), res.Elevation); err != nil {
		return fmt.Errorf("save elevation: %w", err)
	}

	viewer := visualization.NewViewer(res.Elevation, res.Slope, res.Hazard.Tiers)
	if err := viewer.SaveAll(dir, res.Zones, nil); err != nil {
		return fmt.Errorf("save images: %w", err)
	}
	if err := visualization.PlotSlopeDistribution(res.Stats.SlopeDistribution, filepath.Join(dir, "slope_distribution.png")); err != nil {
		log.Printf("Warning: failed to plot slope distribution: %v", err)
	}

	report := visualization.Report{Title: res.Source, Stats: res.Stats, Zones: res.Zones}
	if err := report.Save(filepath.Join(dir, "report.html")); err != nil {
		log.Printf("Warning: failed to write report: %v", err)
	}

	if exportMesh {
		m := stl.NewHeightfieldMesh(res.Elevation)
		if err := m.Save(filepath.Join(dir, "terrain.stl")); err != nil {
			log.Printf("Warning: failed to export mesh: %v", err)
		}
	}
	return nil
}

func printSummary(sess *store.Session, res *reconstruction.Result) {
	st := res.Stats
	fmt.Printf("\n%s (session %s)\n", res.Source, sess.ID)
	fmt.Printf("  Size: %dx%d, exaggeration %.0f\n", sess.Width, sess.Height, sess.Exaggeration)
	fmt.Printf("  Elevation: min %.2f, max %.2f, mean %.2f\n", st.MinElevation, st.MaxElevation, st.MeanElevation)
	fmt.Printf("  Mean slope: %.2f°, danger area %.1f%%\n", st.MeanSlope, st.DangerAreaPercent)
	fmt.Printf("  Hazard cuts: safe <= %.3f, moderate <= %.3f (normalized slope)\n",
		res.Hazard.Thresholds.Low, res.Hazard.Thresholds.Mid)
	if res.Anomalous {
		fmt.Println("  Warning: malformed gradient field, elevation is flat")
	}
	for _, b := range st.SlopeDistribution {
		fmt.Printf("    %-18s %6.2f%%\n", b.Label, b.Percent)
	}
	fmt.Printf("  Landing zones: %d\n", len(res.Zones))
	for i, z := range res.Zones {
		fmt.Printf("    #%d centre (%d,%d) area %d tilt %.2f° roughness %.3f\n",
			i+1, z.CenterCol, z.CenterRow, z.Area, z.TiltDegrees, z.Roughness)
	}
}

func planOnSession(ctx context.Context, db *store.Store, cfg *config.Config, id string, q query, outputDir string) error {
	if !q.requested() {
		return errors.New("-session needs -start and either -goal or -to-zone")
	}
	sess, err := db.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	return runQuery(ctx, db, cfg, sess, models.Grid{}, q, filepath.Join(outputDir, sess.ID))
}

// runQuery plans a path on the session's elevation grid, records it and
// writes the path overlay and profile. slopeGrid may be empty, in which case
// it is not used for the overlay.
func runQuery(ctx context.Context, db *store.Store, cfg *config.Config, sess *store.Session, slopeGrid models.Grid, q query, dir string) error {
	start, err := parsePoint(q.start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}

	var goal models.Point
	if q.toZone {
		zone, dist, ok := hazard.NewZoneIndex(sess.Zones).Nearest(start)
		if !ok {
			return errors.New("session has no landing zones")
		}
		goal = zone.Center()
		fmt.Printf("Nearest landing zone centre (%d,%d) at distance %.1f\n", goal.X, goal.Y, dist)
	} else if goal, err = parsePoint(q.goal); err != nil {
		return fmt.Errorf("invalid -goal: %w", err)
	}

	planner, err := pathfind.NewPlanner(sess.Elevation,
		pathfind.WithSteps(cfg.Planner.StepX, cfg.Planner.StepY),
		pathfind.WithElevationPenalty(cfg.Planner.ElevationPenalty),
	)
	if err != nil {
		return err
	}

	maxSlope := cfg.Planner.MaxSlopeDegrees
	result, found, err := planner.Find(ctx, start, goal, maxSlope)
	if err != nil {
		return err
	}

	pq := &store.PathQuery{
		SessionID: sess.ID,
		Start:     start,
		Goal:      goal,
		MaxSlope:  maxSlope,
		Found:     found,
		Cost:      result.Cost,
		Path:      result.Path,
	}
	if err := db.SavePathQuery(ctx, pq); err != nil {
		return fmt.Errorf("record path query: %w", err)
	}

	if !found {
		fmt.Printf("No path from (%d,%d) to (%d,%d) under %.1f° (%d cells expanded)\n",
			start.X, start.Y, goal.X, goal.Y, maxSlope, result.Expanded)
		return nil
	}
	fmt.Printf("Path from (%d,%d) to (%d,%d): %d cells, cost %.2f, %d cells expanded\n",
		start.X, start.Y, goal.X, goal.Y, len(result.Path), result.Cost, result.Expanded)

	return writePathProducts(dir, cfg, sess, slopeGrid, result.Path)
}

func writePathProducts(dir string, cfg *config.Config, sess *store.Session, slopeGrid models.Grid, path models.Path) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Sessions keep elevation only; slope and tiers are recomputed from it.
	if slopeGrid.Empty() {
		slopeGrid = slope.Compute(sess.Elevation)
	}
	cls, err := hazard.Classify(slopeGrid, cfg.Hazard.SafePercentile, cfg.Hazard.ModeratePercentile)
	if err != nil {
		return err
	}
	tiers := cls.Tiers
	viewer := visualization.NewViewer(sess.Elevation, slopeGrid, tiers)
	overlay := viewer.HazardMap()
	visualization.OverlayZones(overlay, sess.Zones)
	visualization.OverlayPath(overlay, path)
	if err := visualization.SaveImage(overlay, filepath.Join(dir, "path_overlay.png")); err != nil {
		return fmt.Errorf("save path overlay: %w", err)
	}

	profile := viewer.PathProfile(path)
	if err := visualization.PlotProfile("Path Elevation Profile", profile, filepath.Join(dir, "path_profile.png")); err != nil {
		log.Printf("Warning: failed to plot path profile: %v", err)
	}
	report := visualization.Report{Title: sess.Source, Stats: sess.Stats, Zones: sess.Zones, PathProfile: profile}
	if err := report.Save(filepath.Join(dir, "path_report.html")); err != nil {
		log.Printf("Warning: failed to write path report: %v", err)
	}
	return nil
}

func listSessions(ctx context.Context, db *store.Store) {
	sessions, err := db.ListSessions(ctx)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No stored sessions")
		return
	}
	for _, s := range sessions {
		queries, err := db.ListPathQueries(ctx, s.ID)
		if err != nil {
			log.Fatalf("Failed to list path queries: %v", err)
		}
		fmt.Printf("%s  %-24s %4dx%-4d  x%-5.0f %s  %d path queries\n",
			s.ID, s.Source, s.Width, s.Height, s.Exaggeration, s.CreatedAt.Format(time.RFC3339), len(queries))
	}
}

// parsePoint parses "x,y"
func parsePoint(s string) (models.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Point{}, fmt.Errorf("expected x,y, got %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return models.Point{}, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return models.Point{}, err
	}
	return models.Point{X: x, Y: y}, nil
}
