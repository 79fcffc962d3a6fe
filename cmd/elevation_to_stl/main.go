// Command elevation_to_stl converts an elevation grid into a
// triangle mesh and saves it as an STL file.
//
// The grid is read either from a .npy file (float64 or
// float32, row-major) or from a stored session in the
// lunarterrain database.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/pkg/errors"
	"github.com/unixpickle/essentials"

	"lunarterrain/internal/models"
	"lunarterrain/pkg/gridio"
	"lunarterrain/pkg/stl"
	"lunarterrain/pkg/store"
)

func main() {
	var inputPath string
	var dbPath string
	var sessionID string
	var outputPath string
	var cellSize float64
	var zScale float64
	flag.StringVar(&inputPath, "input", "", "input .npy elevation array")
	flag.StringVar(&dbPath, "db", "lunarterrain.db", "session database, used with -session")
	flag.StringVar(&sessionID, "session", "", "stored session to export instead of -input")
	flag.StringVar(&outputPath, "output", "terrain.stl", "output STL file")
	flag.Float64Var(&cellSize, "cell-size", 1, "horizontal size of one grid cell")
	flag.Float64Var(&zScale, "z-scale", 1, "multiplier applied to elevation values")
	flag.Parse()

	grid, err := readGrid(inputPath, dbPath, sessionID)
	essentials.Must(err)

	mesh := stl.NewHeightfieldMesh(grid)
	mesh.SetScale(cellSize, zScale)
	essentials.Must(errors.Wrap(mesh.Save(outputPath), "save mesh"))

	log.Printf("Wrote %d triangles for a %dx%d grid to %s",
		2*(grid.Width-1)*(grid.Height-1), grid.Width, grid.Height, outputPath)
}

func readGrid(inputPath, dbPath, sessionID string) (models.Grid, error) {
	if sessionID != "" {
		ctx := context.Background()
		db, err := store.Open(ctx, dbPath)
		if err != nil {
			return models.Grid{}, errors.Wrap(err, "open session store")
		}
		defer db.Close()
		grid, err := db.LoadElevation(ctx, sessionID)
		return grid, errors.Wrap(err, "load session elevation")
	}
	if inputPath == "" {
		return models.Grid{}, errors.New("read grid: need -input or -session")
	}
	grid, err := gridio.Load(inputPath)
	return grid, errors.Wrap(err, "read elevation array")
}
