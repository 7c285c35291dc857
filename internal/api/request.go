package api

import (
	"fmt"
	"net/http"

	"github.com/mirage/server/internal/preview"
	"github.com/mirage/server/internal/worldgen"
)

// optionalInt reads an integer query parameter, returning def when it is absent
func optionalInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return worldgen.ParseCoordinate(name, raw)
}

// parseArea reads the inclusive rectangle x0,y0,x1,y1 from the query string.
// Neither side may exceed maxSide tiles.
func parseArea(r *http.Request, maxSide int) (preview.Area, error) {
	query := r.URL.Query()
	var corners [4]int
	for i, name := range []string{"x0", "y0", "x1", "y1"} {
		raw := query.Get(name)
		if raw == "" {
			return preview.Area{}, fmt.Errorf("%w: query parameter %s is required", errBadRequest, name)
		}
		v, err := worldgen.ParseCoordinate(name, raw)
		if err != nil {
			return preview.Area{}, err
		}
		corners[i] = v
	}

	area := preview.Area{X0: corners[0], Y0: corners[1], X1: corners[2], Y1: corners[3]}
	if area.X1 < area.X0 || area.Y1 < area.Y0 {
		return preview.Area{}, fmt.Errorf("%w: x1 and y1 must not be less than x0 and y0", errBadRequest)
	}
	if !area.Fits(maxSide) {
		return preview.Area{}, fmt.Errorf("%w: area sides are limited to %d tiles", errBadRequest, maxSide)
	}
	return area, nil
}
