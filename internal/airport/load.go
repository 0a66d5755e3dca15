package airport

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"eventmap/internal/model"
)

// LoadFile loads an airport table from path. Files ending in .json are
// read with LoadJSON, everything else with LoadCSV.
func LoadFile(path string) (*Table, error) {
	if path == "" {
		return nil, errors.New("airport: table path is empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("airport: open %q: %w", path, err)
	}
	defer f.Close()

	var records []model.AirportRecord
	if strings.EqualFold(filepath.Ext(path), ".json") {
		records, err = LoadJSON(f)
	} else {
		records, err = LoadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("airport: load %q: %w", path, err)
	}
	return NewTable(records), nil
}

// jsonAirport matches the generated lookup file: identifier -> entry.
type jsonAirport struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// LoadJSON reads an object keyed by identifier with name/lat/lng values.
// Entries without a name or coordinates are skipped.
func LoadJSON(r io.Reader) ([]model.AirportRecord, error) {
	var raw map[string]jsonAirport
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode airports json: %w", err)
	}
	out := make([]model.AirportRecord, 0, len(raw))
	for id, a := range raw {
		if id == "" || a.Name == "" || a.Lat == nil || a.Lng == nil {
			continue
		}
		out = append(out, model.AirportRecord{
			Identifier:  id,
			Latitude:    *a.Lat,
			Longitude:   *a.Lng,
			DisplayName: a.Name,
		})
	}
	return out, nil
}

// Accepted header names for each CSV column, first match wins.
var (
	idColumns   = []string{"icao", "ident", "gps_code"}
	nameColumns = []string{"airport", "name"}
	latColumns  = []string{"latitude", "latitude_deg", "lat"}
	lngColumns  = []string{"longitude", "longitude_deg", "lng", "lon"}
)

// LoadCSV reads a CSV with a header row. It understands both the
// iata-icao.csv layout (icao, airport, latitude, longitude) and the
// OurAirports layout (ident, name, latitude_deg, longitude_deg). Rows with
// an empty identifier/name or unparsable coordinates are skipped.
func LoadCSV(r io.Reader) ([]model.AirportRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, col := range header {
		cols[strings.ToLower(strings.TrimSpace(col))] = i
	}

	idIdx, ok1 := pick(cols, idColumns)
	nameIdx, ok2 := pick(cols, nameColumns)
	latIdx, ok3 := pick(cols, latColumns)
	lngIdx, ok4 := pick(cols, lngColumns)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("missing required column (have %v)", header)
	}
	maxIdx := max(idIdx, nameIdx, latIdx, lngIdx)

	var out []model.AirportRecord
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if len(rec) <= maxIdx {
			continue
		}

		id := strings.TrimSpace(rec[idIdx])
		name := strings.TrimSpace(rec[nameIdx])
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[latIdx]), 64)
		lng, errLng := strconv.ParseFloat(strings.TrimSpace(rec[lngIdx]), 64)
		if id == "" || name == "" || errLat != nil || errLng != nil {
			continue
		}

		out = append(out, model.AirportRecord{
			Identifier:  id,
			Latitude:    lat,
			Longitude:   lng,
			DisplayName: name,
		})
	}
	return out, nil
}

func pick(cols map[string]int, names []string) (int, bool) {
	for _, n := range names {
		if i, ok := cols[n]; ok {
			return i, true
		}
	}
	return 0, false
}
