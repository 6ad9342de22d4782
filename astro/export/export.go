// Package export writes propagated state tables to CSV and JSON, the
// reference tabular I/O tests and tooling consume (spec §6.2: "CSV tables
// of (instant, x, y, z, vx, vy, vz, ...)").
//
// Grounded on the teacher's export.go: StreamStates' CSV/JSON dual output
// (encoding/csv rows per state, encoding/json for the catalog wrapper) and
// createAsCSVCSVFile's header-then-rows layout, stripped of the
// Cosmographia-specific catalog/trajectory-file machinery — this module's
// solutions are already in-memory state lists, so no channel streaming or
// per-origin file splitting is needed.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/open-space-collective/open-space-toolkit-astrodynamics-sub005/astro/coordinates"
)

// WriteStatesCSV writes one header row (instant, then each subset's named
// components) followed by one row per state. Every state must share the
// first state's broker.
func WriteStatesCSV(w io.Writer, states []*coordinates.State) error {
	if len(states) == 0 {
		return fmt.Errorf("export: no states to write")
	}
	broker := states[0].Broker()
	header := []string{"instant"}
	for _, s := range broker.Subsets() {
		if s.Size() == 1 {
			header = append(header, s.Name())
			continue
		}
		for k := 0; k < s.Size(); k++ {
			header = append(header, fmt.Sprintf("%s_%d", s.Name(), k))
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, state := range states {
		if !state.Broker().Equals(broker) {
			return fmt.Errorf("export: state at %s has a different broker than the first state", state.Instant().Format(time.RFC3339))
		}
		row := make([]string, 0, len(header))
		row = append(row, state.Instant().UTC().Format(time.RFC3339Nano))
		for _, v := range state.Vector() {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// stateRecord is the JSON shape of one exported state.
type stateRecord struct {
	Instant     time.Time            `json:"instant"`
	Frame       string               `json:"frame"`
	Coordinates map[string][]float64 `json:"coordinates"`
}

// WriteStatesJSON writes the states as a JSON array of per-subset keyed
// records, the structured counterpart of WriteStatesCSV.
func WriteStatesJSON(w io.Writer, states []*coordinates.State) error {
	records := make([]stateRecord, len(states))
	for i, state := range states {
		coords := make(map[string][]float64)
		for _, s := range state.Broker().Subsets() {
			v, err := state.Extract(s.Name())
			if err != nil {
				return err
			}
			coords[s.Name()] = v
		}
		records[i] = stateRecord{Instant: state.Instant().UTC(), Frame: state.Frame().Name(), Coordinates: coords}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// StatesToFile writes the states to <dir>/<name>.csv or .json depending on
// asJSON, creating the file the way the teacher's createAsCSVCSVFile does.
func StatesToFile(dir, name string, states []*coordinates.State, asJSON bool) (string, error) {
	ext := ".csv"
	if asJSON {
		ext = ".json"
	}
	path := filepath.Join(dir, name+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if asJSON {
		err = WriteStatesJSON(f, states)
	} else {
		err = WriteStatesCSV(f, states)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
