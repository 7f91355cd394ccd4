// Package export writes dispatch results as CSV tables and a JSON summary.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kilianp07/dcopf/core/results"
)

// File names written by WriteDir.
const (
	BusesFile      = "buses.csv"
	GeneratorsFile = "generators.csv"
	LinesFile      = "lines.csv"
	SummaryFile    = "summary.json"
)

// WriteJSON writes the full result to w in JSON format.
func WriteJSON(w io.Writer, res *results.DispatchResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteBusesCSV writes one row per bus: price, load, angle and load payment.
func WriteBusesCSV(w io.Writer, res *results.DispatchResult) error {
	rows := make([][]string, 0, len(res.Buses))
	for _, b := range res.Buses {
		rows = append(rows, []string{
			b.Bus,
			ftoa(b.LMP),
			ftoa(b.LoadMW),
			ftoa(b.AngleRad),
			ftoa(b.AngleDeg),
			ftoa(b.VoltagePU),
			b.LoadPayment.String(),
		})
	}
	return writeCSV(w, []string{"bus", "lmp", "load_mw", "angle_rad", "angle_deg", "voltage_pu", "load_payment"}, rows)
}

// WriteGeneratorsCSV writes one row per generator with its settlement.
func WriteGeneratorsCSV(w io.Writer, res *results.DispatchResult) error {
	rows := make([][]string, 0, len(res.Generators))
	for _, g := range res.Generators {
		rows = append(rows, []string{
			g.Generator,
			g.Bus,
			ftoa(g.OutputMW),
			ftoa(g.CostPerMWh),
			ftoa(g.LMP),
			strconv.FormatBool(g.Marginal),
			g.Revenue.String(),
			g.ProductionCost.String(),
		})
	}
	return writeCSV(w, []string{"generator", "bus", "output_mw", "cost_per_mwh", "lmp", "marginal", "revenue", "production_cost"}, rows)
}

// WriteLinesCSV writes one row per line. Unlimited lines leave limit_mw and
// loading_pct empty; lines whose current could not be derived carry the
// reason in current_error.
func WriteLinesCSV(w io.Writer, res *results.DispatchResult) error {
	rows := make([][]string, 0, len(res.Lines))
	for _, l := range res.Lines {
		limit, loading := "", ""
		if l.LimitMW != nil {
			limit = ftoa(*l.LimitMW)
			loading = ftoa(l.LoadingPct)
		}
		current, currentA, currentErr := ftoa(l.CurrentKA), ftoa(l.CurrentA), ""
		if l.CurrentErr != nil {
			current, currentA, currentErr = "", "", l.CurrentErr.Error()
		}
		rows = append(rows, []string{
			l.Line,
			l.From,
			l.To,
			ftoa(l.FlowMW),
			limit,
			loading,
			strconv.FormatBool(l.AtLimit),
			ftoa(l.CongestionRent),
			current,
			currentA,
			currentErr,
		})
	}
	return writeCSV(w, []string{"line", "from", "to", "flow_mw", "limit_mw", "loading_pct", "at_limit", "congestion_rent", "current_ka", "current_a", "current_error"}, rows)
}

// WriteDir writes the three tables and the summary into dir, creating it
// when needed.
func WriteDir(dir string, res *results.DispatchResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	writers := []struct {
		name  string
		write func(io.Writer, *results.DispatchResult) error
	}{
		{BusesFile, WriteBusesCSV},
		{GeneratorsFile, WriteGeneratorsCSV},
		{LinesFile, WriteLinesCSV},
		{SummaryFile, WriteJSON},
	}
	for _, wr := range writers {
		if err := writeFile(filepath.Join(dir, wr.name), res, wr.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, res *results.DispatchResult, write func(io.Writer, *results.DispatchResult) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(f, res); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
