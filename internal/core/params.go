package core

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Parameter is one pollutant descriptor from the dimPollutant reference
// table. Float fields are NaN when the source cell is blank.
type Parameter struct {
	Code         string // AQS parameter code, e.g. "88101"
	Label        string // DEQ analyte name
	GroupStore   string // toxics, pm25, ozone, other
	AnalyteGroup string // Criteria, Toxics, ...
	MolWeight    float64
	CarbonAtoms  float64
	TRVCancer    float64
	TRVNoncancer float64
	TRVAcute     float64
}

// ParameterTable holds pollutant descriptors in file order with a code index.
type ParameterTable struct {
	Params []Parameter
	byCode map[string]int
}

// LoadParameters reads dimPollutant.csv. The aqs_parameter, analyte_name_deq
// and group_store columns are required; anything else missing is a fatal
// setup condition for the caller, not a skippable one.
func LoadParameters(path string) (*ParameterTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parameter table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read parameter table %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parameter table %s is empty", path)
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"aqs_parameter", "analyte_name_deq", "group_store"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("parameter table %s missing required column %q", path, required)
		}
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	num := func(row []string, name string) float64 {
		s := cell(row, name)
		if s == "" {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return v
	}

	t := &ParameterTable{byCode: map[string]int{}}
	for _, row := range records[1:] {
		code := cell(row, "aqs_parameter")
		label := cell(row, "analyte_name_deq")
		if code == "" || label == "" {
			continue
		}
		p := Parameter{
			Code:         code,
			Label:        label,
			GroupStore:   cell(row, "group_store"),
			AnalyteGroup: cell(row, "analyte_group"),
			MolWeight:    num(row, "mol_weight_g_mol"),
			CarbonAtoms:  num(row, "carbon_atoms"),
			TRVCancer:    num(row, "trv_cancer"),
			TRVNoncancer: num(row, "trv_noncancer"),
			TRVAcute:     num(row, "trv_acute"),
		}
		t.byCode[p.Code] = len(t.Params)
		t.Params = append(t.Params, p)
	}
	return t, nil
}

// ByCode returns the parameter for an AQS code.
func (t *ParameterTable) ByCode(code string) (Parameter, bool) {
	i, ok := t.byCode[code]
	if !ok {
		return Parameter{}, false
	}
	return t.Params[i], true
}

// GroupStore returns the pollutant group for a code, "other" when unknown.
func (t *ParameterTable) GroupStore(code string) string {
	if p, ok := t.ByCode(code); ok && p.GroupStore != "" {
		return p.GroupStore
	}
	return "other"
}

// Criteria returns the parameters whose analyte group is Criteria, in file
// order.
func (t *ParameterTable) Criteria() []Parameter {
	var out []Parameter
	for _, p := range t.Params {
		if p.AnalyteGroup == "Criteria" {
			out = append(out, p)
		}
	}
	return out
}

// Toxics returns the parameters whose group store is toxics, in file order.
func (t *ParameterTable) Toxics() []Parameter {
	var out []Parameter
	for _, p := range t.Params {
		if p.GroupStore == "toxics" {
			out = append(out, p)
		}
	}
	return out
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reUnsafe     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	reSeparators = regexp.MustCompile(`[-_]{2,}`)
	reEdges      = regexp.MustCompile(`(^[^A-Za-z0-9]+)|([^A-Za-z0-9]+$)`)
)

// SanitizeFilename converts a parameter label like "PM2.5 - Local Conditions"
// into a filesystem-safe token like "PM2.5-Local-Conditions". Result is
// capped at 80 characters and never empty.
func SanitizeFilename(name string) string {
	if name == "" {
		return "unknown"
	}
	s := reWhitespace.ReplaceAllString(name, "-")
	s = reUnsafe.ReplaceAllString(s, "")
	s = reSeparators.ReplaceAllString(s, "-")
	s = reEdges.ReplaceAllString(s, "")
	if s == "" {
		return "unknown"
	}
	if len(s) > 80 {
		s = strings.TrimRight(s[:80], "-_.")
	}
	return s
}
