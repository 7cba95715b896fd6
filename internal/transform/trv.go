package transform

import (
	"fmt"
	"math"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/core"
)

var sampleTRVColumns = []string{
	"site_code", "parameter_code", "poc", "parameter", "date_local",
	"sample_measurement", "units_of_measure", "sample_measurement_ug_m3",
	"trv_cancer", "trv_noncancer", "trv_acute",
	"xtrv_cancer", "xtrv_noncancer", "xtrv_acute",
	"sample_duration", "sample_frequency", "detection_limit",
	"uncertainty", "qualifier", "method_type", "method", "method_code",
}

var annualTRVColumns = []string{
	"site_code", "parameter", "sample_duration", "parameter_code", "poc", "method", "year",
	"units_of_measure",
	"observation_count", "observation_percent", "validity_indicator",
	"valid_day_count", "required_day_count", "exceptional_data_count", "null_observation_count",
	"primary_exceedance_count", "secondary_exceedance_count", "certification_indicator",
	"arithmetic_mean", "arithmetic_mean_ug_m3", "ugm3_converted",
	"xtrv_cancer", "xtrv_noncancer", "standard_deviation",
	"first_max_value", "first_max_value_ug_m3", "xtrv_acute_first", "first_max_datetime",
	"second_max_value", "second_max_value_ug_m3", "xtrv_acute_second", "second_max_datetime",
	"third_max_value", "third_max_datetime", "fourth_max_value", "fourth_max_datetime",
	"first_max_nonoverlap_value", "first_max_n_o_datetime", "second_max_nonoverlap_value",
	"second_max_n_o_datetime", "ninety_ninth_percentile", "ninety_eighth_percentile",
	"ninety_fifth_percentile", "ninetieth_percentile", "seventy_fifth_percentile",
	"fiftieth_percentile", "tenth_percentile",
}

// toxicsLookup indexes the toxics subset of the pollutant table by code.
func toxicsLookup(params *core.ParameterTable) map[string]core.Parameter {
	lookup := map[string]core.Parameter{}
	for _, p := range params.Toxics() {
		lookup[p.Code] = p
	}
	return lookup
}

// ToxicsSampleTRV rewrites raw sample toxics rows into TRV exceedance
// records: units normalized, measurements converted to ug/m3, exceedance
// ratios against the cancer, noncancer and acute reference values, and a
// fixed output column order.
func ToxicsSampleTRV(df *core.Frame, params *core.ParameterTable) *core.Frame {
	lookup := toxicsLookup(params)

	df.AddComputedColumn("units_of_measurement_norm", func(row int) string {
		return NormalizeUnit(df.Value(row, "units_of_measure"))
	})
	df.AddComputedColumn("sample_measurement_ug_m3", func(row int) string {
		p := lookup[df.Value(row, "parameter_code")]
		return fmtNum(ToUgM3(
			parseNum(df.Value(row, "sample_measurement")),
			df.Value(row, "units_of_measurement_norm"),
			molWeightOf(p), carbonAtomsOf(p)))
	})

	addTRVColumns(df, lookup)
	df.AddComputedColumn("xtrv_cancer", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "sample_measurement_ug_m3")), parseNum(df.Value(row, "trv_cancer"))))
	})
	df.AddComputedColumn("xtrv_noncancer", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "sample_measurement_ug_m3")), parseNum(df.Value(row, "trv_noncancer"))))
	})
	df.AddComputedColumn("xtrv_acute", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "sample_measurement_ug_m3")), parseNum(df.Value(row, "trv_acute"))))
	})

	df.AddComputedColumn("site_code", func(row int) string {
		return df.Value(row, "county_code") + df.Value(row, "site_number")
	})

	return withColumns(df, sampleTRVColumns)
}

// ToxicsAnnualTRV is the annual-aggregate variant: the mean drives the
// cancer and noncancer exceedances while the first and second maxima drive
// the acute ones.
func ToxicsAnnualTRV(df *core.Frame, params *core.ParameterTable) *core.Frame {
	lookup := toxicsLookup(params)

	df.AddComputedColumn("units_of_measure_norm", func(row int) string {
		return NormalizeUnit(df.Value(row, "units_of_measure"))
	})
	convert := func(column string) func(int) string {
		return func(row int) string {
			p := lookup[df.Value(row, "parameter_code")]
			return fmtNum(ToUgM3(
				parseNum(df.Value(row, column)),
				df.Value(row, "units_of_measure_norm"),
				molWeightOf(p), carbonAtomsOf(p)))
		}
	}
	df.AddComputedColumn("arithmetic_mean_ug_m3", convert("arithmetic_mean"))
	df.AddComputedColumn("first_max_value_ug_m3", convert("first_max_value"))
	df.AddComputedColumn("second_max_value_ug_m3", convert("second_max_value"))

	addTRVColumns(df, lookup)
	df.AddComputedColumn("xtrv_cancer", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "arithmetic_mean_ug_m3")), parseNum(df.Value(row, "trv_cancer"))))
	})
	df.AddComputedColumn("xtrv_noncancer", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "arithmetic_mean_ug_m3")), parseNum(df.Value(row, "trv_noncancer"))))
	})
	df.AddComputedColumn("xtrv_acute_first", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "first_max_value_ug_m3")), parseNum(df.Value(row, "trv_acute"))))
	})
	df.AddComputedColumn("xtrv_acute_second", func(row int) string {
		return fmtNum(SafeDiv(parseNum(df.Value(row, "second_max_value_ug_m3")), parseNum(df.Value(row, "trv_acute"))))
	})

	df.AddComputedColumn("site_code", func(row int) string {
		return SiteCode(df.Value(row, "state_code"), df.Value(row, "county_code"), df.Value(row, "site_number"))
	})
	df.AddComputedColumn("ugm3_converted", func(row int) string {
		return df.Value(row, "arithmetic_mean_ug_m3")
	})

	return withColumns(df, annualTRVColumns)
}

func addTRVColumns(df *core.Frame, lookup map[string]core.Parameter) {
	trv := func(pick func(core.Parameter) float64) func(int) string {
		return func(row int) string {
			p, ok := lookup[df.Value(row, "parameter_code")]
			if !ok {
				return ""
			}
			return fmtNum(pick(p))
		}
	}
	df.AddComputedColumn("trv_cancer", trv(func(p core.Parameter) float64 { return p.TRVCancer }))
	df.AddComputedColumn("trv_noncancer", trv(func(p core.Parameter) float64 { return p.TRVNoncancer }))
	df.AddComputedColumn("trv_acute", trv(func(p core.Parameter) float64 { return p.TRVAcute }))
}

func molWeightOf(p core.Parameter) float64 {
	if p.Code == "" {
		return math.NaN()
	}
	return p.MolWeight
}

func carbonAtomsOf(p core.Parameter) float64 {
	if p.Code == "" {
		return math.NaN()
	}
	return p.CarbonAtoms
}

// SiteCode builds the canonical 9-digit site code: 2-digit state, 3-digit
// county, 4-digit site number. Non-numeric parts coerce to zero.
func SiteCode(state, county, site string) string {
	return fmt.Sprintf("%02d%03d%04d", intOrZero(state), intOrZero(county), intOrZero(site))
}

func intOrZero(s string) int {
	v := parseNum(s)
	if math.IsNaN(v) {
		return 0
	}
	return int(v)
}

// withColumns returns df restricted to the fixed column list, adding any
// missing columns as empty so the output schema is stable.
func withColumns(df *core.Frame, columns []string) *core.Frame {
	for _, c := range columns {
		if !df.HasColumn(c) {
			df.AddColumn(c, "")
		}
	}
	return df.Select(columns...)
}
