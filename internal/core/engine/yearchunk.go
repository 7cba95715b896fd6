// Package engine drives the extraction run: calendar-year chunking,
// per-service checkpointing, the skipped-parameter ledger, and the
// orchestrator that walks services, years and parameters.
package engine

import "time"

// YearChunk is one calendar-year slice of a date range, in the YYYYMMDD
// form the AQS API expects.
type YearChunk struct {
	Year  int
	BDate string
	EDate string
}

// YearChunks splits [begin, end] into calendar-year chunks. The first chunk
// starts at begin, the last ends at end, and interior chunks span full
// years. begin after end yields nil.
func YearChunks(begin, end time.Time) []YearChunk {
	if begin.After(end) {
		return nil
	}
	var chunks []YearChunk
	for year := begin.Year(); year <= end.Year(); year++ {
		c := YearChunk{Year: year, BDate: yyyymmdd(year, 1, 1), EDate: yyyymmdd(year, 12, 31)}
		if year == begin.Year() {
			c.BDate = begin.Format("20060102")
		}
		if year == end.Year() {
			c.EDate = end.Format("20060102")
		}
		chunks = append(chunks, c)
	}
	return chunks
}

func yyyymmdd(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format("20060102")
}
