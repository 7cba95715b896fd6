// Package aqs extracts sample, annual and daily summaries plus monitor and
// metadata records from the EPA AQS REST API, writing raw CSV files
// partitioned by pollutant group and year.
package aqs

import (
	"fmt"
	"net/url"
)

// baseURL is a var so tests can point the builders at a local server.
var baseURL = "https://aqs.epa.gov/data/api"

// Credentials authenticate every AQS request via query parameters.
type Credentials struct {
	Email string
	Key   string
}

func dataURL(endpoint string, creds Credentials, param, bdate, edate, state string) string {
	q := url.Values{}
	q.Set("email", creds.Email)
	q.Set("key", creds.Key)
	q.Set("param", param)
	q.Set("bdate", bdate)
	q.Set("edate", edate)
	q.Set("state", state)
	return fmt.Sprintf("%s/%s?%s", baseURL, endpoint, q.Encode())
}

// SampleDataURL builds the sampleData/byState request for one parameter and
// date window.
func SampleDataURL(creds Credentials, param, bdate, edate, state string) string {
	return dataURL("sampleData/byState", creds, param, bdate, edate, state)
}

// AnnualDataURL builds the annualData/byState request.
func AnnualDataURL(creds Credentials, param, bdate, edate, state string) string {
	return dataURL("annualData/byState", creds, param, bdate, edate, state)
}

// DailyDataURL builds the dailyData/byState request.
func DailyDataURL(creds Credentials, param, bdate, edate, state string) string {
	return dataURL("dailyData/byState", creds, param, bdate, edate, state)
}

// MonitorsURL builds the monitors/byState request.
func MonitorsURL(creds Credentials, param, bdate, edate, state string) string {
	return dataURL("monitors/byState", creds, param, bdate, edate, state)
}

// MetaIsAvailableURL is the unauthenticated API liveness probe.
func MetaIsAvailableURL() string {
	return baseURL + "/metaData/isAvailable"
}

// MetaFieldsByServiceURL lists the fields a data service returns.
func MetaFieldsByServiceURL(creds Credentials, service string) string {
	q := url.Values{}
	q.Set("email", creds.Email)
	q.Set("key", creds.Key)
	q.Set("service", service)
	return fmt.Sprintf("%s/metaData/fieldsByService?%s", baseURL, q.Encode())
}
