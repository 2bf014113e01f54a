package metrics

// ReportPayload is the body POSTed to the Vigil reporter endpoint.
type ReportPayload struct {
	Replica  string  `json:"replica"`
	Interval float64 `json:"interval"`
	Load     Load    `json:"load"`
}

type Load struct {
	CPU float64 `json:"cpu"`
	RAM float64 `json:"ram"`
}

// LoadSample is one CPU/memory reading. Values are fractions and may
// briefly exceed 1.
type LoadSample struct {
	CPU float64
	Mem float64
}
