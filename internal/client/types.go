package client

// Response is what came back from Vigil. The body is kept for error reports.
type Response struct {
	StatusCode int
	Body       string
}
