package shortener

import "fmt"

// InvalidRequestError is returned when the shortening service rejects the
// request with a 4xx status. It is never retried.
type InvalidRequestError struct {
	Status int
	Body   string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("shortening service rejected request: status %d: %s", e.Status, e.Body)
}

// UnparsableResponseError is returned when a successful response matches
// neither a known JSON shape nor a bare-URL body. The raw body is kept
// for diagnostics.
type UnparsableResponseError struct {
	Body string
}

func (e *UnparsableResponseError) Error() string {
	return fmt.Sprintf("unable to parse short url from response: %s", e.Body)
}
