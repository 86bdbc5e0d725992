package fetcher

import "fmt"

// TransportError reports a failed request or a non-200 response.
type TransportError struct {
	StatusCode int    // 0 when the request never got a response
	URL        string // API key redacted
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request %s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a body that does not match the expected envelope.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// DecodeError reports a record payload that is not base64 encoded UTF-8 text.
type DecodeError struct {
	RecordID string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record %s: %v", e.RecordID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
