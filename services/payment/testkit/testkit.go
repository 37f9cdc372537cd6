// Package testkit provides fakes for exercising gateway adapters without a
// network connection.
package testkit

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"

	"multigateway-api/models"
)

// RecordedRequest is a request captured by FakeTransport.
type RecordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// FakeTransport is an http.RoundTripper that records requests and replays
// queued responses in order.
type FakeTransport struct {
	mu        sync.Mutex
	requests  []RecordedRequest
	responses []fakeResponse
}

type fakeResponse struct {
	status int
	body   string
	err    error
}

// Reply queues a response with the given status and body.
func (t *FakeTransport) Reply(status int, body string) *FakeTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, fakeResponse{status: status, body: body})
	return t
}

// Fail queues a transport error.
func (t *FakeTransport) Fail(err error) *FakeTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses = append(t.responses, fakeResponse{err: err})
	return t
}

func (t *FakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body.Close()
	}

	t.mu.Lock()
	t.requests = append(t.requests, RecordedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})
	if len(t.responses) == 0 {
		t.mu.Unlock()
		return nil, errors.New("testkit: no response queued")
	}
	next := t.responses[0]
	t.responses = t.responses[1:]
	t.mu.Unlock()

	if next.err != nil {
		return nil, next.err
	}
	return &http.Response{
		StatusCode: next.status,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(bytes.NewBufferString(next.body)),
		Request:    req,
	}, nil
}

// Client returns an http.Client using the transport.
func (t *FakeTransport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Requests returns a copy of the recorded requests.
func (t *FakeTransport) Requests() []RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RecordedRequest(nil), t.requests...)
}

// Last returns the most recent request, or the zero value when none was made.
func (t *FakeTransport) Last() RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return RecordedRequest{}
	}
	return t.requests[len(t.requests)-1]
}

// Test cards accepted by processor sandboxes.
const (
	VisaNumber       = "4111111111111111"
	MasterCardNumber = "5424000000000015"
	AmexNumber       = "370000000000002"
)

// Card returns a valid, unexpired card for the given number.
func Card(number string) *models.CreditCard {
	return &models.CreditCard{
		Number:            number,
		Month:             12,
		Year:              2099,
		FirstName:         "Longbob",
		LastName:          "Longsen",
		VerificationValue: "123",
	}
}
