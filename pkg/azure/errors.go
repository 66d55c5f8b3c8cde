package azure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error categories returned by the gateway. Match with errors.Is.
var (
	ErrAuthInvalid       = errors.New("authentication invalid")
	ErrNetwork           = errors.New("network failure")
	ErrRemoteAPI         = errors.New("remote api error")
	ErrMalformedResponse = errors.New("malformed response")
	ErrPartialFetch      = errors.New("partial fetch loss")
)

// APIError is a failed call to the tracking API.
type APIError struct {
	Kind       error
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Kind }

// PartialFetchError lists the ids whose batches failed during a fetch.
// The items of the other batches are still returned alongside it. The batch
// errors only feed the message; the error matches ErrPartialFetch alone.
type PartialFetchError struct {
	IDs  []int
	Errs []error
}

func (e *PartialFetchError) Error() string {
	ids := make([]string, 0, len(e.IDs))
	for _, id := range e.IDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("%s: %d ids not loaded (%s): %v", ErrPartialFetch, len(e.IDs), strings.Join(ids, ","), errors.Join(e.Errs...))
}

func (e *PartialFetchError) Is(target error) bool { return target == ErrPartialFetch }

func (e *PartialFetchError) add(ids []int, err error) {
	e.IDs = append(e.IDs, ids...)
	e.Errs = append(e.Errs, err)
	sort.Ints(e.IDs)
}

// LostIDs returns the ids of a partial fetch loss carried by err, if any.
func LostIDs(err error) []int {
	var pf *PartialFetchError
	if errors.As(err, &pf) {
		return pf.IDs
	}
	return nil
}
