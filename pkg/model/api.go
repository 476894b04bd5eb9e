package model

import "time"

// Response is the envelope around every JSON answer of the API.
type Response struct {
	Status     string      `json:"status"` // "ok" or "error"
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination describes one page of a list answer.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Page sizes accepted by list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListOptions selects a page of stored graphs.
type ListOptions struct {
	Limit  int
	Offset int
	Name   string // exact graph name; empty matches all
}

func DefaultListOptions() ListOptions {
	return ListOptions{Limit: DefaultPageSize}
}

// Clamp brings Limit into [1, MaxPageSize] and Offset to at least zero.
func (o *ListOptions) Clamp() {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultPageSize
	case o.Limit > MaxPageSize:
		o.Limit = MaxPageSize
	}
	o.Offset = max(o.Offset, 0)
}

// Page describes the n items returned for o out of total matches.
func (o ListOptions) Page(total, n int) *Pagination {
	return &Pagination{
		Total:   total,
		Limit:   o.Limit,
		Offset:  o.Offset,
		HasMore: o.Offset+n < total,
	}
}
