package apiclient

import (
	"context"
	"net/http"
	"sync"
)

// Response is what interceptors see of a completed backend call.
type Response struct {
	Method     string
	Route      string // route template, e.g. "/users/{id}"
	StatusCode int
	Header     http.Header
	Body       []byte

	// Authenticated is true when the request carried a bearer credential.
	Authenticated bool
}

// ResponseInterceptor observes every backend response before the caller
// sees it. A non-nil error replaces the call's result.
type ResponseInterceptor interface {
	InterceptResponse(ctx context.Context, resp *Response) error
}

// InterceptorFunc adapts a function to ResponseInterceptor.
type InterceptorFunc func(ctx context.Context, resp *Response) error

func (f InterceptorFunc) InterceptResponse(ctx context.Context, resp *Response) error {
	return f(ctx, resp)
}

type registered struct {
	id int
	ic ResponseInterceptor
}

// interceptors is an ordered, concurrency-safe interceptor list.
type interceptors struct {
	mu     sync.RWMutex
	list   []registered
	nextID int
}

func (l *interceptors) add(ic ResponseInterceptor) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.list = append(l.list, registered{id: id, ic: ic})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, r := range l.list {
				if r.id == id {
					l.list = append(l.list[:i:i], l.list[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *interceptors) snapshot() []ResponseInterceptor {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ResponseInterceptor, len(l.list))
	for i, r := range l.list {
		out[i] = r.ic
	}
	return out
}

func (l *interceptors) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.list)
}

// run calls each interceptor in registration order and stops at the
// first error.
func (l *interceptors) run(ctx context.Context, resp *Response) error {
	for _, ic := range l.snapshot() {
		if err := ic.InterceptResponse(ctx, resp); err != nil {
			return err
		}
	}
	return nil
}
