package api

import (
	"context"
	"encoding/json"
	"sync"
)

type fakeToken struct {
	expired     bool
	needRefresh bool
}

func (t fakeToken) IsExpired() bool   { return t.expired }
func (t fakeToken) NeedRefresh() bool { return t.needRefresh }

type sentCall struct {
	Method string
	Path   string
	Data   any
	Opts   RequestOptions
}

// fakeTransport records every call. SetAuthToken installs a token unless
// noInstall is set; RefreshToken replaces the token with a fresh one.
type fakeTransport struct {
	mu sync.Mutex

	installed  bool
	token      fakeToken
	noInstall  bool
	setErr     error
	refreshErr error

	ops   []string
	calls []sentCall
	reply func(c sentCall) (json.RawMessage, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{installed: true}
}

func (f *fakeTransport) Send(_ context.Context, method, path string, data any, opts ...RequestOption) (json.RawMessage, error) {
	f.mu.Lock()
	c := sentCall{Method: method, Path: path, Data: data, Opts: ApplyOptions(opts...)}
	f.calls = append(f.calls, c)
	f.ops = append(f.ops, "send")
	reply := f.reply
	f.mu.Unlock()

	if reply != nil {
		return reply(c)
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeTransport) IsAuthTokenSet() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed
}

func (f *fakeTransport) SetAuthToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "set")
	if f.setErr != nil {
		return f.setErr
	}
	if !f.noInstall {
		f.installed = true
	}
	return nil
}

func (f *fakeTransport) RefreshToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "refresh")
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token = fakeToken{}
	return nil
}

func (f *fakeTransport) AuthToken() TokenState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTransport) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.ops {
		if o == op {
			n++
		}
	}
	return n
}

func (f *fakeTransport) lastCall() sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}
