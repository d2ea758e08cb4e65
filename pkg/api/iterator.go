package api

import (
	"context"
	"encoding/json"
	"iter"

	"go.uber.org/zap"

	"github.com/Checker-Finance/recommend-go/internal/metrics"
)

const (
	// DefaultPageSize is the limit sent with the first page; later pages use the
	// limit reported by the server.
	DefaultPageSize = 3000
	// DefaultMaxFailed is the number of consecutive page failures tolerated.
	DefaultMaxFailed = 5
)

// IteratorOption configures an Iterator.
type IteratorOption func(*Iterator)

// WithStartSkip sets the initial skip offset.
func WithStartSkip(skip int) IteratorOption {
	return func(it *Iterator) { it.skip = skip }
}

// WithMaxFailed sets how many consecutive failures are retried before giving up.
func WithMaxFailed(n int) IteratorOption {
	return func(it *Iterator) { it.maxFailed = n }
}

// WithPageSize sets the limit sent with the first page.
func WithPageSize(n int) IteratorOption {
	return func(it *Iterator) { it.limit = n }
}

// WithIteratorLogger sets the logger used for failed pages.
func WithIteratorLogger(l *zap.Logger) IteratorOption {
	return func(it *Iterator) {
		if l != nil {
			it.logger = l
		}
	}
}

// Iterator walks a skip/limit paginated search one item at a time.
// It is forward-only and cannot be restarted; create a new one to search again.
//
//	it := api.NewIterator(searcher)
//	for it.Next(ctx) {
//	    handle(it.Item())
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	searcher  Searchable
	logger    *zap.Logger
	maxFailed int

	skip   int
	limit  int
	failed int

	buf  []json.RawMessage
	item json.RawMessage
	done bool
	err  error
}

// NewIterator creates an Iterator over s.
func NewIterator(s Searchable, opts ...IteratorOption) *Iterator {
	it := &Iterator{
		searcher:  s,
		logger:    zap.NewNop(),
		maxFailed: DefaultMaxFailed,
		limit:     DefaultPageSize,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

// Next advances to the next item, fetching pages as needed. It returns false when
// the results are exhausted or an error ended the iteration; check Err.
func (it *Iterator) Next(ctx context.Context) bool {
	for {
		if len(it.buf) > 0 {
			it.item = it.buf[0]
			it.buf = it.buf[1:]
			return true
		}
		if it.done {
			it.item = nil
			return false
		}
		it.fetch(ctx)
	}
}

// Item returns the current item.
func (it *Iterator) Item() json.RawMessage {
	return it.item
}

// Err returns the error that ended the iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// All returns the remaining items as a sequence. Breaking out of the loop stops
// further page requests. A terminal error is yielded last.
func (it *Iterator) All(ctx context.Context) iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Item(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (it *Iterator) fetch(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		it.finish(err)
		return
	}

	raw, err := it.searcher.Search(ctx, Page{Skip: it.skip, Limit: it.limit})
	var page searchPage
	if err == nil {
		// any response ends a run of failures, usable body or not
		it.failed = 0
		page, err = parsePage(raw)
	}
	if err != nil {
		if !IsAPIError(err) {
			it.finish(err)
			return
		}
		it.failed++
		metrics.IncSearchPageFailure()
		it.logger.Warn("recommend.search.page_failed",
			zap.Int("skip", it.skip),
			zap.Int("limit", it.limit),
			zap.Int("failed_count", it.failed),
			zap.Error(err))
		if it.failed > it.maxFailed {
			it.finish(err)
		}
		return
	}

	limit, total := int(page.Limit), int(page.Total)
	it.buf = page.Data
	it.limit = limit
	if limit <= 0 || total < limit {
		it.done = true
		return
	}
	it.skip += limit
}

func (it *Iterator) finish(err error) {
	it.err = err
	it.done = true
	it.buf = nil
}

// Limit and Total are floats so servers rendering them as 1000.0 still page.
type searchPage struct {
	Data  []json.RawMessage `json:"data"`
	Limit float64           `json:"limit"`
	Total float64           `json:"total"`
}

// parsePage decodes a search response. Anything that is not a JSON object is an
// API error so the iterator retries it like a failed request.
func parsePage(raw json.RawMessage) (searchPage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return searchPage{}, &Error{Message: "empty result", Body: raw, Err: err}
	}
	var page searchPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return searchPage{}, &Error{Message: "malformed search page", Body: raw, Err: err}
	}
	return page, nil
}

// SearchAll drains a new iterator over s into a slice.
func SearchAll(ctx context.Context, s Searchable, opts ...IteratorOption) ([]json.RawMessage, error) {
	it := NewIterator(s, opts...)
	var items []json.RawMessage
	for it.Next(ctx) {
		items = append(items, it.Item())
	}
	return items, it.Err()
}
