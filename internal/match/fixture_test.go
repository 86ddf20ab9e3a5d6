package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/patientid/internal/cache"
	"github.com/saturnino-fabrica-de-software/patientid/internal/domain"
)

const testDimension = 128

var errFetchBroken = domain.ErrFetchNetwork.WithError(errors.New("connection refused"))

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func probe() domain.Descriptor {
	return make(domain.Descriptor, testDimension)
}

// at returns a descriptor whose distance from probe() is exactly d
// (to float32 precision).
func at(d float64) domain.Descriptor {
	out := make(domain.Descriptor, testDimension)
	out[0] = float32(d)
	return out
}

func portraitURL(key string) string {
	return "https://portraits.test/" + key + ".jpg"
}

func identity(key string) domain.Identity {
	return domain.Identity{Key: key, Name: "Patient " + key, PortraitURL: portraitURL(key)}
}

// fakeFetcher serves canned bytes per URL and counts every call.
type fakeFetcher struct {
	mu          sync.Mutex
	images      map[string][]byte
	errs        map[string]error
	calls       map[string]int
	cached      map[string]struct{}
	evicted     []string
	delay       time.Duration
	honorCtx    bool
	inFlight    int
	maxInFlight int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		images: make(map[string][]byte),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
		cached: make(map[string]struct{}),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	delay, honorCtx := f.delay, f.honorCtx
	f.mu.Unlock()

	if delay > 0 {
		if honorCtx {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				f.mu.Lock()
				f.inFlight--
				f.mu.Unlock()
				return nil, ctx.Err()
			}
		} else {
			time.Sleep(delay)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	data, ok := f.images[url]
	if !ok {
		return nil, errFetchBroken
	}
	f.cached[url] = struct{}{}
	return data, nil
}

func (f *fakeFetcher) Evict(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cached, url)
	f.evicted = append(f.evicted, url)
}

func (f *fakeFetcher) CacheLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cached)
}

func (f *fakeFetcher) ClearCache() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.cached)
	f.cached = make(map[string]struct{})
	return n
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeFetcher) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// fakeExtractor maps image bytes to descriptors or errors.
type fakeExtractor struct {
	mu          sync.Mutex
	descriptors map[string]domain.Descriptor
	errs        map[string]error
	calls       int
	dimensions  []int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		descriptors: make(map[string]domain.Descriptor),
		errs:        make(map[string]error),
	}
}

func (x *fakeExtractor) Extract(ctx context.Context, data []byte, maxDimension int) (domain.Descriptor, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls++
	x.dimensions = append(x.dimensions, maxDimension)

	if err, ok := x.errs[string(data)]; ok {
		return nil, err
	}
	d, ok := x.descriptors[string(data)]
	if !ok {
		return nil, domain.ErrDecodeFailure
	}
	return d.Clone(), nil
}

type fixture struct {
	engine    *Engine
	store     *cache.DescriptorCache
	fetcher   *fakeFetcher
	extractor *fakeExtractor
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		store:     cache.NewDescriptorCache(),
		fetcher:   newFakeFetcher(),
		extractor: newFakeExtractor(),
	}
	f.engine = NewEngine(f.store, f.fetcher, f.extractor, cfg, testLogger())
	return f
}

// enroll makes key resolvable to a descriptor at distance d from probe().
func (f *fixture) enroll(key string, d float64) domain.Identity {
	id := identity(key)
	data := []byte("img-" + key)
	f.fetcher.images[id.PortraitURL] = data
	f.extractor.descriptors[string(data)] = at(d)
	return id
}

// enrollFailing makes extraction for key fail with err.
func (f *fixture) enrollFailing(key string, err error) domain.Identity {
	id := identity(key)
	data := []byte("img-" + key)
	f.fetcher.images[id.PortraitURL] = data
	f.extractor.errs[string(data)] = err
	return id
}
