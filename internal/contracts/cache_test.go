package contracts

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/velofeed/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type fakeFetcher struct {
	calls  atomic.Int32
	mu     sync.Mutex
	cities []models.City
	err    error
	gate   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]models.City, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return models.CloneCities(f.cities), nil
}

func (f *fakeFetcher) set(cities []models.City, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities = cities
	f.err = err
}

func upstreamCities() []models.City {
	return []models.City{
		{Name: "paris", CommercialName: "Velib", Cities: []string{"Paris"}, CountryCode: "FR"},
		{Name: "valence", CommercialName: "Valence", Cities: []string{"Valence"}, CountryCode: "FR"},
		{Name: "seville", CommercialName: "Seville", Cities: nil, CountryCode: "XX"},
		{Name: "besancon", CommercialName: "Besancon", Cities: []string{"Besancon", "Other"}, CountryCode: "ES"},
	}
}

func TestListCities_CachedWithinWindow(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(clock.Now))
	ctx := context.Background()

	first, err := c.ListCities(ctx)
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	clock.Advance(RefreshWindow - time.Second)
	second, err := c.ListCities(ctx)
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}

	if got := f.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached results differ:\n%+v\n%+v", first, second)
	}
}

func TestListCities_RefreshAfterWindow(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(clock.Now))
	ctx := context.Background()

	if _, err := c.ListCities(ctx); err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	f.set([]models.City{{Name: "lyon"}}, nil)
	clock.Advance(RefreshWindow)

	cities, err := c.ListCities(ctx)
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
	if len(cities) != 1 || cities[0].Name != "lyon" {
		t.Errorf("expected refreshed batch, got %+v", cities)
	}
}

func TestListCities_SingleFlight(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{cities: upstreamCities(), gate: make(chan struct{})}
	c := New(f.Fetch, WithClock(clock.Now))

	const callers = 20
	var wg sync.WaitGroup
	results := make([][]models.City, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.ListCities(context.Background())
		}(i)
	}

	// let the callers pile up on the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if got := f.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !reflect.DeepEqual(results[i], results[0]) {
			t.Errorf("caller %d got a different batch", i)
		}
	}

	// shared flight results must not alias
	results[0][0].Cities[0] = "Mutated"
	if results[1][0].Cities[0] == "Mutated" {
		t.Error("callers share slices of the same result")
	}
}

func TestListCities_SingleFlightAfterWindow(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(clock.Now))
	ctx := context.Background()

	if _, err := c.ListCities(ctx); err != nil {
		t.Fatalf("ListCities: %v", err)
	}

	clock.Advance(RefreshWindow + time.Second)
	f.gate = make(chan struct{})

	const callers = 30
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListCities(ctx)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2 (initial load + one refetch)", got)
	}

	if _, err := c.ListCities(ctx); err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("refetched batch should be served from cache, calls = %d", got)
	}
}

func TestListCities_ErrorWithoutSnapshot(t *testing.T) {
	upstreamErr := errors.New("boom")
	f := &fakeFetcher{err: upstreamErr}
	c := New(f.Fetch, WithClock(newFakeClock().Now))

	if _, err := c.ListCities(context.Background()); !errors.Is(err, upstreamErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	// not poisoned: the next call fetches again and succeeds
	f.set(upstreamCities(), nil)
	cities, err := c.ListCities(context.Background())
	if err != nil {
		t.Fatalf("ListCities after recovery: %v", err)
	}
	if len(cities) != 4 {
		t.Errorf("got %d cities, want 4", len(cities))
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestListCities_StaleOnRefreshFailure(t *testing.T) {
	clock := newFakeClock()
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(clock.Now))
	ctx := context.Background()

	before, err := c.ListCities(ctx)
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}

	f.set(nil, errors.New("upstream down"))
	clock.Advance(2 * RefreshWindow)

	after, err := c.ListCities(ctx)
	if err != nil {
		t.Fatalf("expected stale snapshot, got error %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Error("stale snapshot should equal the previous batch")
	}

	// each call past the window retries upstream
	if _, err := c.ListCities(ctx); err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	if got := f.calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestListCities_OverridesApplied(t *testing.T) {
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(newFakeClock().Now))

	cities, err := c.ListCities(context.Background())
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}

	want := map[string]models.City{
		"paris":    {Name: "paris", CommercialName: "Velib", Cities: []string{"Paris"}, CountryCode: "FR"},
		"valence":  {Name: "valence", CommercialName: "Valenbisi", Cities: []string{"Valencia"}, CountryCode: "ES"},
		"seville":  {Name: "seville", CommercialName: "Sevici", Cities: []string{"Sevilla"}, CountryCode: "ES"},
		"besancon": {Name: "besancon", CommercialName: "VéloCité", Cities: []string{"Besançon"}, CountryCode: "FR"},
	}
	for _, city := range cities {
		if !reflect.DeepEqual(city, want[city.Name]) {
			t.Errorf("city %s = %+v, want %+v", city.Name, city, want[city.Name])
		}
	}
}

func TestListCities_ReturnsCopies(t *testing.T) {
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(newFakeClock().Now))
	ctx := context.Background()

	cities, _ := c.ListCities(ctx)
	cities[0].Name = "mutated"
	cities[1].Cities[0] = "mutated"

	again, _ := c.ListCities(ctx)
	if again[0].Name != "paris" || again[1].Cities[0] != "Valencia" {
		t.Error("caller mutation leaked into the cache")
	}
}

func TestGetCity(t *testing.T) {
	f := &fakeFetcher{cities: upstreamCities()}
	c := New(f.Fetch, WithClock(newFakeClock().Now))
	ctx := context.Background()

	city, ok, err := c.GetCity(ctx, "seville")
	if err != nil || !ok {
		t.Fatalf("GetCity(seville) = %v, %v", ok, err)
	}
	if city.CommercialName != "Sevici" {
		t.Errorf("override missing on lookup: %+v", city)
	}

	_, ok, err = c.GetCity(ctx, "atlantis")
	if err != nil {
		t.Fatalf("unknown city should not be an error: %v", err)
	}
	if ok {
		t.Error("unknown city should not be found")
	}
}

func TestGetCity_PropagatesFetchError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	c := New(f.Fetch, WithClock(newFakeClock().Now))

	if _, _, err := c.GetCity(context.Background(), "paris"); err == nil {
		t.Error("expected fetch error without a snapshot")
	}
}

func TestApplyOverrides_Idempotent(t *testing.T) {
	cities := upstreamCities()
	ApplyOverrides(cities)
	ApplyOverrides(cities)
	if cities[1].CommercialName != "Valenbisi" || len(cities[1].Cities) != 1 {
		t.Errorf("unexpected valence record: %+v", cities[1])
	}
}
