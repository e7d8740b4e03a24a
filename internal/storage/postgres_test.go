package storage

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/velofeed/internal/models"
)

func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("VELOFEED_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("VELOFEED_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := NewPostgres(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostgres_AlertLifecycle(t *testing.T) {
	p := newTestPostgres(t)
	ctx := context.Background()
	city := "test-" + uuid.NewString()

	if a, err := p.Latest(ctx, city); err != nil || a != nil {
		t.Fatalf("Latest on empty city = %+v, %v", a, err)
	}

	first, err := p.Append(ctx, city, []string{"3", "7"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := p.Touch(ctx, first.Ref()); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	second, err := p.Append(ctx, city, []string{"7"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	latest, err := p.Latest(ctx, city)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != second.ID || !reflect.DeepEqual(latest.StationsDown, []string{"7"}) {
		t.Errorf("latest = %+v, want %+v", latest, second)
	}

	h, err := p.History(ctx, city, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h) != 2 {
		t.Errorf("history length = %d, want 2", len(h))
	}

	cities, err := p.Cities(ctx)
	if err != nil {
		t.Fatalf("Cities: %v", err)
	}
	found := false
	for _, c := range cities {
		found = found || c == city
	}
	if !found {
		t.Errorf("Cities = %v, missing %s", cities, city)
	}

	err = p.Touch(ctx, models.AlertRef{City: city, ID: uuid.NewString()})
	if !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("Touch missing = %v, want ErrAlertNotFound", err)
	}
}
