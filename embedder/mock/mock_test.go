package mock_test

import (
	"context"
	"math"
	"testing"

	"github.com/recallhq/recall-go-sdk/embedder/mock"
)

func TestDeterministic(t *testing.T) {
	e := mock.New()

	a, err := e.Embed(context.Background(), "the same text")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}
	b, err := e.Embed(context.Background(), "the same text")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}

	if len(a) != e.Dimensions() {
		t.Fatalf("Expected %d dimensions, got %d", e.Dimensions(), len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Expected identical embeddings at index %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestDistinctTextsDiffer(t *testing.T) {
	e := mock.New()

	a, _ := e.Embed(context.Background(), "first text")
	b, _ := e.Embed(context.Background(), "second text")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("Expected different texts to embed differently")
	}
}

func TestUnitNorm(t *testing.T) {
	e := mock.New()

	vec, err := e.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("Failed to embed: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("Expected unit norm, got %f", math.Sqrt(sum))
	}
}
