package index

import (
	"context"
	"errors"
	"testing"

	"github.com/docent-ai/docent/internal/log"
)

func TestUpsert_RejectsWrongDimension(t *testing.T) {
	s := New(nil, log.NewNop())

	err := s.Upsert(context.Background(), "doc", "doc.txt", []Chunk{
		{ID: "doc#0", Content: "x", Embedding: make([]float32, 12)},
	})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Upsert() = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearch_RejectsWrongDimension(t *testing.T) {
	s := New(nil, log.NewNop())

	_, err := s.Search(context.Background(), make([]float32, 10), 3, 0.7)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("Search() = %v, want ErrDimensionMismatch", err)
	}
}

func TestSearch_NonPositiveTopK(t *testing.T) {
	s := New(nil, log.NewNop())

	matches, err := s.Search(context.Background(), make([]float32, VectorDimension), 0, 0.7)
	if err != nil || matches != nil {
		t.Fatalf("Search(topK=0) = %v, %v, want nil, nil", matches, err)
	}
}
