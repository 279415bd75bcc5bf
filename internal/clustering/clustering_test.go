package clustering

import (
	"math/rand"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
)

// gridBlob returns ten points on a 5x2 grid with 0.01 spacing in the first
// two of dims dimensions, shifted by offset in every dimension.
func gridBlob(offset float64, dims int) [][]float64 {
	var rows [][]float64
	for i := 0; i < 5; i++ {
		for j := 0; j < 2; j++ {
			row := make([]float64, dims)
			for d := range row {
				row[d] = offset
			}
			row[0] += float64(i) / 100
			row[1] += float64(j) / 100
			rows = append(rows, row)
		}
	}
	return rows
}

func blobs(offsets ...float64) [][]float64 {
	var rows [][]float64
	for _, o := range offsets {
		rows = append(rows, gridBlob(o, 4)...)
	}
	return rows
}

func randomRows(n, dims int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, dims)
		for d := range rows[i] {
			rows[i][d] = rng.NormFloat64()
		}
	}
	return rows
}

// assertBlobPartition checks that each consecutive block of size rows shares
// one label and that different blocks have different labels.
func assertBlobPartition(t *testing.T, labels []int, blocks, size int) {
	t.Helper()
	if len(labels) != blocks*size {
		t.Fatalf("got %d labels, want %d", len(labels), blocks*size)
	}
	seen := make(map[int]int)
	for b := 0; b < blocks; b++ {
		first := labels[b*size]
		for i := b * size; i < (b+1)*size; i++ {
			if labels[i] != first {
				t.Errorf("row %d label %d, want %d (block %d)", i, labels[i], first, b)
			}
		}
		if other, ok := seen[first]; ok {
			t.Errorf("blocks %d and %d share label %d", other, b, first)
		}
		seen[first] = b
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"empty defaults to kmeans", "", KMeans, false},
		{"kmeans", "kmeans", KMeans, false},
		{"case insensitive", "DBSCAN", DBSCAN, false},
		{"gaussian mixture", "gaussian_mixture", GaussianMixture, false},
		{"spectral", " spectral ", Spectral, false},
		{"unknown", "hierarchical", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedAlgorithm) {
					t.Fatalf("err = %v, want ErrUnsupportedAlgorithm", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRenumber(t *testing.T) {
	got, k := renumber([]int{2, 2, 0, 1, Noise, 0})

	want := []int{1, 1, 2, 3, Noise, 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("renumber mismatch (-want +got):\n%s", diff)
	}
	if k != 3 {
		t.Errorf("k = %d, want 3", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.MinK != 2 || cfg.MaxK != 8 {
		t.Errorf("k range = [%d, %d], want [2, 8]", cfg.MinK, cfg.MaxK)
	}
}

func TestNewFillsZeroConfig(t *testing.T) {
	c := New(Config{}, nil)

	if c.cfg.Restarts != DefaultConfig().Restarts {
		t.Errorf("Restarts = %d, want default", c.cfg.Restarts)
	}
	if c.log == nil {
		t.Error("logger should default to a no-op logger")
	}
}

func TestOutcomeKindText(t *testing.T) {
	for _, kind := range []OutcomeKind{Success, DegenerateFallback, RejectedInput} {
		text, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", kind, err)
		}
		var got OutcomeKind
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != kind {
			t.Errorf("got %v, want %v", got, kind)
		}
	}

	var k OutcomeKind
	if err := k.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
