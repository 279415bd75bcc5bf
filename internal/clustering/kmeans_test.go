package clustering

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKMeansSeparatesBlobs(t *testing.T) {
	rows := blobs(0, 3, 6)
	c := New(DefaultConfig(), nil)

	fit := c.kmeans(rows, 3)

	assertBlobPartition(t, fit.labels, 3, 10)
	if len(fit.centers) != 3 {
		t.Errorf("got %d centers, want 3", len(fit.centers))
	}
}

func TestKMeansIsDeterministic(t *testing.T) {
	rows := randomRows(40, 5, 11)
	c := New(DefaultConfig(), nil)

	first := c.kmeans(rows, 4)
	second := c.kmeans(rows, 4)

	if diff := cmp.Diff(first.labels, second.labels); diff != "" {
		t.Errorf("labels differ between runs (-first +second):\n%s", diff)
	}
	if first.inertia != second.inertia {
		t.Errorf("inertia differs: %v vs %v", first.inertia, second.inertia)
	}
}

func TestKMeansInertiaMatchesWCSS(t *testing.T) {
	rows := randomRows(25, 3, 3)
	c := New(DefaultConfig(), nil)

	fit := c.kmeans(rows, 3)

	if got := wcss(rows, fit.labels); !approx(got, fit.inertia, 1e-9) {
		t.Errorf("wcss = %v, inertia = %v", got, fit.inertia)
	}
}

func TestKMeansClampsKToRows(t *testing.T) {
	rows := [][]float64{{0, 0}, {1, 1}}
	c := New(DefaultConfig(), nil)

	fit := c.kmeans(rows, 5)

	if fit.labels[0] == fit.labels[1] {
		t.Error("two distinct points should land in separate clusters")
	}
}

func TestSeedPlusPlusIdenticalPoints(t *testing.T) {
	rows := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	c := New(DefaultConfig(), nil)

	fit := c.kmeans(rows, 2)

	if distinct(fit.labels) != 1 {
		t.Errorf("identical points produced %d clusters, want 1", distinct(fit.labels))
	}
}

func approx(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
