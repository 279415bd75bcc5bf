package clustering

import (
	"github.com/cockroachdb/errors"
)

// ErrTooFewPoints is returned when fewer than two rows are given.
var ErrTooFewPoints = errors.New("at least two points are required for clustering")

// Run clusters rows with alg. k is the resolved cluster count and must lie in
// [2, N] for every algorithm except DBSCAN, which searches its own parameters
// and ignores k.
//
// Numerical failures inside the Gaussian mixture and spectral paths, and
// degenerate density results, fall back to k-means and are reported as a
// DegenerateFallback outcome. Invalid input returns an error together with a
// RejectedInput outcome.
func (c *Clusterer) Run(rows [][]float64, alg Algorithm, k int) (Result, error) {
	n := len(rows)
	if n < 2 {
		return rejected(alg, "fewer than two tracks"), errors.WithHint(ErrTooFewPoints, "add more tracks before clustering")
	}

	switch alg {
	case DBSCAN:
		return c.density(rows), nil
	case KMeans, GaussianMixture, Spectral:
	default:
		_, err := ParseAlgorithm(string(alg))
		if err == nil {
			err = errors.Wrapf(ErrUnsupportedAlgorithm, "%q", alg)
		}
		return rejected(alg, "unsupported algorithm"), err
	}

	if k < 2 || k > n {
		err := errors.Wrapf(ErrInvalidClusterCount, "k=%d with %d tracks", k, n)
		return rejected(alg, "cluster count out of range"), errors.WithHintf(err, "choose between 2 and %d clusters", n)
	}

	meta := Metadata{Algorithm: alg, Executed: alg}
	outcome := Outcome{Kind: Success}

	var labels []int
	switch alg {
	case KMeans:
		fit := c.kmeans(rows, k)
		labels = fit.labels
		meta.Inertia = fit.inertia

	case GaussianMixture:
		fit, err := c.gaussianMixture(rows, k)
		if err != nil {
			labels, outcome = c.kmeansFallback(rows, k, &meta, "gaussian mixture: "+err.Error())
			break
		}
		labels = fit.labels
		meta.AIC = fit.aic
		meta.BIC = fit.bic
		c.log.Debugw("gaussian mixture converged", "k", k, "iterations", fit.iters, "aic", fit.aic, "bic", fit.bic)

	case Spectral:
		l, err := c.spectral(rows, k)
		if err != nil {
			labels, outcome = c.kmeansFallback(rows, k, &meta, "spectral: "+err.Error())
			break
		}
		labels = l
	}

	labels, got := renumber(labels)
	meta.NClusters = got
	return Result{Labels: labels, K: got, Outcome: outcome, Metadata: meta}, nil
}

func (c *Clusterer) kmeansFallback(rows [][]float64, k int, meta *Metadata, reason string) ([]int, Outcome) {
	c.log.Warnw("clustering fell back to k-means", "algorithm", meta.Algorithm, "fallback_reason", reason, "k", k)
	fit := c.kmeans(rows, k)
	meta.Executed = KMeans
	meta.Inertia = fit.inertia
	meta.FallbackReason = reason
	return fit.labels, Outcome{Kind: DegenerateFallback, Reason: reason}
}

func rejected(alg Algorithm, reason string) Result {
	return Result{
		Outcome:  Outcome{Kind: RejectedInput, Reason: reason},
		Metadata: Metadata{Algorithm: alg},
	}
}
