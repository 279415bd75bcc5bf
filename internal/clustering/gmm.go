package clustering

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	gmmMaxIterations = 100
	gmmTolerance     = 1e-3
	gmmRegCovar      = 1e-6
)

// gmmFit is a full-covariance Gaussian mixture fit. Labels are 0-based.
type gmmFit struct {
	labels []int
	logLik float64 // total log-likelihood
	aic    float64
	bic    float64
	iters  int
}

type component struct {
	weight float64
	mean   []float64
	chol   mat.Cholesky
}

// gaussianMixture fits k full-covariance Gaussians by expectation
// maximization, starting from the seeded k-means partition. It fails when a
// covariance matrix cannot be factorized.
func (c *Clusterer) gaussianMixture(rows [][]float64, k int) (gmmFit, error) {
	n, d := len(rows), len(rows[0])
	init := c.kmeans(rows, k)

	resp := make([][]float64, n)
	for i := range resp {
		resp[i] = make([]float64, k)
		resp[i][init.labels[i]] = 1
	}

	var comps []component
	var err error
	prev := math.Inf(-1)
	var avg float64
	iters := 0
	for iters < gmmMaxIterations {
		iters++
		comps, err = mStep(rows, resp, k)
		if err != nil {
			return gmmFit{}, errors.Wrapf(err, "iteration %d", iters)
		}
		avg = eStep(rows, comps, resp) / float64(n)
		if math.Abs(avg-prev) < gmmTolerance {
			break
		}
		prev = avg
	}

	fit := gmmFit{labels: make([]int, n), logLik: avg * float64(n), iters: iters}
	for i, r := range resp {
		best := 0
		for j := range r {
			if r[j] > r[best] {
				best = j
			}
		}
		fit.labels[i] = best
	}

	p := float64(k*d + k*d*(d+1)/2 + k - 1)
	fit.aic = -2*fit.logLik + 2*p
	fit.bic = -2*fit.logLik + p*math.Log(float64(n))
	return fit, nil
}

var errSingularCovariance = errors.New("covariance matrix is not positive definite")

// mStep estimates component weights, means and regularized covariances from
// the responsibilities.
func mStep(rows [][]float64, resp [][]float64, k int) ([]component, error) {
	n, d := len(rows), len(rows[0])
	comps := make([]component, k)
	for j := 0; j < k; j++ {
		nk := 10 * epsilon
		for i := range rows {
			nk += resp[i][j]
		}

		mu := make([]float64, d)
		for i, r := range rows {
			for a := range r {
				mu[a] += resp[i][j] * r[a]
			}
		}
		for a := range mu {
			mu[a] /= nk
		}

		cov := mat.NewSymDense(d, nil)
		for a := 0; a < d; a++ {
			for b := a; b < d; b++ {
				var s float64
				for i, r := range rows {
					s += resp[i][j] * (r[a] - mu[a]) * (r[b] - mu[b])
				}
				s /= nk
				if a == b {
					s += gmmRegCovar
				}
				cov.SetSym(a, b, s)
			}
		}

		comps[j].weight = nk / float64(n)
		comps[j].mean = mu
		if ok := comps[j].chol.Factorize(cov); !ok {
			return nil, errSingularCovariance
		}
	}
	return comps, nil
}

// eStep recomputes responsibilities in place and returns the total log-likelihood.
func eStep(rows [][]float64, comps []component, resp [][]float64) float64 {
	d := len(rows[0])
	logs := make([]float64, len(comps))
	diff := mat.NewVecDense(d, nil)
	var solved mat.VecDense
	var total float64

	for i, r := range rows {
		for j := range comps {
			for a := range r {
				diff.SetVec(a, r[a]-comps[j].mean[a])
			}
			// A Condition error only warns about accuracy; the solve still ran.
			if err := comps[j].chol.SolveVecTo(&solved, diff); err != nil {
				var cond mat.Condition
				if !errors.As(err, &cond) {
					logs[j] = math.Inf(-1)
					continue
				}
			}
			maha := mat.Dot(diff, &solved)
			logs[j] = math.Log(comps[j].weight) -
				0.5*(float64(d)*math.Log(2*math.Pi)+comps[j].chol.LogDet()+maha)
		}

		norm := logSumExp(logs)
		if math.IsInf(norm, -1) {
			for j := range comps {
				resp[i][j] = 1 / float64(len(comps))
			}
			continue
		}
		for j := range comps {
			resp[i][j] = math.Exp(logs[j] - norm)
		}
		total += norm
	}
	return total
}

func logSumExp(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = max(m, x)
	}
	if math.IsInf(m, -1) {
		return m
	}
	var s float64
	for _, x := range xs {
		s += math.Exp(x - m)
	}
	return m + math.Log(s)
}

const epsilon = 2.220446049250313e-16
