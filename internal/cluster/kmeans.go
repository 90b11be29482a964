// Package cluster groups classified mistakes by the shape of the position
// they were played in.
package cluster

import (
	"math"
	"math/rand/v2"

	"chessmate/internal/core"
)

const (
	DefaultClusters = 5
	DefaultSeed     = 42
	DefaultRestarts = 10
	DefaultMaxIter  = 300
)

// Analyser partitions feature vectors with k-means. Zero fields take defaults.
type Analyser struct {
	Clusters int
	Seed     uint64
	Restarts int
	MaxIter  int
}

// Result of one fit. Centroids are in original feature units.
type Result struct {
	Labels    []int
	Centroids []core.Features
	Clusters  []core.ClusterResult
	Inertia   float64
}

func (a Analyser) withDefaults() Analyser {
	if a.Clusters <= 0 {
		a.Clusters = DefaultClusters
	}
	if a.Seed == 0 {
		a.Seed = DefaultSeed
	}
	if a.Restarts <= 0 {
		a.Restarts = DefaultRestarts
	}
	if a.MaxIter <= 0 {
		a.MaxIter = DefaultMaxIter
	}
	return a
}

// Fit labels every record with a cluster id in [0, Clusters).
func (a Analyser) Fit(records []core.MistakeRecord) (*Result, error) {
	a = a.withDefaults()

	if len(records) < a.Clusters {
		return nil, core.Errorf(core.KindInsufficientData, "cluster",
			"%d samples for %d clusters", len(records), a.Clusters)
	}

	rows := make([]core.Features, len(records))
	for i, r := range records {
		rows[i] = r.Features
	}

	s := fitScaler(rows)
	x := make([]core.Features, len(rows))
	for i, r := range rows {
		x[i] = s.transform(r)
	}

	rng := rand.New(rand.NewPCG(a.Seed, a.Seed))

	var best *run
	for i := 0; i < a.Restarts; i++ {
		r := a.lloyd(x, seedCentroids(x, a.Clusters, rng))
		if best == nil || r.inertia < best.inertia {
			best = r
		}
	}

	res := &Result{
		Labels:    best.labels,
		Centroids: make([]core.Features, a.Clusters),
		Clusters:  make([]core.ClusterResult, a.Clusters),
		Inertia:   best.inertia,
	}
	for k, c := range best.centroids {
		res.Centroids[k] = s.inverse(c)
		res.Clusters[k] = core.ClusterResult{ID: k, Centroid: res.Centroids[k]}
	}
	for i, label := range best.labels {
		res.Clusters[label].Members = append(res.Clusters[label].Members, records[i])
	}

	return res, nil
}

type run struct {
	labels    []int
	centroids []core.Features
	inertia   float64
}

func (a Analyser) lloyd(x []core.Features, centroids []core.Features) *run {
	labels := make([]int, len(x))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < a.MaxIter; iter++ {
		changed := false
		for i, p := range x {
			k, _ := nearest(p, centroids)
			if labels[i] != k {
				labels[i] = k
				changed = true
			}
		}

		if fillEmpty(x, labels, centroids) {
			changed = true
		}

		if !changed && iter > 0 {
			break
		}
		centroids = means(x, labels, len(centroids))
	}

	var inertia float64
	for i, p := range x {
		inertia += sqDist(p, centroids[labels[i]])
	}
	return &run{labels: labels, centroids: centroids, inertia: inertia}
}

// seedCentroids is k-means++: each next centre is drawn with probability
// proportional to its squared distance from the closest centre so far.
func seedCentroids(x []core.Features, k int, rng *rand.Rand) []core.Features {
	centroids := make([]core.Features, 0, k)
	centroids = append(centroids, x[rng.IntN(len(x))])

	d := make([]float64, len(x))
	for len(centroids) < k {
		var total float64
		for i, p := range x {
			_, d[i] = nearest(p, centroids)
			total += d[i]
		}

		if total == 0 {
			centroids = append(centroids, x[rng.IntN(len(x))])
			continue
		}

		target := rng.Float64() * total
		pick := len(x) - 1
		for i, w := range d {
			target -= w
			if target < 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, x[pick])
	}
	return centroids
}

// fillEmpty moves into every empty cluster the point farthest from its own
// centre, taken from a cluster that can spare it.
func fillEmpty(x []core.Features, labels []int, centroids []core.Features) bool {
	sizes := make([]int, len(centroids))
	for _, l := range labels {
		sizes[l]++
	}

	moved := false
	for k := range centroids {
		if sizes[k] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, p := range x {
			if sizes[labels[i]] < 2 {
				continue
			}
			if dist := sqDist(p, centroids[labels[i]]); dist > farDist {
				far, farDist = i, dist
			}
		}
		if far < 0 {
			return moved
		}
		sizes[labels[far]]--
		labels[far] = k
		sizes[k]++
		centroids[k] = x[far]
		moved = true
	}
	return moved
}

func means(x []core.Features, labels []int, k int) []core.Features {
	sums := make([]core.Features, k)
	counts := make([]int, k)
	for i, p := range x {
		l := labels[i]
		counts[l]++
		for d := range p {
			sums[l][d] += p[d]
		}
	}
	for l := range sums {
		if counts[l] == 0 {
			continue
		}
		for d := range sums[l] {
			sums[l][d] /= float64(counts[l])
		}
	}
	return sums
}

func nearest(p core.Features, centroids []core.Features) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for k, c := range centroids {
		if dist := sqDist(p, c); dist < bestDist {
			best, bestDist = k, dist
		}
	}
	return best, bestDist
}

func sqDist(a, b core.Features) float64 {
	var s float64
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}

// scaler standardizes each dimension to zero mean and unit variance
type scaler struct {
	mean  core.Features
	scale core.Features
}

func fitScaler(rows []core.Features) scaler {
	var s scaler
	n := float64(len(rows))

	for _, r := range rows {
		for d := range r {
			s.mean[d] += r[d]
		}
	}
	for d := range s.mean {
		s.mean[d] /= n
	}

	for _, r := range rows {
		for d := range r {
			diff := r[d] - s.mean[d]
			s.scale[d] += diff * diff
		}
	}
	for d := range s.scale {
		s.scale[d] = math.Sqrt(s.scale[d] / n)
		// constant dimension
		if s.scale[d] == 0 {
			s.scale[d] = 1
		}
	}
	return s
}

func (s scaler) transform(r core.Features) core.Features {
	var out core.Features
	for d := range r {
		out[d] = (r[d] - s.mean[d]) / s.scale[d]
	}
	return out
}

func (s scaler) inverse(r core.Features) core.Features {
	var out core.Features
	for d := range r {
		out[d] = r[d]*s.scale[d] + s.mean[d]
	}
	return out
}
