package mockregistry

import (
	"crypto/md5"
	"math"

	"github.com/clean-dependency-project/modelreg/internal/registry"
)

// IngestThreshold is the minimum every non-latency metric needs for an ingest to be accepted.
const IngestThreshold = 0.5

// sizePlatforms are the deployment targets of the size score.
var sizePlatforms = []string{"raspberry_pi", "jetson_nano", "desktop_pc", "aws_server"}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func ptr(f float64) *float64 {
	return &f
}

// DefaultScorer derives stable scores in [0.5, 1] from key, so the same model URL always
// rates the same.
func DefaultScorer(key string) registry.Scores {
	sum := md5.Sum([]byte(key))
	at := func(i int) *float64 {
		return ptr(round2(0.5 + float64(sum[i])/255*0.5))
	}
	return registry.Scores{
		Availability:    at(0),
		BusFactor:       at(1),
		CodeQuality:     at(2),
		DatasetQuality:  at(3),
		RampUp:          at(4),
		License:         at(5),
		Reproducibility: at(6),
		Reviewedness:    at(7),
		TreeScore:       at(8),
		Latency:         ptr(round2(float64(sum[9]) / 255 * 2)),
	}
}

// rejection returns the first non-latency metric below IngestThreshold.
func rejection(s registry.Scores) (string, float64, bool) {
	for _, e := range s.Entries() {
		if e.Name == "latency" || e.Value == nil {
			continue
		}
		if *e.Value < IngestThreshold {
			return e.Name, *e.Value, true
		}
	}
	return "", 0, false
}

func mean(values ...*float64) *float64 {
	var total float64
	n := 0
	for _, v := range values {
		if v != nil {
			total += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return ptr(round2(total / float64(n)))
}

// ratingDocument maps /v1 scores onto the eleven-metric rating document. The size score
// is derived from key.
func ratingDocument(name, key string, s registry.Scores) registry.RatingDocument {
	doc := registry.RatingDocument{
		Name:     name,
		Category: "MODEL",
		Scores: map[string]*float64{
			"ramp_up_time":           s.RampUp,
			"bus_factor":             s.BusFactor,
			"performance_claims":     s.Availability,
			"license":                s.License,
			"dataset_and_code_score": mean(s.DatasetQuality, s.CodeQuality),
			"dataset_quality":        s.DatasetQuality,
			"code_quality":           s.CodeQuality,
			"reproducibility":        s.Reproducibility,
			"reviewedness":           s.Reviewedness,
			"tree_score":             s.TreeScore,
		},
		Latencies: make(map[string]*float64, len(registry.RatingMetrics)),
		SizeScore: make(map[string]*float64, len(sizePlatforms)),
	}

	parts := make([]*float64, 0, len(doc.Scores))
	for _, v := range doc.Scores {
		parts = append(parts, v)
	}
	doc.Scores["net_score"] = mean(parts...)

	sum := md5.Sum([]byte(key))
	for i, m := range registry.RatingMetrics {
		if doc.Scores[m] == nil {
			delete(doc.Scores, m)
			continue
		}
		doc.Latencies[m] = ptr(round2(float64(sum[i]) / 255 * 0.2))
	}
	for i, p := range sizePlatforms {
		// Larger targets tolerate larger models.
		doc.SizeScore[p] = ptr(round2(math.Min(1, float64(sum[11+i])/255*0.4+0.25*float64(i))))
	}
	doc.SizeScoreLatency = ptr(round2(float64(sum[15]) / 255 * 0.2))
	return doc
}
