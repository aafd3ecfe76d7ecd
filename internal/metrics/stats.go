package metrics

import (
	"math"
	"sort"
	"time"

	"hostwatch/internal/model"
)

// Summary is a basic statistics snapshot for one host interface.
type Summary struct {
	Hostname   string
	Interface  string
	Count      int
	From       time.Time
	To         time.Time
	AvgInKbps  float64
	P95InKbps  float64
	MinInKbps  float64
	MaxInKbps  float64
	AvgOutKbps float64
	P95OutKbps float64
	MaxOutKbps float64
}

// Summarize groups samples at or after since by host and interface and
// returns one summary per group, ordered by hostname then interface.
func Summarize(items []model.RateSample, since time.Time) []Summary {
	type key struct{ host, iface string }
	groups := map[key][]model.RateSample{}
	for _, m := range items {
		if m.Timestamp.Before(since) {
			continue
		}
		k := key{m.Hostname, m.Interface}
		groups[k] = append(groups[k], m)
	}

	out := make([]Summary, 0, len(groups))
	for k, group := range groups {
		s := summarize(group)
		s.Hostname = k.host
		s.Interface = k.iface
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hostname != out[j].Hostname {
			return out[i].Hostname < out[j].Hostname
		}
		return out[i].Interface < out[j].Interface
	})
	return out
}

func summarize(items []model.RateSample) Summary {
	if len(items) == 0 {
		return Summary{}
	}

	ins := make([]float64, 0, len(items))
	outs := make([]float64, 0, len(items))
	var sumIn, sumOut float64
	minIn := math.MaxFloat64
	maxIn := 0.0
	maxOut := 0.0
	from := items[0].Timestamp
	to := items[0].Timestamp

	for _, m := range items {
		ins = append(ins, m.InKbps)
		outs = append(outs, m.OutKbps)
		sumIn += m.InKbps
		sumOut += m.OutKbps
		minIn = math.Min(minIn, m.InKbps)
		maxIn = math.Max(maxIn, m.InKbps)
		maxOut = math.Max(maxOut, m.OutKbps)
		if m.Timestamp.Before(from) {
			from = m.Timestamp
		}
		if m.Timestamp.After(to) {
			to = m.Timestamp
		}
	}

	sort.Float64s(ins)
	sort.Float64s(outs)
	count := float64(len(items))

	return Summary{
		Count:      len(items),
		From:       from,
		To:         to,
		AvgInKbps:  sumIn / count,
		P95InKbps:  percentile(ins, 0.95),
		MinInKbps:  minIn,
		MaxInKbps:  maxIn,
		AvgOutKbps: sumOut / count,
		P95OutKbps: percentile(outs, 0.95),
		MaxOutKbps: maxOut,
	}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	return values[idx]
}
