package peak

type Filterer interface {
	ShouldIgnore(*Peak) bool
}

// Filter returns the peaks none of the filters want to ignore.
func Filter(peaks []Peak, filters ...Filterer) []Peak {
	var out []Peak
	for i := range peaks {
		skip := false
		for _, f := range filters {
			if f.ShouldIgnore(&peaks[i]) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out = append(out, peaks[i])
	}
	return out
}

type FreqFilter struct {
	LowHz  float64
	HighHz float64
}

func (f *FreqFilter) ShouldIgnore(p *Peak) bool {
	return p.FrequencyHz < f.LowHz || p.FrequencyHz > f.HighHz
}

// PowerFilter ignores peaks weaker than MinDBm.
type PowerFilter struct {
	MinDBm float64
}

func (f *PowerFilter) ShouldIgnore(p *Peak) bool {
	return p.PowerDBm < f.MinDBm
}
