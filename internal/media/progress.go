package media

import (
	"io"
	"math"
)

// progressReader wraps an upload stream and reports the percentage of bytes
// consumed. Percentages are monotonically non-decreasing in [0,100] and a
// given value is reported at most once; with an unknown total nothing is
// reported at all.
type progressReader struct {
	r      io.Reader
	total  int64
	report func(percent int)

	sent int64
	last int
}

func newProgressReader(r io.Reader, total int64, report func(int)) *progressReader {
	return &progressReader{r: r, total: total, report: report, last: -1}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 && p.report != nil && p.total > 0 {
		p.sent += int64(n)
		percent := int(math.Round(float64(p.sent) / float64(p.total) * 100))
		if percent > 100 {
			percent = 100
		}
		if percent > p.last {
			p.last = percent
			p.report(percent)
		}
	}
	return n, err
}
