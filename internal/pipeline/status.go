package pipeline

// regressionStep is the number of positions a keyword must lose to count
// towards a URL's decline.
const regressionStep = 3

func regressed(trs []transition) int {
	n := 0
	for _, tr := range trs {
		if tr.Prev != nil && tr.Current != nil && *tr.Current-*tr.Prev >= regressionStep {
			n++
		}
	}
	return n
}

// shouldDecline reports whether d regressed keywords out of total mark the
// URL as declining. The rule only ever moves a URL into declining.
func shouldDecline(d, total int) bool {
	return total > 0 && 2*d >= total
}
