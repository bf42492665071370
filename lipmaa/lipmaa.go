// Package lipmaa computes the lipmaa sequence-number arithmetic used to
// build a Bamboo log's certificate pool.
//
// A log entry at position n always links back to entry n-1 (its
// backlink). Additionally, most entries carry a second link, the
// lipmaalink, pointing to a much earlier entry chosen so that a chain of
// links from any entry down to entry 1 has O(log n) length rather than
// O(n). The construction is Lipmaa's self-similar skip list: entries at
// "perfect" positions (3^k-1)/2 link back to the previous perfect
// position, and every other position recurses into the same rule at a
// smaller scale.
package lipmaa

// Linkseq returns the sequence number that entry n's lipmaalink points
// to. It is undefined (returns 0) for n < 2, since entry 1 has no links
// at all.
func Linkseq(n uint64) uint64 {
	if n < 2 {
		return 0
	}

	// Find the smallest "perfect" boundary b = (3^k-1)/2 with b >= n,
	// and the previous boundary bPrev = (3^(k-1)-1)/2. The half-open
	// range (bPrev, b] is a block of size 3^(k-1).
	var bPrev, bCur, blockSize uint64 = 0, 1, 1
	for bCur < n {
		bPrev = bCur
		blockSize *= 3
		bCur = bPrev + blockSize
	}

	if n == bCur {
		// n is itself a perfect boundary: its link is the previous one.
		return bPrev
	}

	// n is interior to the block. The interior splits into two
	// self-similar halves of size bPrev each (since blockSize-1 ==
	// 2*bPrev): positions in the first half recurse directly; positions
	// in the second half recurse relative to the end of the first half.
	p := n - bPrev
	half := bPrev
	if p <= half {
		return bPrev + Linkseq(p)
	}
	return bPrev + half + Linkseq(p-half)
}

// CertPool returns the certificate pool for sequence number n: the
// strictly decreasing sequence of sequence numbers whose entries must be
// present, and whose links verify, to prove n's validity without
// fetching every entry from 1 to n. The final element is always 1 unless
// n itself is <= 1, in which case the pool is empty.
func CertPool(n uint64) []uint64 {
	if n <= 1 {
		return nil
	}

	pool := make([]uint64, 0, 8)
	for cur := n; cur > 1; {
		cur = Linkseq(cur)
		pool = append(pool, cur)
	}
	return pool
}
