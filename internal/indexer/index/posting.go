package index

// PostingList holds the catalog positions of the products containing a
// term, ascending and without duplicates.
type PostingList []int

// TermEntry is one term of an index snapshot with the IDs of the products
// containing it, in catalog order.
type TermEntry struct {
	Term     string
	Postings []string
}

// intersect returns the positions present in both lists. Both inputs must be
// sorted ascending.
func intersect(a, b PostingList) PostingList {
	out := make(PostingList, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
