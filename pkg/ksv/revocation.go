package ksv

// RevocationTable is a flat list of KSVs revoked by DCP LLC, derived from a
// System Renewability Message. Tables are immutable once built; the owning
// connector replaces the whole table on every successful SRM parse.
type RevocationTable struct {
	entries []KSV

	// BlobID identifies the SRM blob this table was derived from, so a
	// connector can skip reparsing an unchanged blob.
	BlobID uint64
}

// NewRevocationTable builds a table from a list of revoked KSVs.
// The entries are copied.
func NewRevocationTable(entries []KSV, blobID uint64) *RevocationTable {
	t := &RevocationTable{
		entries: make([]KSV, len(entries)),
		BlobID:  blobID,
	}
	copy(t.entries, entries)
	return t
}

// Len returns the number of revoked KSVs. A nil table is empty.
func (t *RevocationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Contains reports whether the KSV byte-equals any revoked entry.
// A nil table revokes nothing.
func (t *RevocationTable) Contains(k KSV) bool {
	if t == nil {
		return false
	}
	for _, rev := range t.entries {
		if rev == k {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any candidate KSV is revoked. Every candidate
// is checked; callers must treat a true result as fatal before performing
// any further hardware writes.
func (t *RevocationTable) ContainsAny(candidates []KSV) bool {
	if t == nil {
		return false
	}
	for _, k := range candidates {
		if t.Contains(k) {
			return true
		}
	}
	return false
}

// Entries returns a copy of the revoked KSV list.
func (t *RevocationTable) Entries() []KSV {
	if t == nil {
		return nil
	}
	out := make([]KSV, len(t.entries))
	copy(out, t.entries)
	return out
}
