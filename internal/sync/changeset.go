package sync

// ChangeSet lists the record ids touched by one reconciliation pass, in the
// order the server delivered them. Callers use it to raise change
// notifications and to decide which bodies are worth downloading lazily.
type ChangeSet struct {
	Created  []string
	Modified []string
	Removed  []string
}

// Empty reports whether the pass touched nothing.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Created) == 0 && len(cs.Modified) == 0 && len(cs.Removed) == 0
}

// Len returns the total number of touched ids.
func (cs *ChangeSet) Len() int {
	return len(cs.Created) + len(cs.Modified) + len(cs.Removed)
}
