package record

// Batch accumulates the records of one output table for one source document.
// Batches are per-worker state; they are written out or discarded wholesale
// when the document finishes.
type Batch struct {
	Table   string
	Records []*Record
}

// NewBatch returns an empty batch for the named table.
func NewBatch(table string) *Batch {
	return &Batch{Table: table}
}

// Append adds records to the batch, ignoring nils.
func (b *Batch) Append(recs ...*Record) {
	for _, r := range recs {
		if r != nil {
			b.Records = append(b.Records, r)
		}
	}
}

// Empty reports whether the batch holds no records.
func (b *Batch) Empty() bool { return len(b.Records) == 0 }

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.Records) }
