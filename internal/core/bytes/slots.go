package bytes

import "fmt"

// slotSize is the encoded size of one Slot: an int32 id followed by an int32 value.
const slotSize = 8

// Slot is one (id, value) pair of a slot collection. Collections are used for
// resources, units, upgrades, achievements and most other game quantities.
type Slot struct {
	ID    int32
	Value int32
}

// ReadSlots reads an int32 count followed by that many slots. A negative count
// decodes to an empty collection. A count that cannot fit in the rest of the
// buffer fails with ErrTruncatedData before anything is allocated.
func ReadSlots(r *Reader) []Slot {
	count := r.Int32()
	if r.err != nil || count <= 0 {
		return nil
	}
	if int64(count)*slotSize > int64(r.Remaining()) {
		r.Fail(fmt.Errorf("slot count %d exceeds %d remaining bytes: %w", count, r.Remaining(), ErrTruncatedData))
		return nil
	}

	slots := make([]Slot, count)
	for i := range slots {
		slots[i] = Slot{ID: r.Int32(), Value: r.Int32()}
	}
	return slots
}

// WriteSlots writes the number of slots followed by each pair in order.
func WriteSlots(w *Writer, slots []Slot) {
	w.Int32(int32(len(slots)))
	for _, s := range slots {
		w.Int32(s.ID)
		w.Int32(s.Value)
	}
}

// DecodeSlots reads a slot collection and converts every Slot with fn, which
// may reject ids that are out of range for T. The first conversion error is
// recorded on the Reader.
func DecodeSlots[T any](r *Reader, fn func(Slot) (T, error)) []T {
	slots := ReadSlots(r)
	if r.err != nil || len(slots) == 0 {
		return nil
	}

	out := make([]T, len(slots))
	for i, s := range slots {
		v, err := fn(s)
		if err != nil {
			r.Fail(fmt.Errorf("slot %d: %w", i, err))
			return nil
		}
		out[i] = v
	}
	return out
}

// EncodeSlots converts items with fn and writes them as a slot collection.
func EncodeSlots[T any](w *Writer, items []T, fn func(T) Slot) {
	w.Int32(int32(len(items)))
	for _, item := range items {
		s := fn(item)
		w.Int32(s.ID)
		w.Int32(s.Value)
	}
}
