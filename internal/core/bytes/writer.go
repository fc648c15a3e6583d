package bytes

import "encoding/binary"

// Writer mirrors Reader, appending big endian values to a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded contents. The slice aliases the Writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Int8(v int8) { w.Uint8(uint8(v)) }

func (w *Writer) Bool(v bool) {
	if v {
		w.Uint8(1)
	} else {
		w.Uint8(0)
	}
}

func (w *Writer) Uint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *Writer) Int16(v int16) { w.Uint16(uint16(v)) }

func (w *Writer) Uint32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *Writer) Int32(v int32) { w.Uint32(uint32(v)) }

func (w *Writer) Uint64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }

func (w *Writer) Int64(v int64) { w.Uint64(uint64(v)) }

// String writes s with an int32 length prefix, or -1 when s is absent.
func (w *Writer) String(s NullString) {
	if !s.Valid {
		w.Int32(absentLength)
		return
	}
	w.Int32(int32(len(s.String)))
	w.buf = append(w.buf, s.String...)
}

// Blob writes b with an int32 length prefix, or -1 when b is nil.
func (w *Writer) Blob(b []byte) {
	if b == nil {
		w.Int32(absentLength)
		return
	}
	w.Int32(int32(len(b)))
	w.buf = append(w.buf, b...)
}
