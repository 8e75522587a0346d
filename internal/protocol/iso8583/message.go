package iso8583

import "fmt"

const (
	MinField = 2
	MaxField = 128
)

// Message is one decoded ISO 8583 message: a type indicator plus the
// present fields, kept in field-number order.
type Message struct {
	Type   uint16
	Header []byte
	fields [MaxField + 1]*Value
}

func NewMessage(mti uint16) *Message {
	return &Message{Type: mti}
}

// MTI renders the type as the usual four hex digits ("0100").
func (m *Message) MTI() string {
	return fmt.Sprintf("%04X", m.Type)
}

func (m *Message) Has(n int) bool {
	if n < MinField || n > MaxField {
		return false
	}
	return m.fields[n] != nil
}

func (m *Message) Field(n int) (Value, bool) {
	if !m.Has(n) {
		return Value{}, false
	}
	return m.fields[n].clone(), true
}

// Text returns the textual value of field n, or "" when absent.
func (m *Message) Text(n int) string {
	v, ok := m.Field(n)
	if !ok {
		return ""
	}
	return v.Text()
}

func (m *Message) Set(n int, v Value) error {
	if n < MinField || n > MaxField {
		return fmt.Errorf("%w: %d", ErrFieldRange, n)
	}
	cp := v.clone()
	m.fields[n] = &cp
	return nil
}

func (m *Message) Remove(n int) {
	if n >= MinField && n <= MaxField {
		m.fields[n] = nil
	}
}

// CopyField copies field n from src when present.
func (m *Message) CopyField(src *Message, n int) {
	if v, ok := src.Field(n); ok {
		_ = m.Set(n, v)
	}
}

// Numbers lists present field numbers in ascending order.
func (m *Message) Numbers() []int {
	out := make([]int, 0, 16)
	for n := MinField; n <= MaxField; n++ {
		if m.fields[n] != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m *Message) Clone() *Message {
	out := &Message{Type: m.Type, Header: cloneBytes(m.Header)}
	for n := MinField; n <= MaxField; n++ {
		if m.fields[n] != nil {
			cp := m.fields[n].clone()
			out.fields[n] = &cp
		}
	}
	return out
}
