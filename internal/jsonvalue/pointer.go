package jsonvalue

import "strings"

// Pointer is a parsed RFC-6901 JSON Pointer: a sequence of unescaped
// reference tokens. The empty pointer ("") denotes the whole document.
type Pointer []string

func ParsePointer(raw string) Pointer {
	if raw == "" {
		return Pointer{}
	}
	raw = strings.TrimPrefix(raw, "/")
	parts := strings.Split(raw, "/")
	tokens := make(Pointer, len(parts))
	for i, p := range parts {
		tokens[i] = unescapeToken(p)
	}
	return tokens
}

func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}

func escapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	tok = strings.ReplaceAll(tok, "/", "~1")
	return tok
}

func (p Pointer) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range p {
		b.WriteByte('/')
		b.WriteString(escapeToken(t))
	}
	return b.String()
}

// Head returns everything but the last token — the pointer to the parent
// container addressed by p.
func (p Pointer) Head() Pointer {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// Last returns the final reference token, or "" for the empty pointer.
func (p Pointer) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// isArrayIndexToken reports whether tok looks like an array index token ("0",
// "12", or the RFC-6901 "-" append token), used by Reset to reject
// pointers into array elements per SPEC_FULL.md / spec.md §4.3.
func isArrayIndexToken(tok string) bool {
	if tok == "-" {
		return true
	}
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Get resolves a pointer against v, returning the addressed node and
// whether it exists.
func Get(v *Value, p Pointer) (*Value, bool) {
	cur := v
	for _, tok := range p {
		if cur == nil {
			return nil, false
		}
		switch cur.kind {
		case Object:
			child, ok := cur.ObjectGet(tok)
			if !ok {
				return nil, false
			}
			cur = child
		case Array:
			if !isArrayIndexToken(tok) || tok == "-" {
				return nil, false
			}
			idx := 0
			for _, r := range tok {
				idx = idx*10 + int(r-'0')
			}
			items := cur.ArrayItems()
			if idx < 0 || idx >= len(items) {
				return nil, false
			}
			cur = items[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set returns a new tree with the value at pointer p replaced by child,
// creating intermediate objects as needed. Set never targets array
// elements; callers that need that are rejected upstream by Reset's own
// array-element check.
func Set(v *Value, p Pointer, child *Value) *Value {
	if len(p) == 0 {
		return child
	}
	head, tail := p[0], p[1:]
	if v == nil || v.kind != Object {
		v = NewObject()
	}
	existing, _ := v.ObjectGet(head)
	return v.ObjectSet(head, Set(existing, tail, child))
}

// Delete returns a new tree with the key at pointer p removed. No-op if
// the parent doesn't exist or isn't an object.
func Delete(v *Value, p Pointer) *Value {
	if len(p) == 0 {
		return NewNull()
	}
	if len(p) == 1 {
		if v == nil || v.kind != Object {
			return v
		}
		return v.ObjectDelete(p[0])
	}
	head, tail := p[0], p[1:]
	if v == nil || v.kind != Object {
		return v
	}
	child, ok := v.ObjectGet(head)
	if !ok {
		return v
	}
	return v.ObjectSet(head, Delete(child, tail))
}
