// Package text implements the incremental text-document model: a UTF-8
// byte buffer plus a sorted table of line-start offsets, kept in sync under
// LSP's incremental and full-replace update notifications.
package text

import (
	"sort"
	"unicode/utf8"
)

// utf16RuneLen reports the number of UTF-16 code units needed to encode r,
// or -1 if r cannot be encoded. It mirrors unicode/utf16.RuneLen, which is
// unavailable on Go toolchains older than 1.24.
func utf16RuneLen(r rune) int {
	switch {
	case r < 0 || (0xd800 <= r && r < 0xe000):
		return -1
	case r <= 0xffff:
		return 1
	default:
		return 2
	}
}

// Position is an LSP position: a zero-based line number and a
// UTF-16-code-unit-based character offset within that line.
type Position struct {
	Line      uint32
	Character uint32
}

// Range is a half-open span between two Positions.
type Range struct {
	Start Position
	End   Position
}

// Document holds a text buffer together with an index of line-start byte
// offsets, kept up to date incrementally as edits arrive.
type Document struct {
	buf             []byte
	lineStartOffset []int
}

// New builds a Document from its initial full text.
func New(content string) *Document {
	d := &Document{buf: []byte(content)}
	d.reindex()
	return d
}

// Text returns the document's current full content.
func (d *Document) Text() string {
	return string(d.buf)
}

// reindex recomputes lineStartOffset from scratch. line 0 always starts at
// byte 0; each subsequent entry is the byte just after a line terminator.
// LF, CR, and CRLF are all recognised; CRLF counts as a single terminator.
func (d *Document) reindex() {
	offsets := []int{0}
	for i := 0; i < len(d.buf); i++ {
		switch d.buf[i] {
		case '\n':
			offsets = append(offsets, i+1)
		case '\r':
			if i+1 < len(d.buf) && d.buf[i+1] == '\n' {
				continue // the '\n' branch records the line start
			}
			offsets = append(offsets, i+1)
		}
	}
	d.lineStartOffset = offsets
}

// OffsetAt converts an LSP Position into a byte offset into the buffer.
// Character is interpreted as a UTF-16 code unit count from the start of
// the line; it is clamped to the line's actual length rather than erroring,
// since a client can send a stale position for a document that has since
// shrunk.
func (d *Document) OffsetAt(pos Position) int {
	line := int(pos.Line)
	if line < 0 {
		line = 0
	}
	if line >= len(d.lineStartOffset) {
		return len(d.buf)
	}
	lineStart := d.lineStartOffset[line]
	lineEnd := len(d.buf)
	if line+1 < len(d.lineStartOffset) {
		lineEnd = d.lineStartOffset[line+1]
	}
	lineBytes := d.buf[lineStart:lineEnd]

	units := int(pos.Character)
	offsetInLine := 0
	seen := 0
	for offsetInLine < len(lineBytes) && seen < units {
		r, size := utf8.DecodeRune(lineBytes[offsetInLine:])
		if r == '\n' || r == '\r' {
			break
		}
		if r > 0xFFFF {
			seen += 2 // surrogate pair
		} else {
			seen++
		}
		offsetInLine += size
	}
	return lineStart + offsetInLine
}

// PositionAt converts a byte offset into an LSP Position.
func (d *Document) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.buf) {
		offset = len(d.buf)
	}
	// Find the last line whose start offset is <= offset.
	line := sort.Search(len(d.lineStartOffset), func(i int) bool {
		return d.lineStartOffset[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	lineStart := d.lineStartOffset[line]
	units := 0
	for _, r := range string(d.buf[lineStart:offset]) {
		if n := utf16RuneLen(r); n > 0 {
			units += n
		} else {
			units++
		}
	}
	return Position{Line: uint32(line), Character: uint32(units)}
}

// Change is one incremental edit: replace the text within Range with
// NewText. A Change with FullRange set (an LSP change event that carries no
// range) is a full-document replace, and its Range is ignored.
type Change struct {
	FullRange bool
	Range     Range
	NewText   string
}

// Update applies a sequence of changes in order, as LSP's
// didChange/contentChanges requires: each change in the array is computed
// against the document as modified by all preceding changes in that same
// array, not against the original snapshot.
func (d *Document) Update(changes []Change) {
	for _, c := range changes {
		d.applyOne(c)
	}
}

func (d *Document) applyOne(c Change) {
	if c.FullRange {
		d.buf = []byte(c.NewText)
		d.reindex()
		return
	}

	startOffset := d.OffsetAt(c.Range.Start)
	endOffset := d.OffsetAt(c.Range.End)
	if endOffset < startOffset {
		startOffset, endOffset = endOffset, startOffset
	}

	newBuf := make([]byte, 0, len(d.buf)-(endOffset-startOffset)+len(c.NewText))
	newBuf = append(newBuf, d.buf[:startOffset]...)
	newBuf = append(newBuf, c.NewText...)
	newBuf = append(newBuf, d.buf[endOffset:]...)

	d.spliceLineOffsets(newBuf, startOffset, endOffset, len(c.NewText))
	d.buf = newBuf
}

// spliceLineOffsets updates lineStartOffset incrementally instead of
// rescanning the whole buffer: offsets before the edit are kept, offsets
// after it are shifted, and line starts whose terminator falls inside the
// edit are recomputed from newBuf. The rescan window extends one byte past
// each side of the inserted text so that a CRLF pair formed or broken at a
// splice boundary (a '\r' ending the prefix meeting a '\n' starting the
// inserted text, or vice versa) is counted exactly as a full rescan would.
func (d *Document) spliceLineOffsets(newBuf []byte, startOffset, endOffset, newLen int) {
	delta := newLen - (endOffset - startOffset)
	winStart := startOffset
	if winStart > 0 {
		winStart--
	}
	winEnd := startOffset + newLen + 1
	if winEnd > len(newBuf) {
		winEnd = len(newBuf)
	}

	merged := make([]int, 0, len(d.lineStartOffset))
	for _, off := range d.lineStartOffset {
		if off <= winStart {
			merged = append(merged, off)
		}
	}
	for i := winStart; i < winEnd; i++ {
		switch newBuf[i] {
		case '\n':
			merged = append(merged, i+1)
		case '\r':
			if i+1 < len(newBuf) && newBuf[i+1] == '\n' {
				continue
			}
			merged = append(merged, i+1)
		}
	}
	for _, off := range d.lineStartOffset {
		// A surviving terminator lands at off-1+delta in newBuf; anything
		// the rescan window already covered must not be added twice.
		if off-1+delta >= winEnd {
			merged = append(merged, off+delta)
		}
	}
	d.lineStartOffset = merged
}
