// Package lexer implements the byte-level reader (C6) that sits between a
// raw block device and the request parser: it normalizes line endings,
// unfolds continued header lines, and finds the header/body boundary.
package lexer

// BlockDevice is the abstract byte stream the caller wraps around a real
// socket (see spec.md §6). Receive appends 1..len(p) bytes into p and
// reports how many it read; ok is false only on orderly close or error, in
// which case no bytes were read.
type BlockDevice interface {
	Receive(p []byte) (n int, ok bool)
	Send(p []byte) bool
}

const readChunk = 4096

// Lexer pulls bytes from a BlockDevice, rewrites CR, LF and CRLF to a
// single LF and unfolds "LF SP|HT" continuations to a single space, and
// exposes the rewritten header bytes plus a cursor over them. One Lexer
// serves exactly one request cycle.
type Lexer struct {
	device         BlockDevice
	header         []byte // rewritten header bytes, not including the blank line
	pos            int    // cursor into header, advanced by Get
	pending        []byte // raw device bytes read ahead but not yet consumed
	maxHeaderBytes int    // 0 means unlimited
	headerTooLarge bool
}

// New wraps device in a Lexer.
func New(device BlockDevice) *Lexer {
	return &Lexer{device: device}
}

// SetMaxHeaderBytes caps the rewritten header buffer FetchHeader will
// accumulate before giving up. n<=0 means unlimited.
func (l *Lexer) SetMaxHeaderBytes(n int) { l.maxHeaderBytes = n }

// HeaderTooLarge reports whether the most recent FetchHeader call failed
// because the header exceeded the configured MaxHeaderBytes cap, as
// opposed to the device closing or erroring.
func (l *Lexer) HeaderTooLarge() bool { return l.headerTooLarge }

// fill ensures at least one byte is available in l.pending, reading a
// chunk from the device if it is empty. It returns false when the device
// is exhausted.
func (l *Lexer) fill() bool {
	if len(l.pending) > 0 {
		return true
	}
	var buf [readChunk]byte
	n, _ := l.device.Receive(buf[:])
	if n == 0 {
		return false
	}
	l.pending = append(l.pending, buf[:n]...)
	return true
}

func (l *Lexer) nextRaw() (byte, bool) {
	if !l.fill() {
		return 0, false
	}
	b := l.pending[0]
	l.pending = l.pending[1:]
	return b, true
}

func (l *Lexer) peekRaw() (byte, bool) {
	if !l.fill() {
		return 0, false
	}
	return l.pending[0], true
}

// FetchHeader pulls and rewrites bytes until it finds the header/body
// boundary (two consecutive normalized LFs; an LF followed by a space or
// tab is a fold and does not count towards it). The boundary LFs are not
// kept in the header buffer. It returns false if the device closes or
// errors before the boundary is found.
func (l *Lexer) FetchHeader() bool {
	l.headerTooLarge = false
	consecutiveLF := 0
	for consecutiveLF < 2 {
		if l.maxHeaderBytes > 0 && len(l.header) >= l.maxHeaderBytes {
			l.headerTooLarge = true
			return false
		}

		b, ok := l.nextRaw()
		if !ok {
			return false
		}

		if b == '\r' {
			if next, ok := l.peekRaw(); ok && next == '\n' {
				l.pending = l.pending[1:]
			}
			b = '\n'
		}

		if b != '\n' {
			l.header = append(l.header, b)
			consecutiveLF = 0
			continue
		}

		if next, ok := l.peekRaw(); ok && (next == ' ' || next == '\t') {
			l.pending = l.pending[1:]
			l.header = append(l.header, ' ')
			consecutiveLF = 0
			continue
		}

		l.header = append(l.header, '\n')
		consecutiveLF++
	}

	// Drop the two LFs that form the header/body boundary.
	l.header = l.header[:len(l.header)-2]
	return true
}

// Get returns the next byte of the rewritten header and advances the
// cursor, or -1 at the end of the header.
func (l *Lexer) Get() int {
	if l.pos >= len(l.header) {
		return -1
	}
	b := l.header[l.pos]
	l.pos++
	return int(b)
}

// Index returns the current cursor position into the rewritten header.
func (l *Lexer) Index() int { return l.pos }

// SetIndex rewinds (or advances) the cursor to i.
func (l *Lexer) SetIndex(i int) { l.pos = i }

// HeaderBytes returns the full rewritten header buffer fetched so far.
func (l *Lexer) HeaderBytes() []byte { return l.header }

// FetchContent reads exactly length further bytes from the device,
// consuming any bytes already read past the header boundary first. ok is
// false if the device closes before length bytes become available.
func (l *Lexer) FetchContent(length int) (content []byte, ok bool) {
	content = make([]byte, 0, length)
	for len(content) < length {
		if len(l.pending) == 0 {
			var buf [readChunk]byte
			n, recvOK := l.device.Receive(buf[:])
			if n == 0 {
				if !recvOK {
					return content, false
				}
				continue
			}
			l.pending = append(l.pending, buf[:n]...)
		}
		need := length - len(content)
		if need > len(l.pending) {
			need = len(l.pending)
		}
		content = append(content, l.pending[:need]...)
		l.pending = l.pending[need:]
	}
	return content, true
}
