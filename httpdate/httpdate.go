// Package httpdate parses the three legacy HTTP date formats (RFC 1123,
// RFC 850, asctime) into seconds since the Unix epoch, following the
// weekday-prefix dispatch and the year%4==0 pre-2100 leap rule mandated by
// the original HTTP specification.
package httpdate

import (
	"strconv"

	"github.com/badu/hutz/trie"
)

var weekdayTrie = func() *trie.Trie[weekdayInfo] {
	t := trie.New[weekdayInfo](true)
	names := []struct {
		short, long string
		idx         int
	}{
		{"sun", "sunday", 0}, {"mon", "monday", 1}, {"tue", "tuesday", 2},
		{"wed", "wednesday", 3}, {"thu", "thursday", 4}, {"fri", "friday", 5},
		{"sat", "saturday", 6},
	}
	for _, n := range names {
		t.Insert(n.short, weekdayInfo{n.idx, false})
		t.Insert(n.long, weekdayInfo{n.idx, true})
	}
	return t
}()

type weekdayInfo struct {
	index int
	long  bool
}

var monthTrie = func() *trie.Trie[int] {
	t := trie.New[int](true)
	months := []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}
	for i, m := range months {
		t.Insert(m, i+1)
	}
	return t
}()

var gmtTrie = func() *trie.Trie[bool] {
	t := trie.New[bool](true)
	t.Insert("gmt", true)
	return t
}()

// Parse parses one of the three supported HTTP date forms in s and returns
// the corresponding number of seconds since the Unix epoch. It returns -1
// when s does not match any supported form or any field is out of range.
func Parse(s string) int64 {
	sc := &scanner{data: []byte(s)}
	used, info := weekdayTrie.Find(sc.data, len(sc.data))
	if used == 0 {
		return -1
	}
	sc.pos = used

	if info.long {
		return parseRFC850(sc)
	}
	sc.skipSpacesTabs()
	if sc.pos < len(sc.data) && sc.lookaheadWasSpace {
		return parseAsctime(sc)
	}
	return parseRFC1123(sc)
}

// scanner is a tiny cursor over the date string; lookaheadWasSpace records
// whether the byte immediately following the weekday token was horizontal
// whitespace, which is how the three forms are told apart.
type scanner struct {
	data              []byte
	pos               int
	lookaheadWasSpace bool
}

func (s *scanner) skipSpacesTabs() {
	start := s.pos
	for s.pos < len(s.data) && (s.data[s.pos] == ' ' || s.data[s.pos] == '\t') {
		s.pos++
	}
	s.lookaheadWasSpace = s.pos > start
}

func (s *scanner) skipOne(c byte) bool {
	if s.pos < len(s.data) && s.data[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) readUint() (int, bool) {
	start := s.pos
	for s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start {
		return 0, false
	}
	n, err := strconv.Atoi(string(s.data[start:s.pos]))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *scanner) readTimeOfDay() int {
	s.skipSpacesTabs()
	hour, ok := s.readUint()
	if !ok || hour > 23 || !s.skipOne(':') {
		return -1
	}
	minute, ok := s.readUint()
	if !ok || minute > 59 || !s.skipOne(':') {
		return -1
	}
	second, ok := s.readUint()
	if !ok || second > 59 {
		return -1
	}
	return 60*(60*hour+minute) + second
}

func (s *scanner) readMonth() int {
	s.skipSpacesTabs()
	used, month := monthTrie.Find(s.data[s.pos:], len(s.data)-s.pos)
	if used == 0 {
		return -1
	}
	s.pos += used
	return month
}

func (s *scanner) readGMT() bool {
	s.skipSpacesTabs()
	used, ok := gmtTrie.Find(s.data[s.pos:], len(s.data)-s.pos)
	s.pos += used
	return ok
}

// parseRFC1123 parses ", DD Mon YYYY HH:MM:SS GMT" (the short weekday has
// already been consumed by the caller's trie lookup; the comma that follows
// it in a genuine "Sun, 06 Nov 1994 08:49:37 GMT" header is skipped here).
func parseRFC1123(s *scanner) int64 {
	s.skipOne(',')
	s.skipSpacesTabs()
	day, ok := s.readUint()
	if !ok {
		return -1
	}
	month := s.readMonth()
	if month < 0 {
		return -1
	}
	s.skipSpacesTabs()
	year, ok := s.readUint()
	if !ok {
		return -1
	}
	sod := s.readTimeOfDay()
	if sod < 0 {
		return -1
	}
	if !s.readGMT() {
		return -1
	}
	if !isValidEpochDate(day, month, year) {
		return -1
	}
	return secondsSinceEpoch(sod, day, month, year)
}

// parseRFC850 parses ", DD-Mon-YY HH:MM:SS GMT" (the long weekday has
// already been consumed).
func parseRFC850(s *scanner) int64 {
	s.skipSpacesTabs()
	if !s.skipOne(',') {
		return -1
	}
	s.skipSpacesTabs()
	day, ok := s.readUint()
	if !ok || !s.skipOne('-') {
		return -1
	}
	month := s.readMonth()
	if month < 0 || !s.skipOne('-') {
		return -1
	}
	yy, ok := s.readUint()
	if !ok {
		return -1
	}
	year := 1900 + yy
	if year < 1900 || year > 1999 {
		return -1
	}
	sod := s.readTimeOfDay()
	if sod < 0 {
		return -1
	}
	if !s.readGMT() {
		return -1
	}
	if !isValidEpochDate(day, month, year) {
		return -1
	}
	return secondsSinceEpoch(sod, day, month, year)
}

// parseAsctime parses "Mon DD HH:MM:SS YYYY" (the short weekday has
// already been consumed).
func parseAsctime(s *scanner) int64 {
	month := s.readMonth()
	if month < 0 {
		return -1
	}
	s.skipSpacesTabs()
	day, ok := s.readUint()
	if !ok {
		return -1
	}
	sod := s.readTimeOfDay()
	if sod < 0 {
		return -1
	}
	s.skipSpacesTabs()
	year, ok := s.readUint()
	if !ok {
		return -1
	}
	if !isValidEpochDate(day, month, year) {
		return -1
	}
	return secondsSinceEpoch(sod, day, month, year)
}

func isLeap(year int) bool {
	return year%4 == 0
}

func isValidEpochDate(day, month, year int) bool {
	if year < 1970 || month < 1 || month > 12 || day < 1 {
		return false
	}
	switch {
	case month < 8 && month%2 == 1 && day > 31:
		return false
	case month < 8 && month%2 == 0 && day > 30:
		return false
	case month > 7 && month%2 == 0 && day > 31:
		return false
	case month > 7 && month%2 == 1 && day > 30:
		return false
	case month == 2 && !isLeap(year) && day > 28:
		return false
	case month == 2 && isLeap(year) && day > 29:
		return false
	}
	return true
}

func dayOfYear(day, month, year int) int {
	result := day
	if month < 3 {
		result += (306*month - 301) / 10
	} else {
		result += (306*month - 913) / 10
		if isLeap(year) {
			result += 60
		} else {
			result += 59
		}
	}
	return result
}

func secondsSinceEpoch(secondOfDay, day, month, year int) int64 {
	secondOfYear := int64(secondOfDay) + int64(dayOfYear(day, month, year)-1)*86400
	yearSeconds := int64(year-1970)*86400*365 + int64((year-(1972-3))/4)*86400
	return yearSeconds + secondOfYear
}
