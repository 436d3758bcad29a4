package httpdate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const wantEpoch = int64(784111777)

func TestParseRFC1123(t *testing.T) {
	require.Equal(t, wantEpoch, Parse("Sun, 06 Nov 1994 08:49:37 GMT"))
}

func TestParseRFC850(t *testing.T) {
	require.Equal(t, wantEpoch, Parse("Sunday, 06-Nov-94 08:49:37 GMT"))
}

func TestParseAsctime(t *testing.T) {
	require.Equal(t, wantEpoch, Parse("Sun Nov  6 08:49:37 1994"))
}

func TestParseInvalid(t *testing.T) {
	require.EqualValues(t, -1, Parse("not a date"))
	require.EqualValues(t, -1, Parse("Sun, 32 Nov 1994 08:49:37 GMT"))
	require.EqualValues(t, -1, Parse("Sun, 06 Nov 1994 25:49:37 GMT"))
}

func TestLeapYearRule(t *testing.T) {
	require.NotEqual(t, int64(-1), Parse("Mon, 29 Feb 2016 00:00:00 GMT"))
	require.EqualValues(t, -1, Parse("Sun, 29 Feb 2015 00:00:00 GMT"))
}
