package clock

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNow(t *testing.T) {
	before := time.Now().UnixMilli()
	now := Now()
	after := time.Now().UnixMilli()
	require.True(t, before <= now && now <= after)
}

func TestFormatLocal(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 890_000_000, time.Local)
	require.Equal(t, "2021-03-04 05:06:07", FormatLocal(ts.UnixMilli()))
	require.Equal(t, "2021-03-04 05:06:07.890", FormatLocalMillis(ts.UnixMilli()))

	// Zero means now.
	require.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`), FormatLocal(0))

	// Negative values do not panic.
	require.NotEmpty(t, FormatLocal(-1000))
}

func TestSeconds(t *testing.T) {
	require.Equal(t, 2.5, Seconds(1000, 3500))
	require.Equal(t, 0.0, Seconds(1000, 1000))
}
