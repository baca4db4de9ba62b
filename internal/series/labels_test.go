package series

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocaleFormatterLayouts(t *testing.T) {
	instant := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	cases := []struct {
		locale string
		want   string
	}{
		{"", "3/5/2024, 2:07:09 PM"},
		{"en-US", "3/5/2024, 2:07:09 PM"},
		{"en-GB", "05/03/2024, 14:07:09"},
		{"de-DE", "5.3.2024, 14:07:09"},
		{"ru", "05.03.2024, 14:07:09"},
		{"zh-CN", "2024/3/5 14:07:09"},
	}

	for _, tc := range cases {
		f, err := NewLocaleFormatter(tc.locale, time.UTC)
		require.NoError(t, err)
		assert.Equal(t, tc.want, f.FormatTime(instant), "locale %q", tc.locale)
	}
}

func TestLocaleFormatterUsesLocation(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*60*60)
	f, err := NewLocaleFormatter("ru", zone)
	require.NoError(t, err)

	assert.Equal(t, "01.01.1970, 03:00:00", f.FormatTime(time.Unix(0, 0)))
}

func TestLocaleFormatterRejectsGarbage(t *testing.T) {
	_, err := NewLocaleFormatter("not a locale!", time.UTC)
	assert.Error(t, err)
}

func TestTooltip(t *testing.T) {
	f, err := NewLocaleFormatter("en-US", time.UTC)
	require.NoError(t, err)

	p := PlottedPoint{X: time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC), Y: 5, Amount: decimal.NewFromInt(5)}
	assert.Equal(t, "2024-03-05 Payment 5.0000 ETH", f.Tooltip(p, "ETH"))
	assert.Equal(t, "2024-03-05 Payment 5.0000", f.Tooltip(p, ""))
}
