package series

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LabelFormatter renders an instant as human readable text.
type LabelFormatter interface {
	FormatTime(t time.Time) string
}

// LabelFunc adapts a function to LabelFormatter.
type LabelFunc func(t time.Time) string

// FormatTime implements LabelFormatter.
func (f LabelFunc) FormatTime(t time.Time) string { return f(t) }

// tooltipDateLayout matches the chart tooltip's %Y-%m-%d.
const tooltipDateLayout = "2006-01-02"

// The first entry is the fallback when nothing matches.
var localeLayouts = []struct {
	tag    language.Tag
	layout string
}{
	{language.AmericanEnglish, "1/2/2006, 3:04:05 PM"},
	{language.BritishEnglish, "02/01/2006, 15:04:05"},
	{language.German, "2.1.2006, 15:04:05"},
	{language.French, "02/01/2006 15:04:05"},
	{language.Spanish, "2/1/2006, 15:04:05"},
	{language.Russian, "02.01.2006, 15:04:05"},
	{language.Chinese, "2006/1/2 15:04:05"},
	{language.Japanese, "2006/1/2 15:04:05"},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(localeLayouts))
	for i, l := range localeLayouts {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// LocaleFormatter formats point labels and tooltips for one locale and time zone.
type LocaleFormatter struct {
	tag      language.Tag
	layout   string
	location *time.Location
	printer  *message.Printer
}

// NewLocaleFormatter resolves a BCP 47 locale (e.g. "en-US", "de") to a label layout.
// An empty locale selects en-US; a nil location selects time.Local.
func NewLocaleFormatter(locale string, location *time.Location) (*LocaleFormatter, error) {
	tag := language.AmericanEnglish
	if strings.TrimSpace(locale) != "" {
		parsed, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}
		tag = parsed
	}
	if location == nil {
		location = time.Local
	}

	_, idx, _ := localeMatcher.Match(tag)
	return &LocaleFormatter{
		tag:      tag,
		layout:   localeLayouts[idx].layout,
		location: location,
		printer:  message.NewPrinter(tag),
	}, nil
}

// FormatTime implements LabelFormatter.
func (f *LocaleFormatter) FormatTime(t time.Time) string {
	return t.In(f.location).Format(f.layout)
}

// Tooltip renders the hover text for a point: date, amount with four decimals, unit.
func (f *LocaleFormatter) Tooltip(p PlottedPoint, unit string) string {
	text := fmt.Sprintf("%s Payment %s", p.X.In(f.location).Format(tooltipDateLayout), f.printer.Sprintf("%.4f", p.Y))
	if unit != "" {
		text += " " + unit
	}
	return text
}

// Locale returns the parsed locale tag.
func (f *LocaleFormatter) Locale() language.Tag {
	return f.tag
}

var _ LabelFormatter = (*LocaleFormatter)(nil)
