package brutaltpl

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/yuin/goldmark"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale aware and markup filters.
func textFilters() Filters {
	return Filters{
		"number":   numberFilter,
		"percent":  percentFilter,
		"date":     dateFilter,
		"markdown": markdownFilter,
	}
}

func printerFor(locale any) *message.Printer {
	tag := language.English
	if s := toString(locale); s != "" {
		if t, err := language.Parse(strings.ReplaceAll(s, "_", "-")); err == nil {
			tag = t
		}
	}
	return message.NewPrinter(tag)
}

// number(locale[, digits]) groups and localizes a number. With digits the
// fraction is fixed to that many places.
func numberFilter(v any, args ...any) (any, error) {
	p := printerFor(arg(args, 0))
	f := toNumber(v)
	if d := arg(args, 1); !isNullish(d) {
		n := int(toNumber(d))
		return p.Sprint(number.Decimal(f, number.MinFractionDigits(n), number.MaxFractionDigits(n))), nil
	}
	return p.Sprint(number.Decimal(f)), nil
}

// percent(locale) formats a ratio, so 0.25 becomes 25%.
func percentFilter(v any, args ...any) (any, error) {
	p := printerFor(arg(args, 0))
	return p.Sprint(number.Percent(toNumber(v))), nil
}

// date(layout[, locale]) formats a time.Time, a unix timestamp in seconds or
// an RFC 3339 string. Month and day names follow locale.
func dateFilter(v any, args ...any) (any, error) {
	t, err := toTime(v)
	if err != nil {
		return nil, err
	}
	layout := time.RFC3339
	if l := arg(args, 0); !isNullish(l) {
		layout = toString(l)
	}
	return monday.Format(t, layout, mondayLocale(toString(arg(args, 1)))), nil
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case *time.Time:
		if x != nil {
			return *x, nil
		}
	case string:
		return time.Parse(time.RFC3339, fastTrim(x))
	}
	if f, ok := asFloat(v); ok {
		return time.Unix(int64(f), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("date: cannot use %s as a time", describe(v))
}

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"fi":    monday.LocaleFiFI,
	"da":    monday.LocaleDaDK,
	"ja":    monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW,
	"ko":    monday.LocaleKoKR,
	"tr":    monday.LocaleTrTR,
	"uk":    monday.LocaleUkUA,
}

func mondayLocale(s string) monday.Locale {
	s = strings.ToLower(strings.ReplaceAll(s, "-", "_"))
	if loc, ok := mondayLocales[s]; ok {
		return loc
	}
	if lang, _, found := strings.Cut(s, "_"); found {
		if loc, ok := mondayLocales[lang]; ok {
			return loc
		}
	}
	return monday.LocaleEnUS
}

var markdown = goldmark.New()

// markdown renders CommonMark to HTML. The result is not escaped again.
func markdownFilter(v any, _ ...any) (any, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(toString(v)), &buf); err != nil {
		return nil, fmt.Errorf("markdown: %w", err)
	}
	return SafeHTML(buf.String()), nil
}
