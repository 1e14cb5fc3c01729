package handlers

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"expense-ledger/internal/models"
)

// CategoryStyle defines the visual style for a category.
type CategoryStyle struct {
	Icon  string
	Color string
}

var categoryStyles = map[models.Category]CategoryStyle{
	models.CategoryFood:          {"🍽️", "#60a5fa"},
	models.CategoryTransport:     {"🚌", "#a78bfa"},
	models.CategoryUtilities:     {"💡", "#fbbf24"},
	models.CategoryRent:          {"🏠", "#818cf8"},
	models.CategoryEntertainment: {"🎮", "#f472b6"},
	models.CategoryShopping:      {"🛍️", "#fb7185"},
	models.CategoryHealth:        {"🩺", "#34d399"},
	models.CategoryEducation:     {"📚", "#38bdf8"},
	models.CategorySalary:        {"💼", "#22c55e"},
	models.CategoryInvestment:    {"📈", "#10b981"},
	models.CategoryOtherIncome:   {"💰", "#84cc16"},
	models.CategorySavings:       {"🏦", "#0ea5e9"},
	models.CategoryMisc:          {"📦", "#94a3b8"},
}

var uncategorizedStyle = CategoryStyle{Icon: "❔", Color: "#cbd5e1"}

func getCategoryStyle(category models.Category) CategoryStyle {
	if s, ok := categoryStyles[category]; ok {
		return s
	}
	return uncategorizedStyle
}

// CategoryOption is one entry of the category select box.
type CategoryOption struct {
	Name     models.Category
	Icon     string
	Selected bool
}

func categoryOptions(selected models.Category) []CategoryOption {
	cats := models.Categories()
	opts := make([]CategoryOption, 0, len(cats))
	for _, c := range cats {
		opts = append(opts, CategoryOption{Name: c, Icon: getCategoryStyle(c).Icon, Selected: c == selected})
	}
	return opts
}

// Option is a numeric select box entry.
type Option struct {
	Value    int
	Name     string
	Selected bool
}

func monthOptions(selected int) []Option {
	opts := []Option{{Value: 0, Name: "All months", Selected: selected == 0}}
	for m := 1; m <= 12; m++ {
		opts = append(opts, Option{Value: m, Name: time.Month(m).String(), Selected: m == selected})
	}
	return opts
}

func yearOptions(years []int, selected int) []Option {
	if !slices.Contains(years, selected) {
		years = append(slices.Clone(years), selected)
		slices.Sort(years)
	}
	opts := make([]Option, 0, len(years))
	for _, y := range years {
		opts = append(opts, Option{Value: y, Name: strconv.Itoa(y), Selected: y == selected})
	}
	return opts
}

// periodFromQuery reads year and month, defaulting to the current month.
// month=0 selects the whole year.
func periodFromQuery(q url.Values, now time.Time) models.Filter {
	f := models.MonthFilter(now.Year(), now.Month())
	if y, err := strconv.Atoi(q.Get("year")); err == nil && y > 0 {
		f.Year = y
	}
	if s := q.Get("month"); s != "" {
		if m, err := strconv.Atoi(s); err == nil && m >= 0 && m <= 12 {
			f.Month = m
		}
	}
	return f
}

// exportFilter reads year and month without defaults, so an empty query
// exports everything.
func exportFilter(q url.Values) models.Filter {
	var f models.Filter
	if y, err := strconv.Atoi(q.Get("year")); err == nil && y > 0 {
		f.Year = y
	}
	if m, err := strconv.Atoi(q.Get("month")); err == nil && m >= 1 && m <= 12 {
		f.Month = m
	}
	return f
}

func periodLabel(f models.Filter) string {
	switch {
	case f.HasMonth():
		return time.Month(f.Month).String() + " " + strconv.Itoa(f.Year)
	case f.HasYear():
		return strconv.Itoa(f.Year)
	default:
		return "all time"
	}
}

func periodQuery(f models.Filter) string {
	v := url.Values{}
	if f.HasYear() {
		v.Set("year", strconv.Itoa(f.Year))
		v.Set("month", strconv.Itoa(f.Month))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func formatGroupTitle(date, now time.Time) string {
	dateStr := date.Format(models.DateLayout)

	if dateStr == now.Format(models.DateLayout) {
		return "TODAY"
	}
	if dateStr == now.AddDate(0, 0, -1).Format(models.DateLayout) {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Format("Mon, 02 Jan '06"))
}
