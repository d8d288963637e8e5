package dataprocessing

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PruneColumns removes every column whose name is in deny. Names that are not
// present are skipped. It returns the pruned table and the removed names.
func PruneColumns(t *Table, deny []string) (*Table, []string) {
	denied := make(map[string]struct{}, len(deny))
	for _, name := range deny {
		denied[name] = struct{}{}
	}

	var keep []int
	var removed []string
	for i, name := range t.columns {
		if _, ok := denied[name]; ok {
			removed = append(removed, name)
			continue
		}
		keep = append(keep, i)
	}
	if len(removed) == 0 {
		return t.clone(), nil
	}
	return t.selectColumns(keep), removed
}

// FilterOptions tunes the personal-domain filter.
type FilterOptions struct {
	// CaseInsensitive lowercases the email domain before matching.
	CaseInsensitive bool
}

// FilterReport describes what FilterPersonalDomains removed.
type FilterReport struct {
	Removed  int
	Examples []RemovedContact
}

// RemovedContact is a sample of a row dropped by the personal-domain filter.
type RemovedContact struct {
	Email   string
	Company string
}

const maxRemovedExamples = 5

// FilterPersonalDomains drops rows whose email domain is a consumer provider
// and whose company is missing or empty. Rows without an "@" are kept.
func FilterPersonalDomains(t *Table, opts FilterOptions) (*Table, FilterReport) {
	var report FilterReport
	emailCol, hasEmail := t.FindColumn(ColumnEmail)
	companyCol, hasCompany := t.FindColumn(ColumnCompany)

	keep := make([]bool, t.Len())
	for i := range t.rows {
		keep[i] = true
		if !hasEmail {
			continue
		}
		email := t.rows[i][emailCol]
		if !email.Present {
			continue
		}
		domain, ok := EmailDomain(email.Text)
		if !ok {
			continue
		}
		if opts.CaseInsensitive {
			domain = strings.ToLower(domain)
		}
		if !IsPersonalDomain(domain) {
			continue
		}
		company := Missing()
		if hasCompany {
			company = t.rows[i][companyCol]
		}
		if !company.IsBlank() {
			continue
		}
		keep[i] = false
		report.Removed++
		if len(report.Examples) < maxRemovedExamples {
			report.Examples = append(report.Examples, RemovedContact{Email: email.Text, Company: company.Text})
		}
	}
	return t.selectRows(keep), report
}

// BackfillReport describes what BackfillCompany changed.
type BackfillReport struct {
	// Blank is the number of rows whose company was missing or empty.
	Blank int
	// Filled is the number of companies derived from an email domain.
	Filled int
}

// BackfillCompany fills missing companies with the title-cased first label
// of the email domain. Rows without an email keep their blank company.
func BackfillCompany(t *Table) (*Table, BackfillReport) {
	var report BackfillReport
	emailCol, hasEmail := t.FindColumn(ColumnEmail)

	out := t.withColumn(ColumnCompany, func(i int, old Cell) Cell {
		if !old.IsBlank() {
			return old
		}
		report.Blank++
		if !hasEmail {
			return old
		}
		email := t.rows[i][emailCol]
		if !email.Present {
			return old
		}
		name, ok := CompanyFromEmail(email.Text)
		if !ok {
			return old
		}
		report.Filled++
		return Text(name)
	})
	return out, report
}

// EmailDomain returns the part of email after its first "@".
func EmailDomain(email string) (string, bool) {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return "", false
	}
	return email[at+1:], true
}

// CompanyFromEmail derives a company name from the email domain: the text
// between "@" and the next "." in title case, so "jo@acme.co.uk" gives "Acme".
// Every run of cased letters is a word: "abc123def" gives "Abc123Def" and
// "o'reilly" gives "O'Reilly".
func CompanyFromEmail(email string) (string, bool) {
	domain, ok := EmailDomain(email)
	if !ok {
		return "", false
	}
	label := domain
	if dot := strings.IndexByte(domain, '.'); dot >= 0 {
		label = domain[:dot]
	}
	return titleWords(label), true
}

func titleWords(s string) string {
	// Caser values are stateful; one per call.
	caser := cases.Title(language.Und)
	var b strings.Builder
	b.Grow(len(s))
	start := -1
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isCased(r) {
			if start < 0 {
				start = i
			}
		} else {
			if start >= 0 {
				b.WriteString(caser.String(s[start:i]))
				start = -1
			}
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}

func isCased(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
}

// KeepPolicy decides which members of a duplicate group survive.
type KeepPolicy int

const (
	// KeepNone removes every row of a duplicate group.
	KeepNone KeepPolicy = iota
	// KeepFirst keeps the first row of a duplicate group.
	KeepFirst
)

func (p KeepPolicy) String() string {
	if p == KeepFirst {
		return "first"
	}
	return "none"
}

// DedupPass configures one duplicate-removal pass keyed on the email address
// and the column whose name case-insensitively equals KeyColumn.
type DedupPass struct {
	Name      string
	KeyColumn string
	Keep      KeepPolicy
	// DropColumn, when set, is removed (exact name) after the pass.
	DropColumn string
	// RequireKeyColumn skips the pass when the key column is absent instead
	// of keying on the email address alone.
	RequireKeyColumn bool
}

// DedupReport describes one duplicate-removal pass.
type DedupReport struct {
	KeyColumn string
	KeyFound  bool
	Skipped   bool
	// Duplicates counts rows flagged by the keep policy and removed.
	Duplicates int
}

// ClickTimestampPass removes every copy of rows sharing email and click time.
func ClickTimestampPass() DedupPass {
	return DedupPass{
		Name:       "click timestamp",
		KeyColumn:  clickedAtKey,
		Keep:       KeepNone,
		DropColumn: ColumnClickedAt,
	}
}

// ClickLinkPass collapses rows sharing email and clicked link to the first.
func ClickLinkPass() DedupPass {
	return DedupPass{
		Name:      "clicked link",
		KeyColumn: clickedLinkAddress,
		Keep:      KeepFirst,
	}
}

// RemoveDuplicates applies one dedup pass.
func RemoveDuplicates(t *Table, pass DedupPass) (*Table, DedupReport) {
	report := DedupReport{}
	keyCol, found := t.FindColumnFold(pass.KeyColumn)
	report.KeyFound = found
	if found {
		report.KeyColumn = t.columns[keyCol]
	}

	out := t
	if !found && pass.RequireKeyColumn {
		report.Skipped = true
		out = t.clone()
	} else {
		emailCol, hasEmail := t.FindColumn(ColumnEmail)
		keys := make([]string, t.Len())
		for i, row := range t.rows {
			email, click := Missing(), Missing()
			if hasEmail {
				email = row[emailCol]
			}
			if found {
				click = row[keyCol]
			}
			keys[i] = cellKey(email) + "\x1f" + cellKey(click)
		}
		keep := markKeep(keys, pass.Keep)
		for _, k := range keep {
			if !k {
				report.Duplicates++
			}
		}
		out = t.selectRows(keep)
	}

	if pass.DropColumn != "" {
		if col, ok := out.FindColumn(pass.DropColumn); ok {
			idx := make([]int, 0, out.Width()-1)
			for i := range out.columns {
				if i != col {
					idx = append(idx, i)
				}
			}
			out = out.selectColumns(idx)
		}
	}
	return out, report
}

func cellKey(c Cell) string {
	if !c.Present {
		return "\x00"
	}
	return "\x01" + c.Text
}

func markKeep(keys []string, policy KeepPolicy) []bool {
	keep := make([]bool, len(keys))
	switch policy {
	case KeepFirst:
		seen := make(map[string]struct{}, len(keys))
		for i, k := range keys {
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keep[i] = true
			}
		}
	default:
		counts := make(map[string]int, len(keys))
		for _, k := range keys {
			counts[k]++
		}
		for i, k := range keys {
			keep[i] = counts[k] == 1
		}
	}
	return keep
}

// NormalizeColumns renders every cell as text with missing values blanked,
// ensures Owner exists, sets an empty Task column, and moves LeadingColumns
// to the front in their fixed order.
func NormalizeColumns(t *Table) *Table {
	out := &Table{columns: t.Columns(), rows: make([][]Cell, len(t.rows))}
	for i, row := range t.rows {
		nr := make([]Cell, len(row))
		for j, c := range row {
			nr[j] = stringify(c)
		}
		out.rows[i] = nr
	}

	if !out.HasColumn(ColumnOwner) {
		out = out.withColumn(ColumnOwner, func(int, Cell) Cell { return Text("") })
	}
	out = out.withColumn(ColumnTask, func(int, Cell) Cell { return Text("") })

	return out.selectColumns(leadingOrder(out.columns))
}

func stringify(c Cell) Cell {
	if !c.Present || c.Text == nullText {
		return Text("")
	}
	return c
}

func leadingOrder(columns []string) []int {
	used := make([]bool, len(columns))
	idx := make([]int, 0, len(columns))
	for _, name := range LeadingColumns {
		for i, c := range columns {
			if c == name {
				idx = append(idx, i)
				used[i] = true
				break
			}
		}
	}
	for i := range columns {
		if !used[i] {
			idx = append(idx, i)
		}
	}
	return idx
}
