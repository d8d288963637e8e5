package dataprocessing

// Column names the pipeline reads or writes.
const (
	ColumnEmail        = "Email address"
	ColumnCompany      = "Company"
	ColumnOwner        = "Owner"
	ColumnTask         = "Task"
	ColumnClickedAt    = "Clicked At"
	ColumnClickedLink  = "Clicked Link Address"
	clickedAtKey       = "clicked at"
	clickedLinkAddress = "clicked link address"
)

// DeniedColumns are identity and engagement columns stripped from every export.
var DeniedColumns = []string{
	"Email status",
	"Email permission status",
	"Email update source",
	"Confirmed Opt-Out Date",
	"Confirmed Opt-Out Source",
	"Confirmed Opt-Out Reason",
	"Phone - home",
	"Phone - mobile",
	"Phone - other",
	"Phone - work",
	"Street address line 1 - Home",
	"Country - Home",
	"Street address line 1 - Other",
	"City - Other",
	"State/Province - Other",
	"Zip/Postal Code - Other",
	"Country - Other",
	"Street address line 1 - Work",
	"City - Work",
	"State/Province - Work",
	"Zip/Postal Code - Work",
	"Country - Work",
	"Supplier",
	"Customer Contact",
	"Custom Field 1",
	"Custom Field 2",
	"Custom Field 3",
	"Custom Field 4",
	"Tags",
	"Source Name",
	"Updated At",
	"Created At",
	"Status",
	"Email Lists",
}

// personalDomains lists consumer mail providers. Contacts on these domains
// are only kept when a company is known.
var personalDomains = map[string]struct{}{
	"gmail.com":   {},
	"yahoo.com":   {},
	"hotmail.com": {},
	"outlook.com": {},
	"icloud.com":  {},
	"aol.com":     {},
	"live.com":    {},
	"msn.com":     {},
	"me.com":      {},
	"mail.com":    {},
}

// IsPersonalDomain reports whether domain is a known consumer provider.
// The match is exact and case-sensitive.
func IsPersonalDomain(domain string) bool {
	_, ok := personalDomains[domain]
	return ok
}

// LeadingColumns is the fixed prefix of every exported sheet.
var LeadingColumns = []string{
	ColumnOwner,
	ColumnTask,
	ColumnCompany,
	ColumnEmail,
	ColumnClickedLink,
}

// missingMarkers are the field values read as "no value", matching what
// spreadsheet exporters and pandas treat as NA.
var missingMarkers = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// nullText is the rendering of a missing value before normalization blanks it.
const nullText = "nan"
