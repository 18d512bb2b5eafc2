package parsers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neumann-mlucas/BWGI/internal/models"
	"github.com/neumann-mlucas/BWGI/pkg/errors"
)

// ColumnMap gives the zero-based position of each transaction field in a
// ledger row
type ColumnMap struct {
	Date        int `json:"date" yaml:"date"`
	Department  int `json:"department" yaml:"department"`
	Value       int `json:"value" yaml:"value"`
	Counterpart int `json:"counterpart" yaml:"counterpart"`
}

// LedgerProfile describes the layout of a ledger CSV file: column
// positions, delimiter, header handling and an optional pinned date format
type LedgerProfile struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     ColumnMap `json:"columns" yaml:"columns"`
	Delimiter   rune      `json:"-" yaml:"-"`

	// DelimiterString is the YAML/JSON representation of Delimiter; a rune
	// does not round-trip cleanly through either encoding
	DelimiterString string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// HasHeader declares that the first row is a header and must be skipped
	HasHeader bool `json:"has_header" yaml:"has_header"`

	// AutoDetectHeader treats the first row as a header when its date
	// column does not parse as a date; ignored when HasHeader is set
	AutoDetectHeader bool `json:"auto_detect_header" yaml:"auto_detect_header"`

	// DateFormat pins a single Go reference-time layout for the date
	// column; when empty the standard candidate formats are tried in order
	DateFormat string `json:"date_format,omitempty" yaml:"date_format,omitempty"`
}

// Validate checks that the profile describes a usable row layout
func (lp *LedgerProfile) Validate() error {
	if strings.TrimSpace(lp.Name) == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	positions := map[int]string{}
	for _, col := range []struct {
		name  string
		index int
	}{
		{"date", lp.Columns.Date},
		{"department", lp.Columns.Department},
		{"value", lp.Columns.Value},
		{"counterpart", lp.Columns.Counterpart},
	} {
		if col.index < 0 {
			return fmt.Errorf("column %s has negative position %d", col.name, col.index)
		}
		if other, taken := positions[col.index]; taken {
			return fmt.Errorf("columns %s and %s share position %d", other, col.name, col.index)
		}
		positions[col.index] = col.name
	}

	if lp.Delimiter == 0 {
		return fmt.Errorf("profile %s has no delimiter", lp.Name)
	}

	return nil
}

// MinFields returns the minimum row width the profile requires
func (lp *LedgerProfile) MinFields() int {
	min := lp.Columns.Date
	for _, idx := range []int{lp.Columns.Department, lp.Columns.Value, lp.Columns.Counterpart} {
		if idx > min {
			min = idx
		}
	}
	return min + 1
}

// ParseRowDate parses a date cell according to the profile
func (lp *LedgerProfile) ParseRowDate(value string) (parsed bool) {
	if lp.DateFormat != "" {
		_, err := models.ParseDateWithLayout(value, lp.DateFormat)
		return err == nil
	}
	_, err := models.ParseDate(value)
	return err == nil
}

// resolveDelimiter fills Delimiter from DelimiterString after decoding
func (lp *LedgerProfile) resolveDelimiter() error {
	switch len([]rune(lp.DelimiterString)) {
	case 0:
		if lp.Delimiter == 0 {
			lp.Delimiter = ','
		}
	case 1:
		lp.Delimiter = []rune(lp.DelimiterString)[0]
	default:
		return fmt.Errorf("profile %s: delimiter %q must be a single character", lp.Name, lp.DelimiterString)
	}
	return nil
}

// StandardLedgerProfile matches the canonical export format: headerless
// rows of [date, department, value, counterpart] separated by commas.
// Header auto-detection is on so a stray header row does not break parsing.
var StandardLedgerProfile = &LedgerProfile{
	Name:        "standard",
	Description: "Headerless date,department,value,counterpart rows",
	Columns: ColumnMap{
		Date:        0,
		Department:  1,
		Value:       2,
		Counterpart: 3,
	},
	Delimiter:        ',',
	HasHeader:        false,
	AutoDetectHeader: true,
}

// HeaderedLedgerProfile matches the same column order with a declared
// header row
var HeaderedLedgerProfile = &LedgerProfile{
	Name:        "headered",
	Description: "date,department,value,counterpart rows with a header",
	Columns: ColumnMap{
		Date:        0,
		Department:  1,
		Value:       2,
		Counterpart: 3,
	},
	Delimiter: ',',
	HasHeader: true,
}

// SemicolonLedgerProfile matches exports from spreadsheet tools configured
// for locales that use semicolons as field separators
var SemicolonLedgerProfile = &LedgerProfile{
	Name:        "semicolon",
	Description: "Headerless rows separated by semicolons",
	Columns: ColumnMap{
		Date:        0,
		Department:  1,
		Value:       2,
		Counterpart: 3,
	},
	Delimiter:        ';',
	HasHeader:        false,
	AutoDetectHeader: true,
}

var builtinProfiles = map[string]*LedgerProfile{
	"standard":  StandardLedgerProfile,
	"headered":  HeaderedLedgerProfile,
	"semicolon": SemicolonLedgerProfile,
}

// GetLedgerProfile returns a built-in profile by name
func GetLedgerProfile(name string) (*LedgerProfile, error) {
	profile, exists := builtinProfiles[strings.ToLower(strings.TrimSpace(name))]
	if !exists {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"profile",
			name,
			fmt.Errorf("unknown ledger profile"),
		).WithSuggestion(fmt.Sprintf("Available profiles: %s", strings.Join(ListLedgerProfiles(), ", ")))
	}
	return profile, nil
}

// ListLedgerProfiles returns the names of all built-in profiles
func ListLedgerProfiles() []string {
	names := make([]string, 0, len(builtinProfiles))
	for name := range builtinProfiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// profileFile is the YAML document shape for custom profile files
type profileFile struct {
	Profiles []*LedgerProfile `yaml:"profiles"`
}

// LoadProfilesFromFile reads custom ledger profiles from a YAML file.
// The document holds a top-level "profiles" list; each entry follows the
// LedgerProfile field names.
func LoadProfilesFromFile(path string) (map[string]*LedgerProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFileUnreadable, path, err)
	}

	var doc profileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.ConfigurationError(errors.CodeConfigParseError, "profile_file", path, err).
			WithSuggestion("Check the profile file for YAML syntax errors")
	}

	if len(doc.Profiles) == 0 {
		return nil, errors.ConfigurationError(
			errors.CodeMissingConfig,
			"profiles",
			path,
			fmt.Errorf("profile file defines no profiles"),
		).WithSuggestion("Add a top-level 'profiles' list with at least one entry")
	}

	profiles := make(map[string]*LedgerProfile, len(doc.Profiles))
	for _, profile := range doc.Profiles {
		if err := profile.resolveDelimiter(); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "profile_file", path, err)
		}
		if err := profile.Validate(); err != nil {
			return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "profile_file", path, err).
				WithSuggestion("Fix the profile definition and try again")
		}
		key := strings.ToLower(profile.Name)
		if _, dup := profiles[key]; dup {
			return nil, errors.ConfigurationError(
				errors.CodeInvalidConfig,
				"profile_file",
				path,
				fmt.Errorf("duplicate profile name: %s", profile.Name),
			)
		}
		profiles[key] = profile
	}

	return profiles, nil
}

// ResolveLedgerProfile finds a profile by name, preferring custom profiles
// from profilePath over the built-ins
func ResolveLedgerProfile(name, profilePath string) (*LedgerProfile, error) {
	if profilePath != "" {
		custom, err := LoadProfilesFromFile(profilePath)
		if err != nil {
			return nil, err
		}
		if profile, exists := custom[strings.ToLower(strings.TrimSpace(name))]; exists {
			return profile, nil
		}
	}
	return GetLedgerProfile(name)
}
