// Package normalize turns raw scraped job listings into structured records
// ready for storage.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

var (
	ErrMissingField = errors.New("required field is missing")

	// separators between values of a multi-value field: comma and mid-dot
	multiValueSeparators = regexp.MustCompile(`[,·]`)

	// "(수정 24/03/15)" / "등록 24/03/15" / "(updated 24/03/15)"
	modifiedMarker = regexp.MustCompile(`\(?\s*(?:수정|등록|updated|posted)\s+(\d{2})/(\d{2})/(\d{2})\s*\)?`)

	sentinelTokens = map[string]struct{}{
		"etc.": {},
		"외":    {},
	}
)

type (
	// RawRecord is one scraped listing: labeled free-text fields.
	RawRecord map[string]string

	Record struct {
		Company          string
		Title            string
		Link             string
		LinkHash         string
		Locations        []string
		ExperienceLevels []string
		EducationLevel   string
		EmploymentTypes  []string
		EmploymentType   string
		Deadline         string
		Sectors          []string
		LastModified     *time.Time
		Salary           string
	}
)

// field labels accepted for every record attribute, in lookup order
var fieldAliases = map[string][]string{
	"company":         {"company", "회사명"},
	"title":           {"title", "제목"},
	"link":            {"link", "링크"},
	"location":        {"location", "지역"},
	"experience":      {"experience", "경력"},
	"education":       {"education", "학력"},
	"employment_type": {"employment_type", "고용형태"},
	"deadline":        {"deadline", "마감일"},
	"sector":          {"sector", "직무분야"},
	"salary":          {"salary", "연봉정보"},
}

// Get returns the trimmed value of the first alias of name present in the record.
func (r RawRecord) Get(name string) string {
	for _, key := range fieldAliases[name] {
		if v, ok := r[key]; ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// SplitMulti splits a comma / mid-dot separated field into trimmed, non-empty
// tokens, dropping the "etc." sentinel.
func SplitMulti(s string) []string {
	out := make([]string, 0)
	for _, token := range multiValueSeparators.Split(s, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := sentinelTokens[token]; ok {
			continue
		}
		out = append(out, token)
	}
	return out
}

// ParseSectorField extracts the embedded modification date marker, if any,
// and splits the remaining text into sectors.
func ParseSectorField(s string) ([]string, *time.Time) {
	loc := modifiedMarker.FindStringSubmatchIndex(s)
	if loc == nil {
		return SplitMulti(s), nil
	}

	parts := make([]int, 3)
	for i := range parts {
		v, err := strconv.Atoi(s[loc[2+i*2]:loc[3+i*2]])
		if err != nil {
			return SplitMulti(s), nil
		}
		parts[i] = v
	}

	formatted := fmt.Sprintf("%04d-%02d-%02d", 2000+parts[0], parts[1], parts[2])
	date, err := time.Parse(dateLayout, formatted)
	if err != nil {
		return SplitMulti(s), nil
	}

	rest := s[:loc[0]] + " " + s[loc[1]:]
	return SplitMulti(rest), &date
}

// LinkHash is the content address of a posting's source link.
func LinkHash(link string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(link)))
	return hex.EncodeToString(sum[:])
}

func Normalize(raw RawRecord) (Record, error) {
	rec := Record{
		Company:        raw.Get("company"),
		Title:          raw.Get("title"),
		Link:           raw.Get("link"),
		EducationLevel: raw.Get("education"),
		Deadline:       raw.Get("deadline"),
		Salary:         raw.Get("salary"),
	}
	switch {
	case rec.Company == "":
		return Record{}, errors.Wrap(ErrMissingField, "company")
	case rec.Title == "":
		return Record{}, errors.Wrap(ErrMissingField, "title")
	case rec.Link == "":
		return Record{}, errors.Wrap(ErrMissingField, "link")
	}

	rec.LinkHash = LinkHash(rec.Link)
	rec.Locations = SplitMulti(raw.Get("location"))
	rec.ExperienceLevels = SplitMulti(raw.Get("experience"))
	rec.EmploymentTypes = SplitMulti(raw.Get("employment_type"))
	if len(rec.EmploymentTypes) > 0 {
		rec.EmploymentType = rec.EmploymentTypes[0]
	}
	rec.Sectors, rec.LastModified = ParseSectorField(raw.Get("sector"))

	return rec, nil
}

// FormatDate renders a date the way it is exchanged over the API.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
