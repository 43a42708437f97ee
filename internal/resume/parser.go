package resume

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

type section string

const (
	sectionSkills     section = "skills"
	sectionExperience section = "experience"
	sectionProjects   section = "projects"
	sectionOther      section = ""
)

// Headings are tried in this order; the first match wins.
var sectionHeadings = []struct {
	name section
	re   *regexp.Regexp
}{
	{sectionSkills, regexp.MustCompile(`(?i)^\s*(technical\s+skills?|skills?\s*(&|and)?\s*(summary)?|core\s+competenc(y|ies)|technologies|tools?\s*&?\s*technologies?|programming\s+languages?|key\s+skills?)\s*:?\s*$`)},
	{sectionExperience, regexp.MustCompile(`(?i)^\s*(work\s+experience|professional\s+experience|employment(\s+history)?|experience|internships?|work\s+history|career\s+history)\s*:?\s*$`)},
	{sectionProjects, regexp.MustCompile(`(?i)^\s*(projects?|personal\s+projects?|academic\s+projects?|side\s+projects?|notable\s+projects?|selected\s+projects?)\s*:?\s*$`)},
}

// otherHeadingRe matches headings of sections that are not extracted. They
// end the section being collected.
var otherHeadingRe = regexp.MustCompile(`(?i)^\s*(education|certifications?|awards?|achievements?|honou?rs?|publications?|references?|languages?|hobbies|interests?|volunteer|activities|summary|objective|profile|contact|accomplishments?|leadership)\s*:?\s*$`)

var (
	blankLinesRe    = regexp.MustCompile(`\n{2,}`)
	skillSepRe      = regexp.MustCompile(`[•●▪▸►\-–|/]`)
	skillSplitRe    = regexp.MustCompile(`[,\n]+`)
	headerSplitRe   = regexp.MustCompile(`(?i)\s+(?:at|@|\||-)\s+`)
	techRe          = regexp.MustCompile(`(?i)(?:\bTech(?:nologies)?[: \t]+|Built[ \t]+with[: \t]+|\()([\w \t,./+#-]+)\)?`)
	dateRangeRe     = regexp.MustCompile(`(?i)(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[\s,.-]+(\d{4})\s*[-–to]+\s*(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec|Present|Current)?[a-z]*[\s,.-]*(\d{4})?`)
	trailingSpaceRe = regexp.MustCompile(`[ \t\r]+\n`)
)

// Sections holds the raw text of each extracted section.
type Sections struct {
	Skills     string
	Experience string
	Projects   string
}

// Split locates the skills, experience and projects sections of a resume.
// A section runs from its heading to the next heading of any kind.
func Split(text string) Sections {
	text = normalize(text)

	var (
		current section
		parts   = map[section][]string{}
	)
	for _, line := range strings.Split(text, "\n") {
		if name, ok := classifyHeading(line); ok {
			current = name
			continue
		}
		if current != sectionOther {
			parts[current] = append(parts[current], line)
		}
	}

	join := func(s section) string {
		return strings.TrimSpace(strings.Join(parts[s], "\n"))
	}
	return Sections{
		Skills:     join(sectionSkills),
		Experience: join(sectionExperience),
		Projects:   join(sectionProjects),
	}
}

func classifyHeading(line string) (section, bool) {
	for _, h := range sectionHeadings {
		if h.re.MatchString(line) {
			return h.name, true
		}
	}
	if otherHeadingRe.MatchString(line) {
		return sectionOther, true
	}
	return sectionOther, false
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return trailingSpaceRe.ReplaceAllString(text, "\n")
}

// ParseSkills turns a skills block into individual skills, keeping the
// first spelling of duplicates.
func ParseSkills(raw string) []string {
	normalized := skillSepRe.ReplaceAllString(raw, ",")
	seen := map[string]bool{}
	skills := []string{}
	for _, tok := range skillSplitRe.Split(normalized, -1) {
		tok = strings.TrimSpace(tok)
		n := utf8.RuneCountInString(tok)
		if n <= 1 || n >= 60 || isDigits(tok) {
			continue
		}
		key := strings.ToLower(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		skills = append(skills, tok)
	}
	return skills
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// ParseExperience splits an experience block into entries separated by
// blank lines. The first line of an entry is "Title at Company".
func ParseExperience(raw string) []model.ExperienceEntry {
	entries := []model.ExperienceEntry{}
	for _, lines := range blocks(raw) {
		var duration string
		block := strings.Join(lines, "\n")
		if m := dateRangeRe.FindString(block); m != "" {
			duration = strings.TrimSpace(m)
		}

		header := headerSplitRe.Split(lines[0], 2)
		entry := model.ExperienceEntry{Title: strings.TrimSpace(header[0])}
		if len(header) > 1 {
			entry.Company = strings.TrimSpace(header[1])
		}
		entry.Duration = duration

		desc := make([]string, 0, len(lines)-1)
		for _, l := range lines[1:] {
			if duration != "" && dateRangeRe.MatchString(l) {
				continue
			}
			desc = append(desc, l)
		}
		entry.Description = strings.TrimSpace(strings.Join(desc, " "))
		entries = append(entries, entry)
	}
	return entries
}

// ParseProjects splits a projects block into entries separated by blank
// lines. Technologies come from "Tech:", "Built with:" or a parenthesised list.
func ParseProjects(raw string) []model.ProjectEntry {
	entries := []model.ProjectEntry{}
	for _, lines := range blocks(raw) {
		block := strings.Join(lines, "\n")
		entry := model.ProjectEntry{Name: lines[0], Technologies: []string{}}

		m := techRe.FindStringSubmatch(block)
		if m != nil {
			for _, t := range strings.Split(m[1], ",") {
				if t = strings.TrimSpace(t); t != "" {
					entry.Technologies = append(entry.Technologies, t)
				}
			}
		}

		desc := make([]string, 0, len(lines)-1)
		for _, l := range lines[1:] {
			if m != nil && strings.Contains(l, strings.TrimSpace(m[0])) {
				continue
			}
			desc = append(desc, l)
		}
		entry.Description = strings.TrimSpace(strings.Join(desc, " "))
		entries = append(entries, entry)
	}
	return entries
}

// blocks splits raw on blank lines and returns the trimmed non-empty lines
// of each non-empty block.
func blocks(raw string) [][]string {
	var out [][]string
	for _, b := range blankLinesRe.Split(strings.TrimSpace(normalize(raw)), -1) {
		var lines []string
		for _, l := range strings.Split(b, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) > 0 {
			out = append(out, lines)
		}
	}
	return out
}

// Parse extracts the structured sections of a resume from its text.
func Parse(text string) model.ParsedResume {
	s := Split(text)
	return model.ParsedResume{
		Skills:     ParseSkills(s.Skills),
		Experience: ParseExperience(s.Experience),
		Projects:   ParseProjects(s.Projects),
	}
}
