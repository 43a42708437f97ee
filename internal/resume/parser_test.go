package resume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
)

const sampleResume = `Jane Doe
jane@example.com

Summary
Backend engineer.

Technical Skills
Go, Python | SQL
• Docker
Kubernetes/Terraform
2020
go

Experience
Software Engineer at Acme Corp
Jan 2020 - Present
Built APIs in Go.
Led migration.

Intern @ Beta Labs
June 2019 – Dec 2019
Wrote tests.

Projects
Chatbot (Python, Flask)
A support bot.

Portfolio Site
Built with: React, Node.js
A personal site.

Education
BSc Computer Science
`

func TestSplit(t *testing.T) {
	s := Split(sampleResume)

	assert.Equal(t, "Go, Python | SQL\n• Docker\nKubernetes/Terraform\n2020\ngo", s.Skills)
	assert.Contains(t, s.Experience, "Software Engineer at Acme Corp")
	assert.NotContains(t, s.Experience, "Chatbot")
	assert.Contains(t, s.Projects, "Portfolio Site")
	assert.NotContains(t, s.Projects, "BSc", "generic headings end a section")
	assert.NotContains(t, s.Skills, "Backend engineer")
}

func TestSplit_NoHeadings(t *testing.T) {
	s := Split("just some text\nwithout any headings")
	assert.Empty(t, s.Skills)
	assert.Empty(t, s.Experience)
	assert.Empty(t, s.Projects)
}

func TestParseSkills(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"separators", "Go, Python | SQL\n• Docker\nKubernetes/Terraform", []string{"Go", "Python", "SQL", "Docker", "Kubernetes", "Terraform"}},
		{"drops numbers and single chars", "2020, C, R, Rust", []string{"Rust"}},
		{"dedupes case-insensitively", "Go, go, GO", []string{"Go"}},
		{"drops long sentences", "I have worked with many different technologies over the course of my long career", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSkills(tt.in))
		})
	}
}

func TestParseExperience(t *testing.T) {
	got := ParseExperience(Split(sampleResume).Experience)
	require.Len(t, got, 2)

	assert.Equal(t, model.ExperienceEntry{
		Title:       "Software Engineer",
		Company:     "Acme Corp",
		Duration:    "Jan 2020 - Present",
		Description: "Built APIs in Go. Led migration.",
	}, got[0])

	assert.Equal(t, "Intern", got[1].Title)
	assert.Equal(t, "Beta Labs", got[1].Company)
	assert.Equal(t, "June 2019 – Dec 2019", got[1].Duration)
	assert.Equal(t, "Wrote tests.", got[1].Description)
}

func TestParseExperience_HeaderWithoutCompany(t *testing.T) {
	got := ParseExperience("Freelancer\nVarious clients.")
	require.Len(t, got, 1)
	assert.Equal(t, "Freelancer", got[0].Title)
	assert.Empty(t, got[0].Company)
	assert.Empty(t, got[0].Duration)
	assert.Equal(t, "Various clients.", got[0].Description)
}

func TestParseProjects(t *testing.T) {
	got := ParseProjects(Split(sampleResume).Projects)
	require.Len(t, got, 2)

	assert.Equal(t, "Chatbot (Python, Flask)", got[0].Name)
	assert.Equal(t, []string{"Python", "Flask"}, got[0].Technologies)
	assert.Equal(t, "A support bot.", got[0].Description)

	assert.Equal(t, "Portfolio Site", got[1].Name)
	assert.Equal(t, []string{"React", "Node.js"}, got[1].Technologies)
	assert.Equal(t, "A personal site.", got[1].Description)
}

func TestParseProjects_TechLine(t *testing.T) {
	got := ParseProjects("Ledger\nTechnologies: Go, PostgreSQL\nDouble-entry bookkeeping.")
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Go", "PostgreSQL"}, got[0].Technologies)
	assert.Equal(t, "Double-entry bookkeeping.", got[0].Description)
}

func TestParse(t *testing.T) {
	got := Parse(sampleResume)
	assert.Len(t, got.Skills, 6)
	assert.Len(t, got.Experience, 2)
	assert.Len(t, got.Projects, 2)
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
		wantErr  bool
	}{
		{"pdf", "cv.PDF", []byte("%PDF-1.7 ..."), MIMEPDF, false},
		{"docx", "cv.docx", []byte("PK\x03\x04rest"), MIMEDOCX, false},
		{"renamed text", "cv.pdf", []byte("hello"), "", true},
		{"image", "cv.png", []byte("\x89PNG"), "", true},
		{"no extension", "cv", []byte("%PDF"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectType(tt.filename, tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_Empty(t *testing.T) {
	_, err := Extract("cv.pdf", nil)
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestDocxPlainText(t *testing.T) {
	xml := `<w:document><w:body><w:p><w:r><w:t>Skills</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Go &amp; Rust</w:t><w:br/><w:t>SQL</w:t></w:r></w:p></w:body></w:document>`
	assert.Equal(t, "Skills\nGo & Rust\nSQL\n", docxPlainText(xml))
}
