package model

// ResumeMetadata describes the uploaded file.
type ResumeMetadata struct {
	FileName  string `json:"file_name"`
	PageCount int    `json:"page_count"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	MIMEType  string `json:"mime_type"`
	Archive   string `json:"archive,omitempty"`
}

// ExperienceEntry is one job block of a resume.
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
}

// ProjectEntry is one project block of a resume.
type ProjectEntry struct {
	Name         string   `json:"name"`
	Technologies []string `json:"technologies"`
	Description  string   `json:"description"`
}

// ParsedResume is the structured extraction of a resume.
type ParsedResume struct {
	UID        string            `json:"uid"`
	FullName   string            `json:"fullName"`
	Skills     []string          `json:"skills"`
	Experience []ExperienceEntry `json:"experience"`
	Projects   []ProjectEntry    `json:"projects"`
	Metadata   ResumeMetadata    `json:"metadata"`
	ParsedAt   string            `json:"parsedAt,omitempty"`
}
