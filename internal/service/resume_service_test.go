package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitskillbridge/skillbridge-backend/internal/model"
	"github.com/sitskillbridge/skillbridge-backend/internal/resume"
)

type memArchive struct {
	keys []string
	fail bool
}

func (a *memArchive) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if a.fail {
		return "", errors.New("bucket unavailable")
	}
	a.keys = append(a.keys, key)
	return "mem://" + key, nil
}

// buildDocx writes a minimal WordprocessingML package, one paragraph per line.
func buildDocx(t *testing.T, lines ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, l := range lines {
		body.WriteString(`<w:p><w:r><w:t>` + l + `</w:t></w:r></w:p>`)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?>` +
			`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body.String() + `</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func fileHeader(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("resume", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["resume"][0]
}

func newResumeFixture(t *testing.T, maxBytes int64) (*ResumeService, *memArchive, *memStore, *memUsers) {
	t.Helper()
	_, rdb := newTestRedis(t)
	docs, store := newTestDocs(t, rdb)
	archive := &memArchive{}
	users := newMemUsers()
	return NewResumeService(archive, docs, users, maxBytes, zerolog.Nop()), archive, store, users
}

func TestResumeService_ParseDocx(t *testing.T) {
	svc, archive, store, users := newResumeFixture(t, 1<<20)
	ctx := context.Background()

	u := &model.User{Email: "ada@example.com", FullName: "Ada Lovelace"}
	require.NoError(t, users.Create(ctx, u))

	data := buildDocx(t,
		"Ada Lovelace",
		"Skills",
		"Go, SQL | Docker",
		"Projects",
		"Engine Notes (Go, Redis)",
		"A note taking engine",
	)

	res, err := svc.ParseUpload(ctx, u.ID, fileHeader(t, "cv.docx", data))
	require.NoError(t, err)
	assert.True(t, res.SavedOK)
	assert.Equal(t, "Ada Lovelace", res.Resume.FullName)
	assert.Equal(t, u.ID, res.Resume.UID)
	assert.Equal(t, []string{"Go", "SQL", "Docker"}, res.Resume.Skills)
	require.Len(t, res.Resume.Projects, 1)
	assert.Equal(t, resume.MIMEDOCX, res.Resume.Metadata.MIMEType)
	assert.Equal(t, "cv.docx", res.Resume.Metadata.FileName)

	require.Len(t, archive.keys, 1)
	assert.True(t, strings.HasPrefix(archive.keys[0], "resumes/"))
	assert.Equal(t, "mem://"+archive.keys[0], res.Resume.Metadata.Archive)

	stored, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, string(stored), `"Docker"`)
	_, err = store.Get(ctx, model.CollectionResumes, u.ID)
	require.NoError(t, err)
}

func TestResumeService_ArchiveFailureIsNotFatal(t *testing.T) {
	svc, archive, _, _ := newResumeFixture(t, 1<<20)
	archive.fail = true

	res, err := svc.Parse(context.Background(), "u1", "cv.docx", buildDocx(t, "Skills", "Go"))
	require.NoError(t, err)
	assert.Empty(t, res.Resume.Metadata.Archive)
	assert.Equal(t, []string{"Go"}, res.Resume.Skills)
}

func TestResumeService_Rejections(t *testing.T) {
	svc, archive, _, _ := newResumeFixture(t, 64)
	ctx := context.Background()

	_, err := svc.ParseUpload(ctx, "u1", fileHeader(t, "cv.txt", []byte("plain text resume")))
	assert.ErrorIs(t, err, resume.ErrUnsupportedType)

	_, err = svc.ParseUpload(ctx, "u1", fileHeader(t, "cv.pdf", []byte("not a pdf at all")))
	assert.ErrorIs(t, err, resume.ErrUnsupportedType)

	_, err = svc.ParseUpload(ctx, "u1", fileHeader(t, "big.pdf", bytes.Repeat([]byte("x"), 65)))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.Empty(t, archive.keys)
}
