package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"piskovna/internal/editor"
	"piskovna/internal/imagestore"
	"piskovna/internal/models"
)

// maxFormMemory is how much of a multipart form is held in memory before
// file parts spill to disk.
const maxFormMemory = 32 << 20

// readForm builds a payload from the editor form. Image fields keep their
// previous value (a stored reference or a pending data URI) unless the
// user removed it or picked a new file. Picked files are checked against
// the upload rules and turned into data URIs; rule violations come back
// as field errors and leave the field unchanged.
func (a *Admin) readForm(r *http.Request, f *editor.Form) (models.PostPayload, map[string]string, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return models.PostPayload{}, nil, err
		}
		if err := r.ParseForm(); err != nil {
			return models.PostPayload{}, nil, err
		}
	}

	show := r.PostForm.Get("show_newsletter") != ""
	in := models.PostPayload{
		Title:            strings.TrimSpace(r.PostForm.Get("title")),
		Slug:             strings.TrimSpace(r.PostForm.Get("slug")),
		Description:      r.PostForm.Get("description"),
		DescriptionHTML1: r.PostForm.Get("descriptionhtml1"),
		DescriptionHTML2: r.PostForm.Get("descriptionhtml2"),
		Tags:             editor.ParseTags(r.PostForm.Get("tags")),
		Date:             strings.TrimSpace(r.PostForm.Get("date")),
		Author:           strings.TrimSpace(r.PostForm.Get("author")),
		Category:         r.PostForm.Get("category"),
		Status:           r.PostForm.Get("status"),
		ShowNewsletter:   &show,
		MetaTitle:        r.PostForm.Get("meta_title"),
		MetaKeywords:     r.PostForm.Get("meta_keywords"),
		AOSDuration:      models.NumericString(strings.TrimSpace(r.PostForm.Get("aos_duration"))),
	}

	errs := map[string]string{}

	// Featured image: a new file wins, then removal, then the kept value.
	if v := r.PostForm.Get("featured_image"); v != "" && r.PostForm.Get("remove_featured") == "" {
		in.FeaturedImage = &v
	}
	if files := formFiles(r, "featured_file"); len(files) > 0 {
		uri, err := a.fileDataURI(files[0], imagestore.FeaturedRules)
		if err != nil {
			errs["featured_image"] = err.Error()
			in.FeaturedImage = f.Payload.FeaturedImage
		} else {
			in.FeaturedImage = &uri
		}
	}

	// Gallery: previous values whose index is ticked, then new files.
	keep := map[int]bool{}
	for _, v := range r.PostForm["gallery_keep"] {
		if i, err := strconv.Atoi(v); err == nil {
			keep[i] = true
		}
	}
	in.GalleryImages = []string{}
	for i, v := range r.PostForm["gallery_images"] {
		if keep[i] && v != "" {
			in.GalleryImages = append(in.GalleryImages, v)
		}
	}
	for _, fh := range formFiles(r, "gallery_files") {
		uri, err := a.fileDataURI(fh, imagestore.GalleryRules)
		if err != nil {
			errs["gallery_images"] = fmt.Sprintf("%s: %s", fh.Filename, err)
			continue
		}
		in.GalleryImages = append(in.GalleryImages, uri)
	}

	return in, errs, nil
}

// formFiles returns the non-empty files uploaded under name.
func formFiles(r *http.Request, name string) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var out []*multipart.FileHeader
	for _, fh := range r.MultipartForm.File[name] {
		if fh.Size > 0 {
			out = append(out, fh)
		}
	}
	return out
}

// fileDataURI reads an uploaded file, checks it against rules and encodes
// it as a data URI.
func (a *Admin) fileDataURI(fh *multipart.FileHeader, rules imagestore.Rules) (string, error) {
	if a.uploadBytes > 0 {
		rules = rules.WithMaxBytes(a.uploadBytes)
	}
	if rules.MaxBytes > 0 && fh.Size > rules.MaxBytes {
		return "", fmt.Errorf("file too large (max %d MB)", rules.MaxBytes>>20)
	}

	file, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("could not read file")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("could not read file")
	}

	// Sniffing does not know AVIF; trust the browser's type for that.
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = strings.ToLower(fh.Header.Get("Content-Type"))
	}

	if err := rules.Check(contentType, data); err != nil {
		return "", err
	}
	return imagestore.EncodeDataURI(contentType, data), nil
}
