// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes matches the service's upload limit.
const MaxImageBytes = 8 * 1024 * 1024

// AllowedImageTypes are the MIME types the service accepts.
var AllowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/heic"}

// Image is a meal photo ready for upload.
type Image struct {
	Name string
	MIME string
	Data []byte
}

// ImageError is a local validation failure for a meal photo.
// Its message is shown to the user as-is.
type ImageError struct {
	Path   string
	Reason string
}

func (e *ImageError) Error() string {
	return e.Reason
}

// Messages mirror the service's own rejections so the user sees the same text
// whether the check fails locally or remotely.
const (
	reasonUnsupported = "Định dạng ảnh không được hỗ trợ. Hãy dùng JPG, PNG hoặc WebP."
	reasonEmpty       = "Không nhận được dữ liệu ảnh."
	reasonTooLarge    = "Ảnh vượt quá giới hạn 8MB, vui lòng nén hoặc chụp lại."
	reasonNotFound    = "Không tìm thấy tệp ảnh."
)

// LoadImage reads the photo at path and checks type and size before upload.
func LoadImage(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Image{}, &ImageError{Path: path, Reason: reasonNotFound}
		}
		return Image{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Image{}, fmt.Errorf("stat image: %w", err)
	}
	if info.IsDir() {
		return Image{}, &ImageError{Path: path, Reason: reasonNotFound}
	}
	if info.Size() > MaxImageBytes {
		return Image{}, &ImageError{Path: path, Reason: reasonTooLarge}
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	return NewImage(filepath.Base(path), data)
}

// NewImage validates in-memory photo bytes.
func NewImage(name string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, &ImageError{Path: name, Reason: reasonEmpty}
	}
	if len(data) > MaxImageBytes {
		return Image{}, &ImageError{Path: name, Reason: reasonTooLarge}
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), AllowedImageTypes...) {
		return Image{}, &ImageError{Path: name, Reason: reasonUnsupported}
	}

	return Image{Name: name, MIME: mt.String(), Data: data}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMealForm builds the multipart body: field "image" and optional "note".
// The part carries the sniffed MIME type because the service checks it.
func encodeMealForm(img Image, note string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="image"; filename="%s"`, quoteEscaper.Replace(img.Name)))
	h.Set("Content-Type", img.MIME)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	if note != "" {
		if err := w.WriteField("note", note); err != nil {
			return nil, "", fmt.Errorf("write note field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
