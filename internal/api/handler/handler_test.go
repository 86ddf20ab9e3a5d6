package handler

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/patientid/internal/api/middleware"
)

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
}

// createMultipartRequest builds a form with an "image" part of the given
// content type; a nil image omits the part.
func createMultipartRequest(imageContent []byte, contentType string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if imageContent != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="probe.jpg"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		_, _ = part.Write(imageContent)
	}

	_ = writer.Close()
	return body, writer.FormDataContentType(), nil
}

// jpegHeader is enough for content sniffing to report image/jpeg.
func jpegHeader(size int) []byte {
	b := make([]byte, size)
	copy(b, []byte{0xFF, 0xD8, 0xFF, 0xE0})
	return b
}
