package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// Разрешённые типы загружаемых документов: скан или фото квитанции,
// скриншоты переписки, PDF.
var allowedUploadMimeTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// Разрешённые расширения загружаемых документов
var allowedUploadExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// readDocumentUpload читает загруженный файл и проверяет его тип по
// расширению и магическим байтам: расширению доверять нельзя.
func readDocumentUpload(file *multipart.FileHeader) (contentType string, data []byte, err error) {
	if file.Size == 0 {
		return "", nil, fmt.Errorf("файл не может быть пустым")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExtensions[ext] {
		return "", nil, fmt.Errorf("неподдерживаемый формат файла, разрешены jpg, png, webp и pdf")
	}

	src, err := file.Open()
	if err != nil {
		return "", nil, fmt.Errorf("не удалось открыть файл: %w", err)
	}
	defer src.Close()

	data, err = io.ReadAll(src)
	if err != nil {
		return "", nil, fmt.Errorf("не удалось прочитать файл: %w", err)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", nil, fmt.Errorf("не удалось определить тип файла")
	}

	contentType = kind.MIME.Value
	if !allowedUploadMimeTypes[contentType] {
		return "", nil, fmt.Errorf("неподдерживаемый тип файла (%s)", contentType)
	}

	expectedExt := "." + kind.Extension
	if ext != expectedExt && !(ext == ".jpg" && expectedExt == ".jpeg") && !(ext == ".jpeg" && expectedExt == ".jpg") {
		return "", nil, fmt.Errorf("расширение файла (%s) не соответствует реальному типу (%s)", ext, expectedExt)
	}

	return contentType, data, nil
}
