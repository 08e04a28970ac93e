package port

import "context"

// VisionOracle внешний визуальный судья.
// Возвращает свободный текст с вердиктом и обоснованием.
type VisionOracle interface {
	Judge(ctx context.Context, imageData []byte, mimeType string) (string, error)
}
