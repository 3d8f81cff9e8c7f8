package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := LogNotifier{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	n.UploadSuccess("report.odt", "repo-1")
	n.UploadFailure("sheet.ods", "repo-2")

	out := buf.String()
	assert.Contains(t, out, "upload success")
	assert.Contains(t, out, "report.odt")
	assert.Contains(t, out, "upload failure")
	assert.Contains(t, out, "repo-2")
}
