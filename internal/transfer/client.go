package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/drivecache/drivecache/internal/account"
)

// httpTimeout bounds a whole upload request. Large files on slow links can
// legitimately take minutes.
const httpTimeout = 10 * time.Minute

// tokenType makes oauth2 emit "Authorization: Token <tok>" as the repository
// server expects, instead of the Bearer default.
const tokenType = "Token"

// Client is a minimal repository-server API client covering what transfers
// need: obtaining an upload link for a repo directory and posting file
// content to it. The agent does not speak the rest of the server API.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient builds a Client authorized as the given account. The account's
// server is the API base URL.
func NewClient(acct account.Account, logger *slog.Logger) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: acct.Token,
		TokenType:   tokenType,
	})

	httpc := oauth2.NewClient(context.Background(), src)
	httpc.Timeout = httpTimeout

	return &Client{
		baseURL: acct.Server,
		httpc:   httpc,
		logger:  logger,
	}
}

// UploadLink asks the server for a one-shot upload URL targeting a
// directory within the repository.
func (c *Client) UploadLink(ctx context.Context, repoID, parentPath string) (string, error) {
	u := fmt.Sprintf("%s/api2/repos/%s/upload-link/?p=%s",
		c.baseURL, url.PathEscape(repoID), url.QueryEscape(parentPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("transfer: building upload-link request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("transfer: requesting upload link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transfer: upload link for repo %s: server returned %s", repoID, resp.Status)
	}

	var link string
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return "", fmt.Errorf("transfer: decoding upload link: %w", err)
	}

	return link, nil
}

// UploadFile posts the local file's content to an upload link as a
// multipart form. With replace set, the server overwrites the existing
// remote file instead of creating a renamed copy.
func (c *Client) UploadFile(
	ctx context.Context, link, parentPath, localPath, fileName string, replace bool,
) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("transfer: opening %s: %w", localPath, err)
	}
	defer f.Close()

	// Stream the multipart body; cached office documents can be large and
	// must not be buffered in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeUploadForm(mw, f, parentPath, fileName, replace))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, pr)
	if err != nil {
		return fmt.Errorf("transfer: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("transfer: uploading %s: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer: uploading %s: server returned %s", fileName, resp.Status)
	}

	c.logger.Debug("upload complete",
		slog.String("file", fileName), slog.String("parent", parentPath))

	return nil
}

// writeUploadForm writes the multipart fields and file part, closing the
// writer so the request body gets its terminating boundary.
func writeUploadForm(mw *multipart.Writer, f *os.File, parentPath, fileName string, replace bool) error {
	if err := mw.WriteField("parent_dir", parentPath); err != nil {
		return err
	}

	if replace {
		if err := mw.WriteField("replace", "1"); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, f); err != nil {
		return err
	}

	return mw.Close()
}
