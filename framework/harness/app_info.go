package harness

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const appQueryInterval = 100 * time.Millisecond

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// AppInfo is what the harness learned about the application under test when it first reached it.
type AppInfo struct {
	URL        string
	StatusCode int
	// Server is the value of the Server response header, if any.
	Server string
	// Title is the content of the <title> element of the initial HTML, before any script ran.
	Title string
}

// Properties returns the information as name/value pairs for report metadata.
func (a AppInfo) Properties() map[string]string {
	props := map[string]string{
		"app.url":    a.URL,
		"app.status": strconv.Itoa(a.StatusCode),
	}
	if a.Server != "" {
		props["app.server"] = a.Server
	}
	if a.Title != "" {
		props["app.title"] = a.Title
	}
	return props
}

// queryAppInfo keeps requesting the base URL until the application answers or the timeout
// elapses. Any HTTP response counts as an answer, but only a 2xx status is accepted.
func queryAppInfo(client *http.Client, url string, timeout time.Duration, output io.Writer) (AppInfo, error) {
	fmt.Fprintf(output, "Connecting to application at %s", url)

	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := client.Get(url)
		if err == nil {
			fmt.Fprintln(output)
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return AppInfo{}, fmt.Errorf("application returned status code %d", resp.StatusCode)
			}
			if readErr != nil {
				return AppInfo{}, fmt.Errorf("could not read response from application: %w", readErr)
			}
			info := AppInfo{
				URL:        url,
				StatusCode: resp.StatusCode,
				Server:     resp.Header.Get("Server"),
				Title:      extractTitle(body),
			}
			fmt.Fprintf(output, "Application responded with status %d, title %q\n", info.StatusCode, info.Title)
			return info, nil
		}
		if !time.Now().Before(deadline) {
			fmt.Fprintln(output)
			return AppInfo{}, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(appQueryInterval)
	}
}

func extractTitle(body []byte) string {
	match := titlePattern.FindSubmatch(body)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(string(match[1])))
}
