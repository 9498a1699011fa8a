package provider

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
)

// ListFile is the index of report archives on the finance file server.
const ListFile = "gpcw.txt"

const (
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
)

// RemoteOptions configures the finance file server client.
type RemoteOptions struct {
	BaseURL   string
	Timeout   time.Duration
	Retries   int
	RateLimit float64 // requests per second, 0 disables throttling
	Proxy     string
}

// Remote talks to the TDX finance file server.
type Remote struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewRemote creates a Remote with retry and exponential backoff.
func NewRemote(opts RemoteOptions, logger *logging.Logger) *Remote {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/")).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	r := &Remote{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	client.AddRetryHooks(r.retryHook)
	return r
}

// retryCondition retries network errors, 5xx, 408 and 429.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

func (r *Remote) retryHook(resp *resty.Response, err error) {
	if resp == nil || resp.Request == nil {
		return
	}
	event := r.logger.Debug().Interface("url", resp.Request.URL).Int("attempt", resp.Request.Attempt)
	if err != nil {
		event.Err(err).Msg("retrying request")
		return
	}
	event.Int("status", resp.StatusCode()).Msg("retrying request")
}

// Close releases idle connections.
func (r *Remote) Close() error {
	return r.client.Close()
}

func (r *Remote) get(ctx context.Context, path string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := r.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("get %s: status %d", path, resp.StatusCode())
	}
	return resp.Bytes(), nil
}

// ListRemoteFiles downloads and parses the archive index.
func (r *Remote) ListRemoteFiles(ctx context.Context) ([]model.RemoteFile, error) {
	body, err := r.get(ctx, ListFile)
	if err != nil {
		return nil, model.Wrap(model.KindRemoteList, err, "list remote files")
	}
	files, err := ParseFileList(string(body))
	if err != nil {
		return nil, model.Wrap(model.KindRemoteList, err, "parse %s", ListFile)
	}
	return files, nil
}

// ParseFileList parses "filename,hash,filesize" lines. Blank lines are skipped.
func ParseFileList(body string) ([]model.RemoteFile, error) {
	var files []model.RemoteFile
	sc := bufio.NewScanner(strings.NewReader(body))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		parts := strings.Split(text, ",")
		f := model.RemoteFile{Filename: strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			f.Hash = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			size, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad size %q", line, parts[2])
			}
			f.Size = size
		}
		files = append(files, f)
	}
	return files, sc.Err()
}

// Fetch downloads filename into dir through a temp file and rename.
func (r *Remote) Fetch(ctx context.Context, dir, filename string) error {
	name := filepath.Base(filename)
	body, err := r.get(ctx, name)
	if err != nil {
		return model.Wrap(model.KindFetch, err, "fetch %s", name)
	}
	if err := WriteFileAtomic(dir, name, body); err != nil {
		return model.Wrap(model.KindFetch, err, "store %s", name)
	}
	r.logger.Debug().Str("file", name).Int("bytes", len(body)).Msg("archive downloaded")
	return nil
}

// WriteFileAtomic writes data to dir/name so readers never see a partial file.
func WriteFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}
