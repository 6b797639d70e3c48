package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
	"podscribe/internal/tempfiles"
)

const (
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Result describes an acquired audio file.
type Result struct {
	LocalPath   string
	ByteSize    int64
	ContentType string
	Elapsed     time.Duration
}

// Downloader fetches and validates episode audio.
type Downloader struct {
	cfg        *config.Config
	httpClient *http.Client
	active     *tempfiles.ActiveSet
	logger     *slog.Logger

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

// Option customizes the downloader.
type Option func(*Downloader)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(d *Downloader) {
		d.retryBaseDelay = baseDelay
		d.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(d *Downloader) {
		d.sleeper = sleeper
	}
}

// New constructs a downloader. Successful remote downloads are registered in
// the active set; the caller releases them once transcription is done.
func New(cfg *config.Config, active *tempfiles.ActiveSet, logger *slog.Logger, opts ...Option) *Downloader {
	if active == nil {
		active = tempfiles.NewActiveSet()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Downloader{
		cfg:            cfg,
		httpClient:     &http.Client{Timeout: cfg.DownloadTimeout()},
		active:         active,
		logger:         logging.NewComponentLogger(logger, "downloader"),
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type httpStatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("download request: http %d", e.StatusCode)
}

// Acquire resolves a source into a validated local audio file. Sources
// starting with http:// or https:// are downloaded; everything else is
// treated as a local path and validated in place.
func (d *Downloader) Acquire(ctx context.Context, source string) (*Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "acquire", "empty source", nil)
	}
	if isRemote(source) {
		return d.acquireRemote(ctx, source)
	}
	return d.acquireLocal(source)
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func (d *Downloader) acquireLocal(source string) (*Result, error) {
	path, err := config.ExpandPath(source)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "resolve", source, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "stat", path, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "stat", path+" is a directory", nil)
	}
	if info.Size() < d.cfg.Download.MinFileSize {
		return nil, services.Wrap(services.ErrAcquisitionCorrupt, "downloader", "validate",
			fmt.Sprintf("%s is %d bytes, below the %d byte minimum", path, info.Size(), d.cfg.Download.MinFileSize), nil)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		// No extension to judge; validation is deferred to transcription.
		ext = defaultAudioType
	} else if !d.accepted(ext) {
		return nil, services.Wrap(services.ErrAcquisitionCorrupt, "downloader", "validate",
			fmt.Sprintf("%s has unsupported audio type %q", path, ext), nil)
	}
	// Local files stay where they are and are never swept, so they are not
	// registered in the active set.
	return &Result{LocalPath: path, ByteSize: info.Size(), ContentType: ext}, nil
}

func (d *Downloader) acquireRemote(ctx context.Context, source string) (*Result, error) {
	start := time.Now()
	attempts := d.cfg.Download.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := d.fetchOnce(ctx, source)
		if err == nil {
			result.Elapsed = time.Since(start)
			d.active.Register(result.LocalPath)
			d.logger.Info("audio acquired",
				logging.String("source", source),
				logging.String("path", result.LocalPath),
				logging.Int64("bytes", result.ByteSize),
				logging.Duration("elapsed", result.Elapsed),
				logging.Int("attempt", attempt),
				logging.String(logging.FieldEventType, "download_complete"),
			)
			return result, nil
		}
		if errors.Is(err, services.ErrAcquisitionRejected) || errors.Is(err, services.ErrAcquisitionCorrupt) {
			return nil, err
		}
		lastErr = err

		delay, retry := d.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			break
		}
		d.logger.Warn("download attempt failed, retrying",
			logging.String("source", source),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "download_retry"),
		)
		if err := d.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, services.Wrap(services.ErrAcquisitionTimeout, "downloader", "acquire",
		fmt.Sprintf("gave up on %s after %d attempts", source, attempts), lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, source string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "request", source, err)
	}
	req.Header.Set("User-Agent", d.cfg.Download.UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		statusErr := &httpStatusError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
		if isTransientStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "get",
			fmt.Sprintf("%s returned http %d", source, resp.StatusCode), nil)
	}

	audioType, ok := d.resolveAudioType(resp.Header.Get("Content-Type"), source)
	if !ok {
		return nil, services.Wrap(services.ErrAcquisitionCorrupt, "downloader", "validate",
			fmt.Sprintf("%s served unsupported content type %q", source, resp.Header.Get("Content-Type")), nil)
	}

	tmp, err := os.CreateTemp(d.cfg.Paths.TempDir, "podscribe-*."+audioType)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisitionRejected, "downloader", "tempfile", d.cfg.Paths.TempDir, err)
	}
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("download stream: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("download close: %w", closeErr)
	}
	if written < d.cfg.Download.MinFileSize {
		_ = os.Remove(tmp.Name())
		return nil, services.Wrap(services.ErrAcquisitionCorrupt, "downloader", "validate",
			fmt.Sprintf("%s delivered %d bytes, below the %d byte minimum", source, written, d.cfg.Download.MinFileSize), nil)
	}

	return &Result{LocalPath: tmp.Name(), ByteSize: written, ContentType: audioType}, nil
}

// defaultAudioType names undeclared audio. Hosts that omit the Content-Type
// header and serve extensionless URLs overwhelmingly stream MP3; anything
// else surfaces when the transcription backend reads the file.
const defaultAudioType = "mp3"

// mimeAudioTypes maps the MIME types podcast hosts actually serve onto the
// file extensions used for temp names and validation.
var mimeAudioTypes = map[string]string{
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/mp4":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/aac":    "aac",
	"audio/wav":    "wav",
	"audio/x-wav":  "wav",
	"audio/wave":   "wav",
	"audio/ogg":    "ogg",
	"audio/vorbis": "ogg",
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
}

// resolveAudioType picks the extension for the temp file. A declared type
// outside the allowlist is rejected; an undeclared or unparseable one is
// accepted with validation deferred to the transcription step.
func (d *Downloader) resolveAudioType(contentType, source string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType == "" {
		if ext := urlExtension(source); ext != "" && d.accepted(ext) {
			return ext, true
		}
		return defaultAudioType, true
	}
	if ext, ok := mimeAudioTypes[strings.ToLower(mediaType)]; ok && d.accepted(ext) {
		return ext, true
	}
	// Servers that answer octet-stream or a mislabeled audio/* fall through
	// to the URL extension.
	if ext := urlExtension(source); ext != "" && d.accepted(ext) {
		return ext, true
	}
	return "", false
}

func urlExtension(source string) string {
	parsed, err := url.Parse(source)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(parsed.Path)), ".")
}

func (d *Downloader) accepted(ext string) bool {
	for _, accepted := range d.cfg.Download.AcceptedTypes {
		if ext == accepted {
			return true
		}
	}
	return false
}

func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

func (d *Downloader) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts {
		return 0, false
	}
	if ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		if statusErr.RetryAfter > 0 {
			return d.capDelay(statusErr.RetryAfter), true
		}
		return d.backoffDelay(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return d.backoffDelay(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return d.backoffDelay(attempt), true
	}

	return 0, false
}

func (d *Downloader) backoffDelay(attempt int) time.Duration {
	base := d.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := d.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return d.capDelay(delay)
}

func (d *Downloader) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	maxDelay := d.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (d *Downloader) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d.sleeper != nil {
		d.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
