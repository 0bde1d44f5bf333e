package elfimage

import (
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"

	"github.com/gael12334/gt/pkg/trace"
)

// Store owns at most one live Image at a time.
type Store struct {
	mu     sync.Mutex
	fs     afero.Fs
	cfg    Config
	logger log.Logger
	trace  *trace.Trace
	image  *Image
}

func NewStore(fs afero.Fs, cfg Config, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Store{
		fs:     fs,
		cfg:    cfg,
		logger: logger,
		trace:  trace.New(cfg.TraceCapacity).WithNamer(CodeName),
	}
}

// Trace returns the trace shared by the store and its images.
func (s *Store) Trace() *trace.Trace { return s.trace }

func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image != nil
}

// Load reads the whole file at path into a new Image. It starts a new trace
// sequence, so frames left by an earlier operation are dropped on the next
// failure.
func (s *Store) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace.Reset()

	if s.image != nil {
		return Newf(s.trace, CodeLoaded, "image %q is already loaded", s.image.path)
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return Causef(s.trace, CodePath, err, "open %q", path)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return Causef(s.trace, CodePath, err, "stat %q", path)
	}
	size := stat.Size()
	if size < 0 || (s.cfg.MaxImageSize > 0 && uint64(size) > uint64(s.cfg.MaxImageSize)) {
		return Newf(s.trace, CodeMalloc, "image %q is %s, limit is %s", path, humanize.IBytes(uint64(size)), s.cfg.MaxImageSize)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return Causef(s.trace, CodePath, err, "read %q", path)
	}

	s.image = NewImage(path, data, s.trace)
	level.Debug(s.logger).Log("msg", "image loaded", "path", path, "size", humanize.IBytes(uint64(size)))
	return nil
}

// Unload zeroes and releases the live image. Views and spans obtained
// from it must not be used afterwards.
func (s *Store) Unload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return Newf(s.trace, CodeUnloaded, "no image is loaded")
	}
	path := s.image.path
	s.image.release()
	s.image = nil
	level.Debug(s.logger).Log("msg", "image unloaded", "path", path)
	return nil
}

// Image returns the live image.
func (s *Store) Image() (*Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return nil, Newf(s.trace, CodeUnloaded, "no image is loaded")
	}
	return s.image, nil
}

// OutputPath is the path Save uses when called with an empty path: the
// loaded file itself when InPlace is set, Output otherwise.
func (s *Store) OutputPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.InPlace && s.image != nil {
		return s.image.path
	}
	if s.cfg.Output == "" {
		return defaultOutput
	}
	return s.cfg.Output
}

// Save writes the current buffer verbatim to path, or to OutputPath when
// path is empty. A failed write can leave a truncated file behind.
func (s *Store) Save(path string) error {
	if path == "" {
		path = s.OutputPath()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return Newf(s.trace, CodeUnloaded, "no image is loaded")
	}
	if err := afero.WriteFile(s.fs, path, s.image.data, 0o644); err != nil {
		return Causef(s.trace, CodePath, err, "write %q", path)
	}
	level.Debug(s.logger).Log("msg", "image saved", "path", path, "size", humanize.IBytes(s.image.Size()))
	return nil
}
