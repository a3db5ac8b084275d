package stash

import "time"

// Option is a functional option for configuring the Engine.
type Option interface {
	apply(*Engine) error
}

type optionFunc func(*Engine) error

func (f optionFunc) apply(e *Engine) error {
	return f(e)
}

// WithStore sets the metadata store. Defaults to a DocumentStore backed by a
// JSON file inside the workspace directory.
func WithStore(store Store) Option {
	return optionFunc(func(e *Engine) error {
		e.store = store
		return nil
	})
}

// WithObserver sets the observer receiving engine events.
func WithObserver(observer Observer) Option {
	return optionFunc(func(e *Engine) error {
		e.observer = observer
		return nil
	})
}

// WithFingerprinter overrides the input fingerprinting routine.
func WithFingerprinter(fp Fingerprinter) Option {
	return optionFunc(func(e *Engine) error {
		e.fingerprinter = fp
		return nil
	})
}

// WithCodec overrides the archive codec.
func WithCodec(codec ArchiveCodec) Option {
	return optionFunc(func(e *Engine) error {
		e.codec = codec
		return nil
	})
}

// WithMaxSize bounds the total archive bytes kept in the workspace.
// Exceeding the budget triggers eviction on the next maintenance pass.
// 0 means unlimited.
func WithMaxSize(maxBytes int64) Option {
	return optionFunc(func(e *Engine) error {
		e.maxBytes = maxBytes
		return nil
	})
}

// WithMaxSizeString is WithMaxSize for human-readable sizes like "512mb".
func WithMaxSizeString(size string) Option {
	return optionFunc(func(e *Engine) error {
		maxBytes, err := ParseSize(size)
		if err != nil {
			return err
		}
		e.maxBytes = maxBytes
		return nil
	})
}

// WithCompression sets the default compression flag for operations that do
// not specify their own.
func WithCompression(compress bool) Option {
	return optionFunc(func(e *Engine) error {
		e.compress = compress
		return nil
	})
}

// WithWorkDir sets the default working directory for operations that do not
// specify their own. Defaults to the current directory.
func WithWorkDir(dir string) Option {
	return optionFunc(func(e *Engine) error {
		e.workDir = dir
		return nil
	})
}

// WithClock overrides the engine's time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(e *Engine) error {
		e.now = now
		return nil
	})
}
