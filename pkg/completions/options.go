package completions

import "log/slog"

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithDebug logs the augmented prompt and the adapted response at INFO.
// Without it, the same output is available through the "completions"
// debug category.
func WithDebug(on bool) Option {
	return func(f *Facade) { f.debug = on }
}

// WithStreamDefault sets how a request without an explicit stream flag is
// treated. Defaults to true, which means such a request with tools is
// rejected.
func WithStreamDefault(stream bool) Option {
	return func(f *Facade) { f.streamDefault = stream }
}

// WithStripTools removes tools and tool_choice from intercepted requests
// before they are forwarded, for backends that reject those fields.
func WithStripTools(strip bool) Option {
	return func(f *Facade) { f.stripTools = strip }
}

// WithDefaultModel fills in the model for requests that omit it.
func WithDefaultModel(model string) Option {
	return func(f *Facade) { f.defaultModel = model }
}

// WithName overrides the provider label used in metrics and logs. By
// default it is taken from the transport's Name method, if any.
func WithName(name string) Option {
	return func(f *Facade) {
		if name != "" {
			f.name = name
		}
	}
}
