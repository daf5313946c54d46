package script

import (
	"context"
	"fmt"

	"remarkfmt/internal/remark"
)

// Plugin is a script plugin. Its New function receives the plugin settings
// and returns a text transformer:
//
//	func New(settings interface{}) (func(string) (string, error), error)
type Plugin struct {
	Path string

	sandbox *Sandbox
	factory func(interface{}) (func(string) (string, error), error)
}

// LoadPlugin evaluates the script plugin at path.
func (s *Sandbox) LoadPlugin(ctx context.Context, path string) (*Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := s.load(path, PluginFunc)
	if err != nil {
		return nil, err
	}
	factory, ok := v.(func(interface{}) (func(string) (string, error), error))
	if !ok {
		return nil, fmt.Errorf("%w: %s must be func(interface{}) (func(string) (string, error), error)", ErrBadSignature, PluginFunc)
	}
	return &Plugin{Path: path, sandbox: s, factory: factory}, nil
}

// Attach implements remark.Attacher. The script's New runs at attach time so
// bad settings surface as registration errors.
func (p *Plugin) Attach(proc *remark.Processor, settings any) error {
	var fn func(string) (string, error)
	err := p.sandbox.call(context.Background(), func() error {
		var err error
		fn, err = p.factory(settings)
		return err
	})
	if err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: %s returned a nil transformer", ErrBadSignature, PluginFunc)
	}

	proc.AddTextTransformer(func(ctx context.Context, doc string, _ *remark.VFile) (string, error) {
		var out string
		err := p.sandbox.call(ctx, func() error {
			var err error
			out, err = fn(doc)
			return err
		})
		return out, err
	})
	return nil
}
