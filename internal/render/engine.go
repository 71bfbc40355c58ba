// Package render compiles and renders page templates with Mustache.
//
// Compiled templates are cached by name. Concurrent first requests for the
// same template may compile it more than once; the last store wins and every
// copy is equivalent.
package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cbroglie/mustache"

	"github.com/pitabwire/statepage/internal/config"
	"github.com/pitabwire/statepage/internal/fill"
	"github.com/pitabwire/statepage/internal/observability"
	"github.com/pitabwire/statepage/model"
)

// Engine locates, compiles and renders templates under one directory.
type Engine struct {
	dir     string
	ext     string
	reload  bool
	metrics *observability.Metrics

	cache sync.Map // name -> *mustache.Template
}

// NewEngine creates an Engine from configuration. metrics may be nil.
func NewEngine(cfg config.TemplatesConfig, metrics *observability.Metrics) *Engine {
	ext := strings.TrimPrefix(cfg.Ext, ".")
	if ext == "" {
		ext = "mustache"
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "./templates"
	}
	return &Engine{dir: dir, ext: ext, reload: cfg.Reload, metrics: metrics}
}

// Path returns the file a template name resolves to.
func (e *Engine) Path(name string) string {
	return filepath.Join(e.dir, name+"."+e.ext)
}

// Template returns the compiled template for name, compiling it on first use.
func (e *Engine) Template(name string) (*mustache.Template, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if !e.reload {
		if t, ok := e.cache.Load(name); ok {
			return t.(*mustache.Template), nil
		}
	}

	partials := &mustache.FileProvider{
		Paths:      []string{e.dir},
		Extensions: []string{"." + e.ext},
	}
	t, err := mustache.ParseFilePartials(e.Path(name), partials)
	if e.metrics != nil {
		e.metrics.RecordTemplateCompile(name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", e.Path(name), err)
	}
	if !e.reload {
		e.cache.Store(name, t)
	}
	return t, nil
}

// Render renders template name with data to w. Failures are TEMPLATE_ERROR
// envelopes.
func (e *Engine) Render(ctx context.Context, w io.Writer, name string, data map[string]any) (err error) {
	_, span := observability.StartSpan(ctx, "page.render", observability.AttrTemplate.String(name))
	defer func() { observability.EndSpanWithError(span, err) }()
	start := time.Now()

	t, err := e.Template(name)
	if err != nil {
		return model.NewTemplateError(name, err)
	}
	if err := t.FRender(w, Context(data)); err != nil {
		return model.NewTemplateError(name, err)
	}
	if e.metrics != nil {
		e.metrics.RecordRender(name, time.Since(start))
	}
	return nil
}

// RenderString renders template name with data and returns the output.
func (e *Engine) RenderString(ctx context.Context, name string, data map[string]any) (string, error) {
	var sb strings.Builder
	if err := e.Render(ctx, &sb, name, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Check compiles every named template, bypassing the cache.
func (e *Engine) Check(names ...string) error {
	var errs []string
	for _, name := range names {
		if err := validName(name); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if _, err := mustache.ParseFilePartials(e.Path(name), &mustache.FileProvider{
			Paths:      []string{e.dir},
			Extensions: []string{"." + e.ext},
		}); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("template check failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Exists reports whether a template file for name is present.
func (e *Engine) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	info, err := os.Stat(e.Path(name))
	return err == nil && !info.IsDir()
}

// HealthCheck verifies the template directory is readable.
func (e *Engine) HealthCheck(_ context.Context) error {
	info, err := os.Stat(e.dir)
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("templates: %s is not a directory", e.dir)
	}
	return nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid template name %q", name)
	}
	return nil
}

// Context converts fill lambdas in data to Mustache lambdas. Other values
// are passed through.
func Context(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = convert(v)
	}
	return out
}

func convert(v any) any {
	switch x := v.(type) {
	case fill.Func:
		return mustache.LambdaFunc(func(text string, render mustache.RenderFunc) (string, error) {
			return render(x(text))
		})
	case fill.Func2:
		return mustache.LambdaFunc(func(text string, render mustache.RenderFunc) (string, error) {
			return x(text, fill.RenderFunc(render))
		})
	case map[string]any:
		return Context(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convert(e)
		}
		return out
	default:
		return v
	}
}
