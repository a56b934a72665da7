package notify

import (
	"bytes"
	"context"
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/rideshare/go-rideshare-auth"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// TemplateNotifier renders the message body from a template named after the
// message kind, then hands the message to next. Kinds without a template
// are forwarded unchanged.
type TemplateNotifier struct {
	next   auth.Notifier
	engine *django.Engine
	kinds  map[auth.MessageKind]bool
}

// NewTemplateNotifier uses the embedded templates.
func NewTemplateNotifier(next auth.Notifier) (*TemplateNotifier, error) {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, err
	}
	return NewTemplateNotifierFS(next, sub)
}

// NewTemplateNotifierFS loads every .txt template found in fsys.
func NewTemplateNotifierFS(next auth.Notifier, fsys fs.FS) (*TemplateNotifier, error) {
	engine := django.NewFileSystem(http.FS(fsys), ".txt")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "load notification templates")
	}

	kinds := map[auth.MessageKind]bool{}
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".txt") {
			return err
		}
		kinds[auth.MessageKind(strings.TrimSuffix(path, ".txt"))] = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TemplateNotifier{next: next, engine: engine, kinds: kinds}, nil
}

func (n *TemplateNotifier) Send(ctx context.Context, msg auth.Message) error {
	if n.kinds[msg.Kind] {
		text, err := n.Render(msg)
		if err != nil {
			return err
		}
		msg.Text = text
	}
	return n.next.Send(ctx, msg)
}

// Render returns the body for msg.
func (n *TemplateNotifier) Render(msg auth.Message) (string, error) {
	bind := make(map[string]any, len(msg.Data))
	for k, v := range msg.Data {
		bind[k] = v
	}

	var buf bytes.Buffer
	if err := n.engine.Render(&buf, string(msg.Kind), bind); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "render notification").
			WithMetadata(map[string]any{"kind": msg.Kind})
	}
	return strings.TrimSpace(buf.String()), nil
}
