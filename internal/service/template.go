package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/supplier-intake/intake-pipeline/internal/service/mappers"
	"github.com/supplier-intake/intake-pipeline/internal/store"
	"github.com/supplier-intake/intake-pipeline/internal/store/model"
	"github.com/supplier-intake/intake-pipeline/pkg/log"
	"sigs.k8s.io/yaml"
)

var templateIDRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,99}$`)

type TemplateService struct {
	store  store.Store
	logger *log.StructuredLogger
}

func NewTemplateService(s store.Store) *TemplateService {
	return &TemplateService{store: s, logger: log.NewDebugLogger("template_service")}
}

// ParseTemplates reads a YAML document holding a list of templates.
func ParseTemplates(data []byte) ([]mappers.TemplateForm, error) {
	var forms []mappers.TemplateForm
	if err := yaml.Unmarshal(data, &forms); err != nil {
		return nil, NewErrInvalidInput("parsing templates: %s", err)
	}
	return forms, nil
}

// LoadTemplates creates or replaces the templates described in data. The version counter of an existing
// template is kept; use ApplyImprovement for audited changes.
func (t *TemplateService) LoadTemplates(ctx context.Context, data []byte) (model.TemplateList, error) {
	forms, err := ParseTemplates(data)
	if err != nil {
		return nil, err
	}

	templates := make([]model.Template, 0, len(forms))
	for i, f := range forms {
		tmpl, err := toTemplate(f)
		if err != nil {
			return nil, NewErrInvalidInput("template %d: %s", i, err)
		}
		templates = append(templates, tmpl)
	}

	tracer := t.logger.WithContext(ctx).Operation("load_templates").WithInt("templates", len(templates)).Build()
	out := make(model.TemplateList, 0, len(templates))
	for _, tmpl := range templates {
		stored, err := t.store.Template().Upsert(ctx, tmpl)
		if err != nil {
			tracer.Error(err).WithString("template_id", tmpl.ID).Log()
			return nil, err
		}
		out = append(out, *stored)
	}
	tracer.Success().Log()
	return out, nil
}

func (t *TemplateService) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	tmpl, err := t.store.Template().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(id)
		}
		return nil, err
	}
	return tmpl, nil
}

func (t *TemplateService) ListTemplates(ctx context.Context, activeOnly bool) (model.TemplateList, error) {
	return t.store.Template().List(ctx, activeOnly)
}

func toTemplate(f mappers.TemplateForm) (model.Template, error) {
	f.ID = strings.TrimSpace(f.ID)
	if !templateIDRegexp.MatchString(f.ID) {
		return model.Template{}, fmt.Errorf("invalid id %q", f.ID)
	}
	if strings.TrimSpace(f.Name) == "" {
		f.Name = f.ID
	}

	contentTypes := make([]model.ContentType, 0, len(f.ContentTypes))
	for _, ct := range f.ContentTypes {
		parsed, err := model.ParseContentType(strings.TrimSpace(ct))
		if err != nil {
			return model.Template{}, err
		}
		contentTypes = append(contentTypes, parsed)
	}

	seen := map[string]struct{}{}
	for i, field := range f.ExpectedFields {
		if field.Name == "" {
			return model.Template{}, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := seen[field.Name]; dup {
			return model.Template{}, fmt.Errorf("field %q is declared twice", field.Name)
		}
		seen[field.Name] = struct{}{}
		switch field.Type {
		case "":
			f.ExpectedFields[i].Type = model.FieldTypeString
		case model.FieldTypeString, model.FieldTypeNumber, model.FieldTypeInteger, model.FieldTypeBoolean:
		default:
			return model.Template{}, fmt.Errorf("field %q has unknown type %q", field.Name, field.Type)
		}
	}

	return f.ToTemplate(contentTypes), nil
}
