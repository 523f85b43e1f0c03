package analysis

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/supplier-intake/intake-pipeline/internal/store/model"
)

var ErrInvalidProposal = errors.New("invalid proposal")

// Apply returns the configuration obtained by applying p to c. c is not modified.
func Apply(c model.TemplateConfig, p Proposal) (model.TemplateConfig, error) {
	out := model.TemplateConfig{
		Instructions:   c.Instructions,
		ExpectedFields: slices.Clone(c.ExpectedFields),
		Examples:       slices.Clone(c.Examples),
	}
	change := p.SuggestedChange

	switch p.Type {
	case model.ProposalFieldAddition:
		if change.Field == nil || change.Field.Name == "" {
			return c, fmt.Errorf("%w: field addition without a field", ErrInvalidProposal)
		}
		out.ExpectedFields = upsertField(out.ExpectedFields, *change.Field)
	case model.ProposalFieldRemoval:
		if change.RemoveField == "" && change.Instruction == "" {
			return c, fmt.Errorf("%w: field removal without a field", ErrInvalidProposal)
		}
		out.ExpectedFields = slices.DeleteFunc(out.ExpectedFields, func(f model.FieldSpec) bool {
			return f.Name == change.RemoveField
		})
	case model.ProposalValidationAdjustment:
		if change.Field == nil && change.Instruction == "" {
			return c, fmt.Errorf("%w: validation adjustment without a change", ErrInvalidProposal)
		}
		if change.Field != nil {
			i := slices.IndexFunc(out.ExpectedFields, func(f model.FieldSpec) bool { return f.Name == change.Field.Name })
			if i < 0 {
				return c, fmt.Errorf("%w: field %q is not expected by the template", ErrInvalidProposal, change.Field.Name)
			}
			out.ExpectedFields[i].Validation = change.Field.Validation
		}
	case model.ProposalInstructionClarification:
		if change.Instruction == "" {
			return c, fmt.Errorf("%w: clarification without an instruction", ErrInvalidProposal)
		}
	case model.ProposalExampleUpdate:
		if change.Example == "" {
			return c, fmt.Errorf("%w: example update without an example", ErrInvalidProposal)
		}
		if !slices.Contains(out.Examples, change.Example) {
			out.Examples = append(out.Examples, change.Example)
		}
	default:
		return c, fmt.Errorf("%w: unknown type %q", ErrInvalidProposal, p.Type)
	}

	out.Instructions = appendInstruction(out.Instructions, change.Instruction)
	return out, nil
}

func upsertField(fields []model.FieldSpec, spec model.FieldSpec) []model.FieldSpec {
	i := slices.IndexFunc(fields, func(f model.FieldSpec) bool { return f.Name == spec.Name })
	if i < 0 {
		return append(fields, spec)
	}
	if spec.Type != "" {
		fields[i].Type = spec.Type
	}
	fields[i].Required = fields[i].Required || spec.Required
	if spec.Validation != "" {
		fields[i].Validation = spec.Validation
	}
	return fields
}

// appendInstruction adds line to the instructions unless it is already present.
func appendInstruction(instructions, line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.Contains(instructions, line) {
		return instructions
	}
	if strings.TrimSpace(instructions) == "" {
		return line
	}
	return strings.TrimRight(instructions, "\n") + "\n" + line
}
