package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/me/cwlviz/internal/cwlexpr"
	"github.com/me/cwlviz/pkg/cwl"
	"github.com/me/cwlviz/pkg/model"
)

// supportedVersions lists the cwlVersion values the parser understands.
var supportedVersions = map[string]bool{"v1.0": true, "v1.1": true, "v1.2": true}

var scatterMethods = map[string]bool{"dotproduct": true, "nested_crossproduct": true, "flat_crossproduct": true}

// Validator performs semantic validation on a parsed Document.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a Validator with the given logger.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "validator")}
}

// Validate checks semantic correctness of doc, descending into nested
// sub-workflows. Returns nil if valid, or an *model.APIError with FieldError
// details.
func (v *Validator) Validate(doc *Document) *model.APIError {
	var errs []model.FieldError

	errs = append(errs, v.validateVersion(doc)...)
	if doc.Workflow == nil {
		errs = append(errs, model.FieldError{Field: "class", Message: "document has no workflow"})
	} else {
		if doc.OriginalClass == "Workflow" && len(doc.Workflow.Outputs) == 0 {
			errs = append(errs, model.FieldError{Field: "outputs", Message: "workflow must have at least one output"})
		}
		errs = append(errs, v.validateWorkflow(doc.Workflow, "")...)
	}

	if len(errs) == 0 {
		return nil
	}
	v.logger.Debug("validation failed", "errors", len(errs))
	return model.NewValidationError("CWL validation failed", errs...)
}

func (v *Validator) validateVersion(doc *Document) []model.FieldError {
	if doc.CWLVersion == "" {
		return []model.FieldError{{Field: "cwlVersion", Message: "cwlVersion is required"}}
	}
	if !supportedVersions[doc.CWLVersion] {
		return []model.FieldError{{
			Field:   "cwlVersion",
			Message: fmt.Sprintf("unsupported cwlVersion %q; expected v1.0, v1.1 or v1.2", doc.CWLVersion),
		}}
	}
	return nil
}

// validateWorkflow checks wf and every nested sub-workflow. prefix is the
// field path of wf inside the root document.
func (v *Validator) validateWorkflow(wf *cwl.Workflow, prefix string) []model.FieldError {
	var errs []model.FieldError
	errs = append(errs, v.validateSteps(wf, prefix)...)
	errs = append(errs, v.validateSources(wf, prefix)...)
	errs = append(errs, v.validateOutputSources(wf, prefix)...)
	errs = append(errs, v.validateExpressions(wf, prefix)...)
	errs = append(errs, v.validateDAG(wf, prefix)...)

	for _, step := range wf.Steps {
		if sub := step.SubWorkflow(); sub != nil {
			errs = append(errs, v.validateWorkflow(sub, fmt.Sprintf("%ssteps.%s.run.", prefix, step.ID))...)
		}
	}
	return errs
}

func (v *Validator) validateSteps(wf *cwl.Workflow, prefix string) []model.FieldError {
	var errs []model.FieldError
	seen := make(map[string]bool, len(wf.Steps))
	for _, step := range wf.Steps {
		if step.ID == "" {
			errs = append(errs, model.FieldError{Field: prefix + "steps", Message: "step is missing id"})
			continue
		}
		if seen[step.ID] {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("%ssteps.%s", prefix, step.ID),
				Message: fmt.Sprintf("duplicate step id %q", step.ID),
			})
		}
		seen[step.ID] = true
		if step.Run == nil {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("%ssteps.%s.run", prefix, step.ID),
				Message: fmt.Sprintf("step %q is missing 'run'", step.ID),
			})
		}
		if step.ScatterMethod != "" && !scatterMethods[step.ScatterMethod] {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("%ssteps.%s.scatterMethod", prefix, step.ID),
				Message: fmt.Sprintf("unknown scatterMethod %q", step.ScatterMethod),
			})
		} else if step.ScatterMethod == "" && len(step.Scatter) > 1 {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("%ssteps.%s.scatterMethod", prefix, step.ID),
				Message: "scatterMethod is required when scattering over more than one input",
			})
		}
	}
	return errs
}

// validSources collects workflow inputs and step outputs, in both their
// declared form and the "step/output" short form.
func validSources(wf *cwl.Workflow) map[string]bool {
	valid := make(map[string]bool)
	for _, in := range wf.Inputs {
		valid[in.ID] = true
	}
	for _, step := range wf.Steps {
		for _, outID := range step.Out {
			valid[outID] = true
			valid[step.ID+"/"+shortID(outID)] = true
		}
	}
	return valid
}

func isFileLiteral(id string) bool {
	return strings.HasPrefix(id, "file://")
}

func (v *Validator) validateSources(wf *cwl.Workflow, prefix string) []model.FieldError {
	var errs []model.FieldError
	valid := validSources(wf)

	for _, step := range wf.Steps {
		for _, in := range step.In {
			field := fmt.Sprintf("%ssteps.%s.in.%s", prefix, step.ID, shortID(in.ID))
			if len(in.Sources) == 0 && in.Default == nil && in.ValueFrom == "" {
				errs = append(errs, model.FieldError{
					Field:   field,
					Message: fmt.Sprintf("step %q input %q has no source, default or valueFrom", step.ID, in.ID),
				})
				continue
			}
			for _, src := range in.Sources {
				if !valid[src] && !isFileLiteral(src) {
					errs = append(errs, model.FieldError{
						Field:   field + ".source",
						Message: fmt.Sprintf("source %q does not match any workflow input or step output", src),
					})
				}
			}
		}
	}
	return errs
}

func (v *Validator) validateOutputSources(wf *cwl.Workflow, prefix string) []model.FieldError {
	var errs []model.FieldError
	valid := validSources(wf)

	for _, out := range wf.Outputs {
		field := fmt.Sprintf("%soutputs.%s.outputSource", prefix, shortID(out.ID))
		if len(out.OutputSources) == 0 {
			errs = append(errs, model.FieldError{
				Field:   field,
				Message: fmt.Sprintf("output %q is missing outputSource", out.ID),
			})
			continue
		}
		for _, src := range out.OutputSources {
			if !valid[src] && !isFileLiteral(src) {
				errs = append(errs, model.FieldError{
					Field:   field,
					Message: fmt.Sprintf("outputSource %q does not match any step output or workflow input", src),
				})
			}
		}
	}
	return errs
}

func (v *Validator) validateExpressions(wf *cwl.Workflow, prefix string) []model.FieldError {
	var errs []model.FieldError
	for _, step := range wf.Steps {
		// Expressions on a step see the step's own inputs.
		names := make(map[string]bool, len(step.In))
		for _, in := range step.In {
			names[shortID(in.ID)] = true
		}
		check := func(field, expr string, mustBeExpr bool) {
			if expr == "" {
				return
			}
			e, err := cwlexpr.Inspect(expr)
			if err != nil {
				errs = append(errs, model.FieldError{Field: field, Message: err.Error()})
				return
			}
			if mustBeExpr && e.Kind == cwlexpr.KindLiteral {
				errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf("%q is not an expression", expr)})
				return
			}
			for _, name := range e.Inputs {
				if !names[name] {
					errs = append(errs, model.FieldError{
						Field:   field,
						Message: fmt.Sprintf("expression reads inputs.%s, which is not an input of step %q", name, step.ID),
					})
				}
			}
		}

		check(fmt.Sprintf("%ssteps.%s.when", prefix, step.ID), step.When, true)
		for _, in := range step.In {
			check(fmt.Sprintf("%ssteps.%s.in.%s.valueFrom", prefix, step.ID, shortID(in.ID)), in.ValueFrom, false)
		}
	}
	return errs
}

func (v *Validator) validateDAG(wf *cwl.Workflow, prefix string) []model.FieldError {
	if _, err := BuildDAG(wf); err != nil {
		return []model.FieldError{{Field: prefix + "steps", Message: err.Error()}}
	}
	return nil
}
