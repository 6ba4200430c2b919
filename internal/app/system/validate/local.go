// internal/app/system/validate/local.go

// Package validate implements the two-phase validation engine. Local checks
// apply the upload-type registry's rules without touching the network;
// remote checks run only once local validation is clean, because they are
// comparatively expensive and only meaningful on well-formed data. Both
// phases report into the same error-list shape, so consumers never need to
// know which phase produced a finding.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vespahq/uploadhub/internal/app/system/csvio"
	"github.com/vespahq/uploadhub/internal/app/system/uploadtypes"
	"github.com/vespahq/uploadhub/internal/domain/models"
)

// Local applies the spec's rules to every row and accumulates all
// violations; a single row may contribute several errors. Rows are reported
// by 1-based number.
func Local(doc *csvio.Document, spec uploadtypes.Spec) models.ValidationResult {
	var errs []models.ValidationError

	for i, row := range doc.Rows {
		rowNum := i + 1

		for _, field := range spec.RequiredFields {
			if strings.TrimSpace(row[field]) == "" {
				errs = append(errs, models.ValidationError{
					Row:     rowNum,
					Kind:    models.ErrKindMissingField,
					Field:   field,
					Message: fmt.Sprintf("%q is required", field),
				})
			}
		}

		for field, rule := range spec.FieldRules {
			value := strings.TrimSpace(row[field])
			if value == "" {
				continue // presence is the required-field check's job
			}
			errs = append(errs, checkRule(rowNum, field, value, rule)...)
		}

		if spec.Paired != nil {
			errs = append(errs, checkPaired(rowNum, row, spec.Paired)...)
		}
	}

	return models.ValidationResult{
		IsValid:   len(errs) == 0,
		Errors:    errs,
		TotalRows: len(doc.Rows),
		Source:    models.SourceLocal,
	}
}

func checkRule(rowNum int, field, value string, rule uploadtypes.FieldRule) []models.ValidationError {
	var errs []models.ValidationError

	if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
		errs = append(errs, models.ValidationError{
			Row:     rowNum,
			Kind:    models.ErrKindInvalidFormat,
			Field:   field,
			Message: fmt.Sprintf("%q is not a valid value for %q", value, field),
		})
	}

	if len(rule.Enum) > 0 {
		values := []string{value}
		if rule.List {
			values = splitList(value)
		}
		for _, v := range values {
			if !inEnum(v, rule.Enum) {
				errs = append(errs, models.ValidationError{
					Row:     rowNum,
					Kind:    models.ErrKindInvalidValue,
					Field:   field,
					Message: fmt.Sprintf("%q is not one of the allowed values for %q (%s)", v, field, strings.Join(rule.Enum, ", ")),
				})
			}
		}
	}

	return errs
}

// checkPaired enforces subI ⇔ exI in both directions up to the spec's
// declared maximum index. Each missing half is exactly one error.
func checkPaired(rowNum int, row models.ParsedRow, rule *uploadtypes.PairedColumnRule) []models.ValidationError {
	var errs []models.ValidationError

	for i := 1; i <= rule.MaxIndex; i++ {
		subCol := rule.SubPrefix + strconv.Itoa(i)
		exCol := rule.ExPrefix + strconv.Itoa(i)
		hasSub := strings.TrimSpace(row[subCol]) != ""
		hasEx := strings.TrimSpace(row[exCol]) != ""

		if hasSub && !hasEx {
			errs = append(errs, models.ValidationError{
				Row:     rowNum,
				Kind:    models.ErrKindUnpairedColumn,
				Field:   exCol,
				Message: fmt.Sprintf("%q is set but %q is empty", subCol, exCol),
			})
		}
		if hasEx && !hasSub {
			errs = append(errs, models.ValidationError{
				Row:     rowNum,
				Kind:    models.ErrKindUnpairedColumn,
				Field:   subCol,
				Message: fmt.Sprintf("%q is set but %q is empty", exCol, subCol),
			})
		}
	}

	return errs
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func inEnum(value string, enum []string) bool {
	for _, e := range enum {
		if strings.EqualFold(value, e) {
			return true
		}
	}
	return false
}
