// internal/app/system/validate/remote.go
package validate

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/vespahq/uploadhub/internal/app/records"
	"github.com/vespahq/uploadhub/internal/app/system/csvio"
	"github.com/vespahq/uploadhub/internal/app/system/uploadtypes"
	"github.com/vespahq/uploadhub/internal/domain/models"
)

// Remote runs the checks that need server-side state. It must only be
// called after Local returned a clean result. A transport failure becomes a
// single synthetic error in the result rather than a returned fault, so
// callers handle content and transport findings through one shape.
func Remote(ctx context.Context, client *records.Client, doc *csvio.Document, spec uploadtypes.Spec) models.ValidationResult {
	var errs []models.ValidationError

	if spec.VerifySubjects {
		errs = append(errs, verifySubjectColumns(ctx, client, doc, spec)...)
	} else {
		resp, err := client.Validate(ctx, spec.Endpoint, doc.Rows)
		if err != nil {
			errs = append(errs, networkError(err))
		} else {
			errs = append(errs, resp.Errors...)
		}
	}

	return models.ValidationResult{
		IsValid:   len(errs) == 0,
		Errors:    errs,
		TotalRows: len(doc.Rows),
		Source:    models.SourceRemote,
	}
}

// verifySubjectColumns collects the distinct subject names referenced by the
// subN columns, asks the platform which it does not recognize, and maps each
// unrecognized occurrence back to its (row, column).
func verifySubjectColumns(ctx context.Context, client *records.Client, doc *csvio.Document, spec uploadtypes.Spec) []models.ValidationError {
	type occurrence struct {
		row    int
		column string
		name   string
	}

	var occurrences []occurrence
	distinct := make(map[string]string) // folded -> first-seen spelling

	for i, row := range doc.Rows {
		for n := 1; n <= spec.Paired.MaxIndex; n++ {
			col := spec.Paired.SubPrefix + strconv.Itoa(n)
			name := strings.TrimSpace(row[col])
			if name == "" {
				continue
			}
			occurrences = append(occurrences, occurrence{row: i + 1, column: col, name: name})
			folded := text.Fold(name)
			if _, seen := distinct[folded]; !seen {
				distinct[folded] = name
			}
		}
	}

	if len(distinct) == 0 {
		return nil
	}

	names := make([]string, 0, len(distinct))
	for _, name := range distinct {
		names = append(names, name)
	}
	sort.Strings(names)

	unrecognized, err := client.VerifySubjects(ctx, names)
	if err != nil {
		return []models.ValidationError{networkError(err)}
	}

	unknown := make(map[string]struct{}, len(unrecognized))
	for _, name := range unrecognized {
		unknown[text.Fold(name)] = struct{}{}
	}

	var errs []models.ValidationError
	for _, occ := range occurrences {
		if _, bad := unknown[text.Fold(occ.name)]; bad {
			errs = append(errs, models.ValidationError{
				Row:     occ.row,
				Kind:    models.ErrKindInvalidSubject,
				Field:   occ.column,
				Message: fmt.Sprintf("subject %q is not recognized", occ.name),
			})
		}
	}
	return errs
}

func networkError(err error) models.ValidationError {
	return models.ValidationError{
		Kind:    models.ErrKindNetwork,
		Message: "could not reach the records platform: " + err.Error(),
	}
}
