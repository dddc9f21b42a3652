package core

// validation.go checks rows against the appointment field rules.
//
// Every rule runs on every row, in a fixed order, so a row with several
// problems reports all of them:
//  1. client name, date and time are present
//  2. date parses as a calendar date
//  3. time parses as a time of day
//  4. duration, when given, is a positive whole number of minutes
//  5. services, when given, name at least one service
//
// Validation is a pure function of the raw row and the column mapping.

import (
	"fmt"
)

// ValidationError is one violated rule for a field.
type ValidationError struct {
	Field   Field  // Normalized field the rule applies to
	Value   string // The offending value, empty for missing values
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidateRow maps row's raw values onto the normalized fields and runs
// every rule. The input row is not modified.
func ValidateRow(row Row, mapping ColumnMapping) Row {
	out := Row{
		Number: row.Number,
		Raw:    row.Raw,
	}

	values := make(map[Field]string, len(AllFields))
	mapped := make(map[string]bool, len(mapping))
	for _, f := range AllFields {
		col, ok := mapping[f]
		if !ok || col == "" {
			continue
		}
		mapped[col] = true
		values[f] = CleanCell(row.Raw[col])
	}

	for col, v := range row.Raw {
		if mapped[col] {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]string)
		}
		out.Extra[col] = v
	}

	out.Fields.ClientName = values[FieldClientName]
	out.Fields.ClientEmail = NormalizeEmail(values[FieldClientEmail])
	out.Fields.ClientPhone = NormalizePhone(values[FieldClientPhone])
	out.Fields.Notes = values[FieldNotes]

	errs := validateFields(values, &out.Fields)
	out.Errors = make([]string, 0, len(errs))
	for _, e := range errs {
		out.Errors = append(out.Errors, e.Message)
	}
	return out
}

// validateFields runs the rules in order and fills the typed fields that parse.
func validateFields(values map[Field]string, fields *RowFields) []ValidationError {
	var errs []ValidationError

	if values[FieldClientName] == "" {
		errs = append(errs, ValidationError{Field: FieldClientName, Message: "client name is required"})
	}
	if values[FieldDate] == "" {
		errs = append(errs, ValidationError{Field: FieldDate, Message: "date is required"})
	}
	if values[FieldTime] == "" {
		errs = append(errs, ValidationError{Field: FieldTime, Message: "time is required"})
	}

	if v := values[FieldDate]; v != "" {
		if d, ok := ParseDate(v); ok {
			fields.Date = d
		} else {
			errs = append(errs, ValidationError{
				Field:   FieldDate,
				Value:   v,
				Message: fmt.Sprintf("date is not a valid date: %q", v),
			})
		}
	}

	if v := values[FieldTime]; v != "" {
		if tod, ok := ParseTimeOfDay(v); ok {
			fields.TimeOfDay = tod
		} else {
			errs = append(errs, ValidationError{
				Field:   FieldTime,
				Value:   v,
				Message: fmt.Sprintf("time is not a valid time: %q", v),
			})
		}
	}

	if v := values[FieldDuration]; v != "" {
		if n, ok := ParseDurationMinutes(v); ok {
			fields.DurationMinutes = n
		} else {
			errs = append(errs, ValidationError{
				Field:   FieldDuration,
				Value:   v,
				Message: fmt.Sprintf("duration must be a positive whole number of minutes: %q", v),
			})
		}
	}

	if v := values[FieldServices]; v != "" {
		fields.Services = SplitServices(v)
		if len(fields.Services) == 0 {
			errs = append(errs, ValidationError{
				Field:   FieldServices,
				Value:   v,
				Message: "services must name at least one service",
			})
		}
	}

	return errs
}

// ValidateRows validates every row of a job.
func ValidateRows(rows []Row, mapping ColumnMapping) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = ValidateRow(r, mapping)
	}
	return out
}

// distinctServices returns every service token across rows, in first seen
// order.
func distinctServices(rows []Row) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, s := range r.Fields.Services {
			key := NormalizeName(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			tokens = append(tokens, s)
		}
	}
	return tokens
}
