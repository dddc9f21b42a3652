package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JonMunkholm/apptimport/internal/core"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// importOptionsRequest is the body shared by validate and start batch.
// Omitted flags default to true.
type importOptionsRequest struct {
	SalonID          string            `json:"salon_id" validate:"required,uuid"`
	StaffID          string            `json:"staff_id" validate:"omitempty,uuid"`
	ColumnMapping    map[string]string `json:"column_mapping" validate:"omitempty,dive,keys,oneof=client_name client_email client_phone date time services duration notes,endkeys,max=256"`
	AutoMapServices  *bool             `json:"auto_map_services"`
	CreateGuestUsers *bool             `json:"create_guest_users"`
}

type startBatchRequest struct {
	importOptionsRequest
	SkipInvalid *bool `json:"skip_invalid"`
}

func (req *importOptionsRequest) normalize() {
	req.SalonID = strings.TrimSpace(req.SalonID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	for k, v := range req.ColumnMapping {
		req.ColumnMapping[k] = strings.TrimSpace(v)
	}
}

func (req *importOptionsRequest) options() core.ImportOptions {
	opts := core.ImportOptions{
		SalonID:          req.SalonID,
		StaffID:          req.StaffID,
		AutoMapServices:  boolOr(req.AutoMapServices, true),
		CreateGuestUsers: boolOr(req.CreateGuestUsers, true),
	}
	if len(req.ColumnMapping) > 0 {
		opts.Mapping = make(core.ColumnMapping, len(req.ColumnMapping))
		for field, col := range req.ColumnMapping {
			opts.Mapping[core.Field(field)] = col
		}
	}
	return opts
}

// decodeRequest reads a JSON body into dst and validates it.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	if n, ok := dst.(interface{ normalize() }); ok {
		n.normalize()
	}
	if err := getValidator().Struct(dst); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError reports the first failed rule.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return badRequest(fmt.Sprintf("field %s failed on the '%s' rule", jsonFieldName(e), e.Tag()))
	}
	return badRequest(err.Error())
}

var fieldNames = map[string]string{
	"SalonID":          "salon_id",
	"StaffID":          "staff_id",
	"ColumnMapping":    "column_mapping",
	"AutoMapServices":  "auto_map_services",
	"CreateGuestUsers": "create_guest_users",
	"SkipInvalid":      "skip_invalid",
}

func jsonFieldName(e validator.FieldError) string {
	field := e.StructField()
	if i := strings.Index(field, "["); i > 0 {
		field = field[:i]
	}
	if name, ok := fieldNames[field]; ok {
		return name
	}
	return e.Field()
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
