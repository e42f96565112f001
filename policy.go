package jsonrel

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ObjectArrayStrategy decides what happens to arrays whose first element is an object.
type ObjectArrayStrategy string

const (
	ExplodeToChild ObjectArrayStrategy = "explode"
	InlineAsJSON   ObjectArrayStrategy = "inline"
)

// PrimitiveArrayStrategy decides what happens to arrays of scalars.
type PrimitiveArrayStrategy string

const (
	Join              PrimitiveArrayStrategy = "join"
	ExplodePrimitives PrimitiveArrayStrategy = "explode"
)

// HeaderOrder is the column ordering applied when relations are finalized.
type HeaderOrder string

const (
	Sorted      HeaderOrder = "sorted"
	Encountered HeaderOrder = "encountered"
)

// Policy describes every traversal choice of a normalization run. It is a
// plain value; copy and modify DefaultPolicy() rather than building one from
// scratch.
type Policy struct {
	RootRelation        string                 `json:"root_relation" validate:"required"`
	AllowChildRelations bool                   `json:"allow_child_relations"`
	ObjectArrays        ObjectArrayStrategy    `json:"object_arrays" validate:"oneof=explode inline"`
	PrimitiveArrays     PrimitiveArrayStrategy `json:"primitive_arrays" validate:"oneof=join explode"`
	GenerateRowID       bool                   `json:"generate_row_id"`
	GenerateParentLink  bool                   `json:"generate_parent_link"`
	IDColumn            string                 `json:"id_column" validate:"required_if=GenerateRowID true"`
	ParentLinkColumn    string                 `json:"parent_link_column" validate:"required_if=GenerateParentLink true"`
	JoinSeparator       string                 `json:"join_separator"`
	// MaxDepth bounds container nesting during folding (root container = 1). 0 disables.
	MaxDepth    int         `json:"max_depth" validate:"gte=0"`
	HeaderOrder HeaderOrder `json:"header_order" validate:"oneof=sorted encountered"`
	// OnColumnCollision applies when a value is written to a column the row
	// already holds (for example a data field named like IDColumn).
	OnColumnCollision Severity `json:"on_column_collision" validate:"gte=0,lte=2"`
}

// DefaultPolicy returns the stock policy: child relations with ids and parent
// links, exploded object arrays, joined scalar arrays, sorted headers.
func DefaultPolicy() Policy {
	return Policy{
		RootRelation:        "root",
		AllowChildRelations: true,
		ObjectArrays:        ExplodeToChild,
		PrimitiveArrays:     Join,
		GenerateRowID:       true,
		GenerateParentLink:  true,
		IDColumn:            "id",
		ParentLinkColumn:    "parent_id",
		JoinSeparator:       "; ",
		MaxDepth:            64,
		HeaderOrder:         Sorted,
		OnColumnCollision:   Warn,
	}
}

var (
	policyValidatorOnce sync.Once
	policyValidator     *validator.Validate
)

func getPolicyValidator() *validator.Validate {
	policyValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterStructValidation(func(sl validator.StructLevel) {
			p := sl.Current().Interface().(Policy)
			if p.GenerateRowID && p.GenerateParentLink && p.IDColumn == p.ParentLinkColumn {
				sl.ReportError(p.ParentLinkColumn, "parent_link_column", "ParentLinkColumn", "nefield", "id_column")
			}
		}, Policy{})
		policyValidator = v
	})
	return policyValidator
}

// Validate reports every malformed field as an invalid_policy Issue whose path
// names the field (for example /id_column).
func (p Policy) Validate() error {
	err := getPolicyValidator().Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return AppendIssues(nil, Issue{Code: CodeInvalidPolicy, Path: "/", Message: err.Error(), Cause: err})
	}
	var iss Issues
	for _, fe := range verrs {
		iss = AppendIssues(iss, Root().Field(fe.Field()).Issue(CodeInvalidPolicy, policyMessage(fe),
			"field", fe.Field(), "rule", fe.Tag(), "param", fe.Param()))
	}
	return iss
}

func policyMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "must not be empty"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
