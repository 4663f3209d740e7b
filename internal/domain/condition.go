package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ConditionType names an eligibility predicate kind.
type ConditionType string

const (
	ConditionProduct     ConditionType = "product"
	ConditionCategory    ConditionType = "category"
	ConditionUserGroup   ConditionType = "user_group"
	ConditionMinQuantity ConditionType = "minimum_quantity"
)

// Condition is one eligibility predicate. All conditions on a rule must hold.
// Conditions are decoded once when the rule is loaded.
type Condition interface {
	Type() ConditionType
}

// ProductCondition requires (Inclusive) or forbids a product in the cart.
type ProductCondition struct {
	IDs       []string
	Inclusive bool
}

// CategoryCondition requires (Inclusive) or forbids a category in the cart.
type CategoryCondition struct {
	IDs       []string
	Inclusive bool
}

// MinQuantityCondition requires at least Threshold units across all lines.
type MinQuantityCondition struct {
	Threshold int
}

// UserGroupCondition requires (Inclusive) or forbids membership in one of Groups.
type UserGroupCondition struct {
	Groups    []string
	Inclusive bool
}

// MalformedCondition stands in for a stored condition that could not be
// decoded. Evaluating it is a configuration fault.
type MalformedCondition struct {
	Raw json.RawMessage
	Err error
}

func (ProductCondition) Type() ConditionType     { return ConditionProduct }
func (CategoryCondition) Type() ConditionType    { return ConditionCategory }
func (MinQuantityCondition) Type() ConditionType { return ConditionMinQuantity }
func (UserGroupCondition) Type() ConditionType   { return ConditionUserGroup }
func (MalformedCondition) Type() ConditionType   { return "malformed" }

// ConditionSpec is the stored and wire form of a condition.
type ConditionSpec struct {
	Type      ConditionType   `json:"type"`
	Value     json.RawMessage `json:"value"`
	Inclusive *bool           `json:"inclusive,omitempty"`
}

var ErrMalformedCondition = errors.New("malformed condition")

// DecodeCondition parses spec into its typed form. Inclusive defaults to true.
func DecodeCondition(spec ConditionSpec) (Condition, error) {
	inclusive := spec.Inclusive == nil || *spec.Inclusive

	decodeIDs := func() ([]string, error) {
		var ids []string
		if err := json.Unmarshal(spec.Value, &ids); err != nil {
			return nil, fmt.Errorf("%w: %s value must be a list of ids: %v", ErrMalformedCondition, spec.Type, err)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: %s value must not be empty", ErrMalformedCondition, spec.Type)
		}
		return ids, nil
	}

	switch spec.Type {
	case ConditionProduct:
		ids, err := decodeIDs()
		if err != nil {
			return nil, err
		}
		return ProductCondition{IDs: ids, Inclusive: inclusive}, nil
	case ConditionCategory:
		ids, err := decodeIDs()
		if err != nil {
			return nil, err
		}
		return CategoryCondition{IDs: ids, Inclusive: inclusive}, nil
	case ConditionUserGroup:
		ids, err := decodeIDs()
		if err != nil {
			return nil, err
		}
		return UserGroupCondition{Groups: ids, Inclusive: inclusive}, nil
	case ConditionMinQuantity:
		var n int
		if err := json.Unmarshal(spec.Value, &n); err != nil {
			return nil, fmt.Errorf("%w: minimum_quantity value must be an integer: %v", ErrMalformedCondition, err)
		}
		if n < 1 {
			return nil, fmt.Errorf("%w: minimum_quantity must be at least 1", ErrMalformedCondition)
		}
		return MinQuantityCondition{Threshold: n}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedCondition, spec.Type)
	}
}

// EncodeCondition is the inverse of DecodeCondition.
func EncodeCondition(c Condition) (ConditionSpec, error) {
	var (
		value     any
		inclusive *bool
	)
	switch c := c.(type) {
	case ProductCondition:
		value, inclusive = c.IDs, &c.Inclusive
	case CategoryCondition:
		value, inclusive = c.IDs, &c.Inclusive
	case UserGroupCondition:
		value, inclusive = c.Groups, &c.Inclusive
	case MinQuantityCondition:
		value = c.Threshold
	case MalformedCondition:
		var spec ConditionSpec
		if err := json.Unmarshal(c.Raw, &spec); err != nil || spec.Type == "" {
			// Keep the raw payload; it decodes back to a malformed condition.
			return ConditionSpec{Type: c.Type(), Value: c.Raw}, nil
		}
		return spec, nil
	default:
		return ConditionSpec{}, fmt.Errorf("%w: unsupported condition %T", ErrMalformedCondition, c)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return ConditionSpec{}, err
	}
	return ConditionSpec{Type: c.Type(), Value: raw, Inclusive: inclusive}, nil
}

// Conditions round-trips through JSON as a list of ConditionSpec. Entries
// that fail to decode become MalformedCondition rather than failing the
// whole rule, so a bad row cannot take down checkout.
type Conditions []Condition

func (cs Conditions) MarshalJSON() ([]byte, error) {
	specs := make([]ConditionSpec, 0, len(cs))
	for _, c := range cs {
		spec, err := EncodeCondition(c)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return json.Marshal(specs)
}

func (cs *Conditions) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	out := make(Conditions, 0, len(raws))
	for _, raw := range raws {
		var spec ConditionSpec
		if err := json.Unmarshal(raw, &spec); err != nil {
			out = append(out, MalformedCondition{Raw: raw, Err: err})
			continue
		}
		c, err := DecodeCondition(spec)
		if err != nil {
			out = append(out, MalformedCondition{Raw: raw, Err: err})
			continue
		}
		out = append(out, c)
	}
	*cs = out
	return nil
}

// Malformed returns the first undecodable condition, if any.
func (cs Conditions) Malformed() (MalformedCondition, bool) {
	for _, c := range cs {
		if m, ok := c.(MalformedCondition); ok {
			return m, true
		}
	}
	return MalformedCondition{}, false
}
