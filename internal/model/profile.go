// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// PROFILE FIELDS
// =============================================================================

// Field names one attribute of the user profile.
type Field string

const (
	FieldGoal        Field = "goal"
	FieldExperience  Field = "experience"
	FieldEquipment   Field = "equipment"
	FieldSchedule    Field = "schedule"
	FieldDiet        Field = "diet"
	FieldLimitations Field = "limitations"
	FieldBody        Field = "body"
)

// Fields lists every profile field in display order.
var Fields = []Field{
	FieldGoal,
	FieldExperience,
	FieldEquipment,
	FieldSchedule,
	FieldDiet,
	FieldLimitations,
	FieldBody,
}

var fieldLabels = map[Field]string{
	FieldGoal:        "mục tiêu (tăng cơ/giảm mỡ/giữ form)",
	FieldExperience:  "trình độ tập luyện",
	FieldEquipment:   "dụng cụ sẵn có",
	FieldSchedule:    "số buổi/tuần bạn có thể tập",
	FieldDiet:        "khẩu vị hoặc chế độ ăn ưu tiên",
	FieldLimitations: "giới hạn vận động hoặc vùng bị đau",
	FieldBody:        "cân nặng",
}

// Label returns the Vietnamese description shown to the user.
func (f Field) Label() string {
	if l, ok := fieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// =============================================================================
// PROFILE
// =============================================================================

// Profile is the fixed-shape record of inferred user attributes ("memory").
// A nil field is unknown; values are last-writer-wins and never cleared automatically.
type Profile struct {
	Goal        *string `json:"goal"`
	Experience  *string `json:"experience"`
	Equipment   *string `json:"equipment"`
	Schedule    *string `json:"schedule"`
	Diet        *string `json:"diet"`
	Limitations *string `json:"limitations"`
	Body        *string `json:"body"`
}

func (p *Profile) slot(f Field) **string {
	switch f {
	case FieldGoal:
		return &p.Goal
	case FieldExperience:
		return &p.Experience
	case FieldEquipment:
		return &p.Equipment
	case FieldSchedule:
		return &p.Schedule
	case FieldDiet:
		return &p.Diet
	case FieldLimitations:
		return &p.Limitations
	case FieldBody:
		return &p.Body
	}
	return nil
}

// Get returns the current value of f and whether it is known.
func (p Profile) Get(f Field) (string, bool) {
	s := (&p).slot(f)
	if s == nil || *s == nil {
		return "", false
	}
	return **s, true
}

// Set overwrites f and reports whether the stored value changed.
func (p *Profile) Set(f Field, value string) bool {
	s := p.slot(f)
	if s == nil {
		return false
	}
	if *s != nil && **s == value {
		return false
	}
	v := value
	*s = &v
	return true
}

// Missing returns the fields that are still unknown, in display order.
func (p Profile) Missing() []Field {
	var out []Field
	for _, f := range Fields {
		if _, ok := p.Get(f); !ok {
			out = append(out, f)
		}
	}
	return out
}

// IsEmpty reports whether no field is known.
func (p Profile) IsEmpty() bool {
	return len(p.Missing()) == len(Fields)
}

// Clone returns a deep copy so callers cannot mutate the owner's pointers.
func (p Profile) Clone() Profile {
	var out Profile
	for _, f := range Fields {
		if v, ok := p.Get(f); ok {
			out.Set(f, v)
		}
	}
	return out
}
