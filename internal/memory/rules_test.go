// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/Tri-Phung/chatbot-project/internal/model"
)

func get(t *testing.T, p model.Profile, f model.Field) string {
	t.Helper()
	v, ok := p.Get(f)
	require.True(t, ok, "field %s should be set", f)
	return v
}

func TestApply_BeginnerScheduleWeightDiet(t *testing.T) {
	var p model.Profile
	Apply(&p, "mình mới tập, 3 buổi/tuần, nặng 70kg, ăn chay")

	assert.Equal(t, "mới tập", get(t, p, model.FieldExperience))
	assert.Equal(t, "3 buổi/tuần", get(t, p, model.FieldSchedule))
	assert.Equal(t, "70 kg", get(t, p, model.FieldBody))
	assert.Equal(t, "ăn chay", get(t, p, model.FieldDiet))

	_, ok := p.Get(model.FieldGoal)
	assert.False(t, ok)
}

func TestApply_GoalGymLimitation(t *testing.T) {
	var p model.Profile
	Apply(&p, "tăng cơ, tập gym, đau lưng")

	assert.Equal(t, "tăng cơ", get(t, p, model.FieldGoal))
	assert.Equal(t, "phòng gym", get(t, p, model.FieldEquipment))
	assert.Equal(t, "có hạn chế", get(t, p, model.FieldLimitations))
}

func TestApply_Idempotent(t *testing.T) {
	text := "Giảm cân, trình độ intermediate, 4 ngày, 82 kg, ít carb"

	var once model.Profile
	first := Apply(&once, text)
	assert.NotEmpty(t, first)

	twice := once.Clone()
	second := Apply(&twice, text)

	assert.Equal(t, once, twice)
	assert.Empty(t, second, "a repeated call changes nothing")
}

func TestApply_LastRuleWinsWithinCall(t *testing.T) {
	var p model.Profile
	changes := Apply(&p, "Không dụng cụ ở nhà nhưng cuối tuần đi gym; tăng cơ rồi giữ dáng")

	assert.Equal(t, "phòng gym", get(t, p, model.FieldEquipment))
	assert.Equal(t, "giữ form", get(t, p, model.FieldGoal))

	fields := make([]model.Field, 0, len(changes))
	for _, c := range changes {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []model.Field{model.FieldGoal, model.FieldEquipment}, fields,
		"each field is reported once, in rule order")
}

func TestApply_LaterCallOverwrites(t *testing.T) {
	var p model.Profile
	Apply(&p, "mình muốn tăng cơ")
	Apply(&p, "giờ mình muốn giảm mỡ")
	assert.Equal(t, "giảm mỡ", get(t, p, model.FieldGoal))

	// Fields are never cleared by text that does not mention them.
	Apply(&p, "hôm nay trời đẹp")
	assert.Equal(t, "giảm mỡ", get(t, p, model.FieldGoal))
}

func TestApply_CaseAndNormalization(t *testing.T) {
	var p model.Profile
	decomposed := norm.NFD.String("TĂNG CƠ, 5 BUỔI, 65KG")
	Apply(&p, decomposed)

	assert.Equal(t, "tăng cơ", get(t, p, model.FieldGoal))
	assert.Equal(t, "5 buổi/tuần", get(t, p, model.FieldSchedule))
	assert.Equal(t, "65 kg", get(t, p, model.FieldBody))
}

func TestApply_FirstRegexMatchOnly(t *testing.T) {
	var p model.Profile
	Apply(&p, "tuần trước 2 buổi, tuần này 4 buổi; 75kg xuống 72kg")

	assert.Equal(t, "2 buổi/tuần", get(t, p, model.FieldSchedule))
	assert.Equal(t, "75 kg", get(t, p, model.FieldBody))
}

func TestApply_NoBreakSpaceBeforeUnit(t *testing.T) {
	var p model.Profile
	Apply(&p, "tập 3\u00a0buổi, nặng 70\u00a0kg")

	assert.Equal(t, "3 buổi/tuần", get(t, p, model.FieldSchedule))
	assert.Equal(t, "70 kg", get(t, p, model.FieldBody))

	var q model.Profile
	Apply(&q, "4\u202fngày, 82\u2009KG")
	assert.Equal(t, "4 buổi/tuần", get(t, q, model.FieldSchedule))
	assert.Equal(t, "82 kg", get(t, q, model.FieldBody))
}

func TestApply_BodyNeedsTwoToThreeDigits(t *testing.T) {
	var p model.Profile
	Apply(&p, "tạ 5kg")
	_, ok := p.Get(model.FieldBody)
	assert.False(t, ok)
}

func TestExtractor_CustomRules(t *testing.T) {
	ex := NewExtractor([]Rule{
		Contains(model.FieldDiet, "keto", "KETO"),
		Capture(model.FieldBody, regexp.MustCompile(`(\d+)\s?lbs`), "%s lbs"),
	})

	var p model.Profile
	changes := ex.Apply(&p, "Keto diet, 180 lbs")

	assert.Equal(t, []Change{
		{Field: model.FieldDiet, Value: "keto"},
		{Field: model.FieldBody, Value: "180 lbs"},
	}, changes)
}
