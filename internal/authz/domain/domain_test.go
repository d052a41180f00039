package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input    string
		expected Kind
		ok       bool
	}{
		{"subject", KindSubject, true},
		{"subjects", KindSubject, true},
		{"object", KindObject, true},
		{"objects", KindObject, true},
		{"permission", KindPermission, true},
		{"permissions", KindPermission, true},
		{"privilege", KindPermission, true},
		{"role", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, ok := ParseKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, kind)
		})
	}
}

func TestKindValid(t *testing.T) {
	assert.True(t, KindSubject.Valid())
	assert.True(t, KindObject.Valid())
	assert.True(t, KindPermission.Valid())
	assert.False(t, Kind("role").Valid())
}

func TestSignValid(t *testing.T) {
	assert.True(t, SignPositive.Valid())
	assert.True(t, SignNegative.Valid())
	assert.False(t, Sign("?").Valid())
}

func TestEntityIsSupremum(t *testing.T) {
	assert.True(t, (&Entity{ExtID: SupremumExtID}).IsSupremum())
	assert.False(t, (&Entity{ExtID: "alice"}).IsSupremum())
}

func TestRuleDeclSign(t *testing.T) {
	assert.Equal(t, SignPositive, RuleDecl{Action: ActionGrant}.Sign())
	assert.Equal(t, SignNegative, RuleDecl{Action: ActionDeny}.Sign())
}

func TestDecisionGranted(t *testing.T) {
	assert.True(t, DecisionGranted.Granted())
	assert.False(t, DecisionDenied.Granted())
}
