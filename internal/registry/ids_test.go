package registry

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1712345678901)
	id := NewID(now)

	assert.Regexp(t, regexp.MustCompile(`^comp_1712345678901_[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, NewID(now))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"HeroSection", "HeroSection.tsx"},
		{"pricing card", "PricingCard.tsx"},
		{"login-screen v2", "LoginScreenV2.tsx"},
		{"Dashboard_mobile", "DashboardMobile.tsx"},
		{"  spaced  out  ", "SpacedOut.tsx"},
		{"3 column layout", "Component3ColumnLayout.tsx"},
		{"!!!", "Component.tsx"},
		{"café menu", "CafMenu.tsx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.name))
		})
	}
}

func TestNameFromFilename(t *testing.T) {
	assert.Equal(t, "HeroSection", NameFromFilename("HeroSection.tsx"))
}

func TestHash(t *testing.T) {
	a := Hash("export default function A() {}")
	b := Hash("export default function B() {}")

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Hash("export default function A() {}"))
}
