package services

import (
	"testing"

	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/stretchr/testify/assert"
)

func TestVisibility(t *testing.T) {
	assert.Equal(t, Detailed, InitialVisibility(true))
	assert.Equal(t, Masked, InitialVisibility(false))

	stable := entities.NewPackageSet()
	stable.Add("http://r/lib-1.0.jar", values.Stable)

	snapshot := entities.NewPackageSet()
	snapshot.Add("http://r/lib-1.0.jar", values.Stable)
	snapshot.Add("http://r/dev-2.0-SNAPSHOT/", values.Snapshot)

	tests := []struct {
		name     string
		elevated bool
		set      *entities.PackageSet
		want     Visibility
	}{
		{"elevated stable", true, stable, Detailed},
		{"plain stable", false, stable, Masked},
		{"plain snapshot upgrades", false, snapshot, Detailed},
		{"elevated without set", true, nil, Detailed},
		{"plain without set", false, nil, Masked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalVisibility(tt.elevated, tt.set)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == Detailed, got.Detailed())
		})
	}

	assert.Equal(t, "masked", Masked.String())
	assert.Equal(t, "detailed", Detailed.String())
}
