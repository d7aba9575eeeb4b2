package services

import (
	"context"
	"testing"

	"github.com/reglet-dev/classrunner/internal/application/dto"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/services"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/reglet-dev/classrunner/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileQueries() *ProfileQueries {
	repo := memory.NewProfileRepository()
	repo.Put(values.ParseProfileRef("Alice"), memory.NewDocument().
		Append(entities.PackageClass, pkg("lib", "1.0", "lib", "jar")).
		Append(entities.IncludeClass, memory.Object{entities.FieldName: "Loop"}))
	repo.Put(values.ParseProfileRef("Loop"), memory.NewDocument().
		Append(entities.IncludeClass, memory.Object{entities.FieldName: "Loop"}))
	repo.Put(values.ParseProfileRef("Bob"), memory.NewDocument().
		Append(entities.PackageClass, pkg("util", "2.0-SNAPSHOT", "util", "")))
	return NewProfileQueries(repo, services.NewPackageCollector(repo, 0, nil), testBase, nil)
}

func TestProfileQueries_List(t *testing.T) {
	q := newProfileQueries()

	summaries, err := q.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	byName := map[string]dto.ProfileSummary{}
	for _, s := range summaries {
		byName[s.Ref.Name] = s
	}

	assert.Empty(t, byName["Bob"].Error)
	assert.Equal(t, []string{testBase + "util-2.0-SNAPSHOT/"}, byName["Bob"].Packages.Snapshot)

	assert.Nil(t, byName["Loop"].Packages)
	assert.Contains(t, byName["Loop"].Error, "cycle")
	assert.NotEmpty(t, byName["Alice"].Error, "an include cycle fails the including profile too")
}

func TestProfileQueries_Packages(t *testing.T) {
	q := newProfileQueries()

	set, err := q.Packages(context.Background(), dto.PackagesRequest{Profile: "Bob", BaseURL: "http://other/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://other/util-2.0-SNAPSHOT/"}, set.Snapshot)
	assert.Equal(t, []string{"util"}, set.GroupIDs)

	_, err = q.Packages(context.Background(), dto.PackagesRequest{Profile: "Nobody"})
	var missing *entities.ProfileMissingError
	assert.ErrorAs(t, err, &missing)
}
